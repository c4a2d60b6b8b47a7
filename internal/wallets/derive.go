package wallets

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// ErrMissingSecret is returned by Derive when no server secret is configured.
var ErrMissingSecret = errors.New("wallet derivation secret not set")

// DerivedWallet holds a deterministic custodial key. Its String form is the
// address only.
type DerivedWallet struct {
	Address    string
	PrivateKey *ecdsa.PrivateKey
}

func (w *DerivedWallet) String() string {
	if w == nil {
		return ""
	}
	return w.Address
}

// Derive computes keccak256(email + secret) and uses it as a secp256k1
// private key. The email is hashed exactly as given so wallets already issued
// keep their address.
func Derive(email, secret string) (*DerivedWallet, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("email is required")
	}

	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(email + secret))
	seed := hash.Sum(nil)

	key, err := crypto.ToECDSA(seed)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &DerivedWallet{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: key,
	}, nil
}
