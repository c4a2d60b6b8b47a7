package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/kitea/hunt-backend/pkg/config"
	"github.com/kitea/hunt-backend/pkg/logger"
)

// mintTo(address,uint256,string,uint256) on the edition contract.
const editionABI = `[{"inputs":[{"name":"_to","type":"address"},{"name":"_tokenId","type":"uint256"},{"name":"_uri","type":"string"},{"name":"_amount","type":"uint256"}],"name":"mintTo","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

const signerLockWait = 20 * time.Second

var (
	ErrReverted        = errors.New("mint transaction reverted")
	ErrUnconfirmed     = errors.New("mint transaction unconfirmed")
	errRPCURLRequired  = errors.New("chain rpc url is required")
	errContractMissing = errors.New("nft contract address is required")
	errSignerMissing   = errors.New("deployer private key is required")
)

// Minter issues ERC-1155 tokens to a wallet in two steps. Once Submit has
// returned a hash the transaction may land, so callers track it by hash and
// never submit the same mint again.
type Minter interface {
	Submit(ctx context.Context, to string, tokenID string, amount int64) (string, error)
	WaitMined(ctx context.Context, txHash string) error
	ReceiptStatus(ctx context.Context, txHash string) (ReceiptState, error)
}

// ReceiptState is what the chain currently reports for a submitted hash.
type ReceiptState int

const (
	ReceiptPending ReceiptState = iota
	ReceiptSucceeded
	ReceiptReverted
)

func (s ReceiptState) String() string {
	switch s {
	case ReceiptSucceeded:
		return "succeeded"
	case ReceiptReverted:
		return "reverted"
	default:
		return "pending"
	}
}

// UnconfirmedError reports a broadcast transaction whose outcome is unknown.
type UnconfirmedError struct {
	TxHash string
	Err    error
}

func (e *UnconfirmedError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUnconfirmed, e.TxHash, e.Err)
}

func (e *UnconfirmedError) Unwrap() []error {
	return []error{ErrUnconfirmed, e.Err}
}

// UnconfirmedHash returns the hash carried by an unconfirmed error.
func UnconfirmedHash(err error) (string, bool) {
	var unconfirmed *UnconfirmedError
	if errors.As(err, &unconfirmed) {
		return unconfirmed.TxHash, true
	}
	return "", false
}

// Backend is the subset of ethclient.Client used to submit mints.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// SignerLock serializes nonce allocation for one signing account across processes.
type SignerLock interface {
	AcquireWait(ctx context.Context, maxWait time.Duration) error
	Release(ctx context.Context) error
}

// SignerLockFactory returns a lock for the given key.
type SignerLockFactory func(key string) (SignerLock, error)

type EditionMinterParams struct {
	Backend        Backend
	Config         config.ChainConfig
	Logger         *logger.Logger
	LockFactory    SignerLockFactory
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

// EditionMinter signs and submits mintTo calls with the deployer account.
type EditionMinter struct {
	backend        Backend
	contract       common.Address
	chainID        *big.Int
	key            *ecdsa.PrivateKey
	from           common.Address
	gasLimit       uint64
	abi            abi.ABI
	logg           *logger.Logger
	lockFactory    SignerLockFactory
	receiptTimeout time.Duration
	pollInterval   time.Duration

	mu sync.Mutex
}

// Dial connects to the configured RPC endpoint.
func Dial(ctx context.Context, cfg config.ChainConfig) (*ethclient.Client, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, errRPCURLRequired
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	return client, nil
}

func NewEditionMinter(params EditionMinterParams) (*EditionMinter, error) {
	if params.Backend == nil {
		return nil, errors.New("chain backend required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	contract := strings.TrimSpace(params.Config.ContractAddress)
	if contract == "" {
		return nil, errContractMissing
	}
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid nft contract address %q", contract)
	}
	rawKey := strings.TrimPrefix(strings.TrimSpace(params.Config.DeployerPrivateKey), "0x")
	if rawKey == "" {
		return nil, errSignerMissing
	}
	key, err := crypto.HexToECDSA(rawKey)
	if err != nil {
		return nil, fmt.Errorf("parse deployer private key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(editionABI))
	if err != nil {
		return nil, fmt.Errorf("parse edition abi: %w", err)
	}

	timeout := params.ReceiptTimeout
	if timeout <= 0 {
		timeout = params.Config.ReceiptTimeout
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	poll := params.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}

	return &EditionMinter{
		backend:        params.Backend,
		contract:       common.HexToAddress(contract),
		chainID:        big.NewInt(params.Config.ChainID),
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		gasLimit:       params.Config.GasLimit,
		abi:            parsed,
		logg:           params.Logger,
		lockFactory:    params.LockFactory,
		receiptTimeout: timeout,
		pollInterval:   poll,
	}, nil
}

// Signer returns the deployer address.
func (m *EditionMinter) Signer() string {
	return m.from.Hex()
}

// ContractAddress returns the checksummed contract address.
func (m *EditionMinter) ContractAddress() string {
	return m.contract.Hex()
}

// Submit broadcasts mintTo(to, tokenID, "", amount) and returns the hash.
// An error means nothing reached the node.
func (m *EditionMinter) Submit(ctx context.Context, to string, tokenID string, amount int64) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient address %q", to)
	}
	id, ok := new(big.Int).SetString(strings.TrimSpace(tokenID), 10)
	if !ok || id.Sign() < 0 {
		return "", fmt.Errorf("invalid token id %q", tokenID)
	}
	if amount <= 0 {
		amount = 1
	}

	data, err := m.abi.Pack("mintTo", common.HexToAddress(to), id, "", big.NewInt(amount))
	if err != nil {
		return "", fmt.Errorf("pack mintTo: %w", err)
	}

	tx, err := m.submit(ctx, data)
	if err != nil {
		return "", err
	}

	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"tx_hash":  tx.Hash().Hex(),
		"token_id": tokenID,
		"nonce":    tx.Nonce(),
	}), "mint transaction submitted")
	return tx.Hash().Hex(), nil
}

// WaitMined polls for the receipt of txHash. A revert wraps ErrReverted; any
// other failure is an *UnconfirmedError since the transaction may still land.
func (m *EditionMinter) WaitMined(ctx context.Context, txHash string) error {
	hash := common.HexToHash(txHash)
	receipt, err := m.waitReceipt(ctx, hash)
	if err != nil {
		return &UnconfirmedError{TxHash: hash.Hex(), Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
	}
	return nil
}

// ReceiptStatus looks the receipt up once without waiting.
func (m *EditionMinter) ReceiptStatus(ctx context.Context, txHash string) (ReceiptState, error) {
	receipt, err := m.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return ReceiptPending, nil
		}
		return ReceiptPending, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ReceiptReverted, nil
	}
	return ReceiptSucceeded, nil
}

// submit holds the signer locks only while the nonce is allocated and the transaction broadcast.
func (m *EditionMinter) submit(ctx context.Context, data []byte) (*types.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lockFactory != nil {
		lock, err := m.lockFactory(strings.ToLower(m.from.Hex()))
		if err != nil {
			return nil, fmt.Errorf("signer lock: %w", err)
		}
		if err := lock.AcquireWait(ctx, signerLockWait); err != nil {
			return nil, fmt.Errorf("acquire signer lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				m.logg.Warn(ctx, "failed to release signer lock")
			}
		}()
	}

	nonce, err := m.backend.PendingNonceAt(ctx, m.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := m.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit := m.gasLimit
	if gasLimit == 0 {
		to := m.contract
		estimated, err := m.backend.EstimateGas(ctx, ethereum.CallMsg{
			From: m.from,
			To:   &to,
			Data: data,
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		gasLimit = estimated + estimated/5
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &m.contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(m.chainID), m.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	if err := m.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	return signed, nil
}

func (m *EditionMinter) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.pollInterval
	policy.MaxInterval = 4 * m.pollInterval
	policy.MaxElapsedTime = m.receiptTimeout

	var receipt *types.Receipt
	operation := func() error {
		r, err := m.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("fetch receipt: %w", err))
		}
		receipt = r
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt for %s not found within %s", hash.Hex(), m.receiptTimeout)
		}
		return nil, err
	}
	return receipt, nil
}
