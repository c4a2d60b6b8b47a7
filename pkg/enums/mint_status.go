package enums

import "fmt"

// MintStatus tracks an nft_tokens row through pending -> minting -> minted.
// minting is a claim held by exactly one worker while the chain call is in flight.
type MintStatus string

const (
	MintStatusPending MintStatus = "pending"
	MintStatusMinting MintStatus = "minting"
	MintStatusMinted  MintStatus = "minted"
)

var validMintStatuses = []MintStatus{
	MintStatusPending,
	MintStatusMinting,
	MintStatusMinted,
}

// String implements fmt.Stringer.
func (m MintStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MintStatus.
func (m MintStatus) IsValid() bool {
	for _, candidate := range validMintStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMintStatus converts raw input into a MintStatus.
func ParseMintStatus(value string) (MintStatus, error) {
	for _, candidate := range validMintStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mint status %q", value)
}
