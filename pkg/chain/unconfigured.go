package chain

import (
	"context"
	"errors"

	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
)

const msgChainMisconfigured = "Server misconfiguration: chain signer not set"

// IsConfigError reports whether err came from missing chain settings rather than the RPC.
func IsConfigError(err error) bool {
	return errors.Is(err, errRPCURLRequired) || errors.Is(err, errContractMissing) || errors.Is(err, errSignerMissing)
}

type unconfigured struct {
	cause error
}

// Unconfigured returns a Minter that rejects every call as a misconfiguration.
// The API keeps serving scans and checkout while the chain settings are absent.
func Unconfigured(cause error) Minter {
	return unconfigured{cause: cause}
}

func (u unconfigured) Submit(context.Context, string, string, int64) (string, error) {
	return "", u.err()
}

func (u unconfigured) WaitMined(context.Context, string) error {
	return u.err()
}

func (u unconfigured) ReceiptStatus(context.Context, string) (ReceiptState, error) {
	return ReceiptPending, u.err()
}

func (u unconfigured) err() error {
	return pkgerrors.Wrap(pkgerrors.CodeMisconfigured, u.cause, msgChainMisconfigured)
}
