package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotAvailable means no wallet provider is wired in, so
	// connection is impossible rather than merely failing.
	ErrProviderNotAvailable = errors.New("wallet provider not available")

	// ErrUserRejected means the user declined the connection prompt
	// (EIP-1193 code 4001). This is a normal outcome, not a fault.
	ErrUserRejected = errors.New("connection request rejected by user")

	// ErrNoAccounts means the provider granted access but returned an
	// empty account list.
	ErrNoAccounts = errors.New("no accounts authorized")

	// ErrUnsupportedWallet means the requested wallet id has no provider
	// integration.
	ErrUnsupportedWallet = errors.New("unsupported wallet")

	// ErrProviderTimeout means the provider did not answer within the
	// configured deadline.
	ErrProviderTimeout = errors.New("wallet provider timed out")
)

// ProviderError wraps a provider failure that is not one of the sentinel
// conditions above, preserving which operation failed.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
