// Package provider is the boundary to an external EVM wallet provider.
// It mirrors the EIP-1193 surface the service consumes: account access,
// chain id, balance reads, and change notifications. Implementations are
// injected explicitly; nothing in this package is reachable as a global.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// EventType identifies a provider-originated notification.
type EventType string

const (
	// EventAccountsChanged fires when the set of authorized accounts
	// changes. An empty account list means the user disconnected from
	// the provider side.
	EventAccountsChanged EventType = "accountsChanged"

	// EventChainChanged fires when the active network changes. The
	// payload is the new chain id as a hex string.
	EventChainChanged EventType = "chainChanged"
)

// Event is a provider notification delivered to subscribers.
type Event struct {
	Type     EventType
	Accounts []string // set for accountsChanged
	ChainID  string   // hex chain id, set for chainChanged
}

// Handler receives provider events. Handlers must not block.
type Handler func(Event)

// Provider is the contract consumed by the wallet session manager.
// Chain ids and balances are returned in their wire encoding (hex
// strings); parsing belongs to the caller via ParseChainID and
// FormatBalance.
type Provider interface {
	// RequestAccounts prompts the user for account access and returns
	// the authorized accounts (eth_requestAccounts).
	RequestAccounts(ctx context.Context) ([]string, error)

	// Accounts returns the currently authorized accounts without
	// prompting (eth_accounts).
	Accounts(ctx context.Context) ([]string, error)

	// ChainID returns the active chain id as a hex string (eth_chainId).
	ChainID(ctx context.Context) (string, error)

	// Balance returns the native-currency balance of an address as hex
	// wei (eth_getBalance at the latest block).
	Balance(ctx context.Context, address string) (string, error)

	// Subscribe registers a handler for provider events and returns an
	// unsubscribe function. The subscriber owns the returned handle and
	// must call it on teardown.
	Subscribe(h Handler) (unsubscribe func())

	// Close releases the provider connection. Subscribed handlers
	// receive no further events after Close returns.
	Close() error
}

// ContractState is a point-in-time view of an on-chain account, used by
// the scan pipeline to record whether a scanned address actually holds
// code.
type ContractState struct {
	Exists     bool   `json:"exists"`    // true when code is deployed at the address
	CodeSize   int    `json:"code_size"` // bytes of deployed code
	BalanceWei string `json:"balance_wei"`
}

// Inspector reads contract state from the chain. Separate from Provider
// because it serves the scan pipeline, not the wallet session.
type Inspector interface {
	InspectContract(ctx context.Context, address string) (*ContractState, error)
}

// RequestError is a provider-level failure carrying an EIP-1193 error
// code. Code 4001 is the user rejecting a prompt.
type RequestError struct {
	Code    int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("provider request failed (code %d): %s", e.Code, e.Message)
}

const userRejectedCode = 4001

// IsUserRejected reports whether err is the user declining a provider
// prompt.
func IsUserRejected(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Code == userRejectedCode
}

// ParseChainID parses a hex chain id string ("0x1") into an integer.
func ParseChainID(hexID string) (int64, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hexID), "0x")
	if s == "" {
		return 0, fmt.Errorf("empty chain id")
	}
	id, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return 0, fmt.Errorf("invalid hex chain id %q", hexID)
	}
	if !id.IsInt64() {
		return 0, fmt.Errorf("chain id %q out of range", hexID)
	}
	return id.Int64(), nil
}

var weiPerEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// FormatBalance converts hex-encoded wei into a native-currency decimal
// string with 4 decimal places ("1.5000").
func FormatBalance(weiHex string) (string, error) {
	s := strings.TrimPrefix(strings.TrimSpace(weiHex), "0x")
	if s == "" {
		return "", fmt.Errorf("empty balance")
	}
	wei, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return "", fmt.Errorf("invalid hex balance %q", weiHex)
	}
	eth := new(big.Rat).SetFrac(wei, weiPerEth)
	return eth.FloatString(4), nil
}
