package provider

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockProvider is an in-memory Provider for tests and demo mode. All
// responses are scriptable and events are injected manually.
type MockProvider struct {
	mu sync.Mutex

	accounts []string
	chainID  string
	balances map[string]string

	requestAccountsErr error
	accountsErr        error
	chainIDErr         error
	balanceErr         error

	// callDelay makes every call sleep first, for deadline tests.
	callDelay time.Duration

	requestAccountsCalls int
	closed               bool

	hub *eventHub
}

// NewMockProvider creates a mock provider on chain 0x1 with no
// authorized accounts.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		chainID:  "0x1",
		balances: make(map[string]string),
		hub:      newEventHub(),
	}
}

// RequestAccounts returns the scripted accounts or error.
func (m *MockProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestAccountsCalls++
	if m.requestAccountsErr != nil {
		return nil, m.requestAccountsErr
	}
	return append([]string(nil), m.accounts...), nil
}

// Accounts returns the scripted accounts without counting as a prompt.
func (m *MockProvider) Accounts(ctx context.Context) ([]string, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accountsErr != nil {
		return nil, m.accountsErr
	}
	return append([]string(nil), m.accounts...), nil
}

// ChainID returns the scripted chain id.
func (m *MockProvider) ChainID(ctx context.Context) (string, error) {
	if err := m.sleep(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chainIDErr != nil {
		return "", m.chainIDErr
	}
	return m.chainID, nil
}

// Balance returns the scripted balance for an address, defaulting to 0x0.
func (m *MockProvider) Balance(ctx context.Context, address string) (string, error) {
	if err := m.sleep(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceErr != nil {
		return "", m.balanceErr
	}
	if balance, ok := m.balances[strings.ToLower(address)]; ok {
		return balance, nil
	}
	return "0x0", nil
}

// Subscribe registers a handler for injected events.
func (m *MockProvider) Subscribe(h Handler) func() {
	return m.hub.subscribe(h)
}

// InspectContract returns a canned contract state: every address exists
// with a small code blob and zero balance.
func (m *MockProvider) InspectContract(ctx context.Context, address string) (*ContractState, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	return &ContractState{Exists: true, CodeSize: 512, BalanceWei: "0x0"}, nil
}

// Close marks the provider closed and drops subscribers.
func (m *MockProvider) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.close()
	return nil
}

// EmitAccountsChanged injects an accountsChanged event and updates the
// scripted account list to match.
func (m *MockProvider) EmitAccountsChanged(accounts []string) {
	m.mu.Lock()
	m.accounts = append([]string(nil), accounts...)
	m.mu.Unlock()
	m.hub.publish(Event{Type: EventAccountsChanged, Accounts: accounts})
}

// EmitChainChanged injects a chainChanged event and updates the scripted
// chain id to match.
func (m *MockProvider) EmitChainChanged(chainID string) {
	m.mu.Lock()
	m.chainID = chainID
	m.mu.Unlock()
	m.hub.publish(Event{Type: EventChainChanged, ChainID: chainID})
}

// SetAccounts scripts the authorized account list.
func (m *MockProvider) SetAccounts(accounts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append([]string(nil), accounts...)
}

// SetChainID scripts the chain id.
func (m *MockProvider) SetChainID(chainID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chainID = chainID
}

// SetBalance scripts the balance (hex wei) for an address. Lookups are
// case-insensitive, as with a real endpoint.
func (m *MockProvider) SetBalance(address, weiHex string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[strings.ToLower(address)] = weiHex
}

// SetRequestAccountsError makes RequestAccounts fail.
func (m *MockProvider) SetRequestAccountsError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestAccountsErr = err
}

// SetAccountsError makes Accounts fail.
func (m *MockProvider) SetAccountsError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountsErr = err
}

// SetChainIDError makes ChainID fail.
func (m *MockProvider) SetChainIDError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chainIDErr = err
}

// SetBalanceError makes Balance fail.
func (m *MockProvider) SetBalanceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceErr = err
}

// SetCallDelay makes every call sleep, for timeout tests.
func (m *MockProvider) SetCallDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callDelay = d
}

// RequestAccountsCalls returns how many times the user was prompted.
func (m *MockProvider) RequestAccountsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestAccountsCalls
}

// IsClosed reports whether Close was called.
func (m *MockProvider) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockProvider) sleep(ctx context.Context) error {
	m.mu.Lock()
	delay := m.callDelay
	m.mu.Unlock()

	if delay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
