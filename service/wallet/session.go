// Package wallet holds the session state machine between the service and
// an EVM wallet provider. A session moves between disconnected,
// connecting, and connected; all transitions, whether user-initiated or
// provider-initiated, are serialized through one manager.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rugmarket/rugmarket/service/provider"
)

// State is a wallet session lifecycle phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Wallet ids accepted by Connect. Only MetaMask has a provider
// integration; the others are recognized but rejected.
const (
	WalletMetaMask      = "metamask"
	WalletWalletConnect = "walletconnect"
	WalletCoinbase      = "coinbase"
)

// Session is a point-in-time view of the wallet connection.
type Session struct {
	State       State     `json:"state"`
	WalletID    string    `json:"wallet_id,omitempty"`
	Address     string    `json:"address,omitempty"`
	ChainID     int64     `json:"chain_id,omitempty"`
	Balance     string    `json:"balance,omitempty"` // native currency, 4 decimal places
	ConnectedAt time.Time `json:"connected_at,omitempty"`
}

// Manager owns the wallet session. Connect, Disconnect, Refresh, and
// provider event application all queue on one operation mutex, so a
// connect arriving while another is in flight waits for it rather than
// racing it. Session reads go through a separate lock and never block
// behind an in-flight provider call.
type Manager struct {
	provider provider.Provider
	timeout  time.Duration
	logger   *slog.Logger

	opMu sync.Mutex

	stateMu sync.RWMutex
	session Session

	unsubscribe func()
	closed      bool
}

// NewManager creates a session manager bound to a provider. The manager
// owns its event subscription and releases it on Close. timeout bounds
// every provider call; zero means no deadline beyond the caller's.
func NewManager(p provider.Provider, timeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		provider: p,
		timeout:  timeout,
		logger:   logger,
		session:  Session{State: StateDisconnected},
	}
	if p != nil {
		m.unsubscribe = p.Subscribe(m.handleEvent)
	}
	return m
}

// Session returns the current session snapshot.
func (m *Manager) Session() Session {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.session
}

// Connected reports whether a wallet is currently connected. The market
// ledger consults this at submission time.
func (m *Manager) Connected() bool {
	return m.Session().State == StateConnected
}

// Address returns the primary connected account, or "" when
// disconnected.
func (m *Manager) Address() string {
	return m.Session().Address
}

// Connect establishes a session with the named wallet. While the
// request is in flight the session reads as connecting; on any failure
// it reverts to disconnected. Connecting while already connected
// replaces the session.
func (m *Manager) Connect(ctx context.Context, walletID string) (Session, error) {
	if walletID != WalletMetaMask {
		return m.Session(), fmt.Errorf("%w: %s", ErrUnsupportedWallet, walletID)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.closed || m.provider == nil {
		return m.Session(), ErrProviderNotAvailable
	}

	m.setSession(Session{State: StateConnecting, WalletID: walletID})

	session, err := m.establish(ctx, walletID)
	if err != nil {
		m.setSession(Session{State: StateDisconnected})
		m.logger.Warn("wallet connect failed", "wallet", walletID, "error", err)
		return m.Session(), err
	}

	m.setSession(session)
	m.logger.Info("wallet connected",
		"wallet", walletID,
		"address", session.Address,
		"chain_id", session.ChainID,
	)
	return session, nil
}

// establish runs the provider handshake: prompt for accounts, then read
// chain id and balance. Called with opMu held.
func (m *Manager) establish(ctx context.Context, walletID string) (Session, error) {
	callCtx, cancel := m.providerCtx(ctx)
	defer cancel()

	accounts, err := m.provider.RequestAccounts(callCtx)
	if err != nil {
		return Session{}, mapProviderError("eth_requestAccounts", err)
	}
	if len(accounts) == 0 {
		return Session{}, ErrNoAccounts
	}
	// Providers return checksummed mixed-case addresses; sessions hold
	// the canonical lowercase form.
	address := strings.ToLower(accounts[0])

	chainHex, err := m.provider.ChainID(callCtx)
	if err != nil {
		return Session{}, mapProviderError("eth_chainId", err)
	}
	chainID, err := provider.ParseChainID(chainHex)
	if err != nil {
		return Session{}, &ProviderError{Op: "eth_chainId", Err: err}
	}

	balance, err := m.readBalance(callCtx, address)
	if err != nil {
		return Session{}, err
	}

	return Session{
		State:       StateConnected,
		WalletID:    walletID,
		Address:     address,
		ChainID:     chainID,
		Balance:     balance,
		ConnectedAt: time.Now().UTC(),
	}, nil
}

// Disconnect clears the session. EIP-1193 has no wire-level disconnect,
// so this is purely local, and disconnecting twice is a no-op.
func (m *Manager) Disconnect() Session {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.Session().State != StateDisconnected {
		m.logger.Info("wallet disconnected")
	}
	m.setSession(Session{State: StateDisconnected})
	return m.Session()
}

// Refresh re-reads accounts, chain id, and balance from the provider.
// An empty account list means access was revoked provider-side, which
// disconnects the session. Refreshing a disconnected session is a no-op.
func (m *Manager) Refresh(ctx context.Context) (Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	current := m.Session()
	if current.State != StateConnected {
		return current, nil
	}
	return m.refreshLocked(ctx, current)
}

// refreshLocked re-reads session fields with opMu held.
func (m *Manager) refreshLocked(ctx context.Context, current Session) (Session, error) {
	callCtx, cancel := m.providerCtx(ctx)
	defer cancel()

	accounts, err := m.provider.Accounts(callCtx)
	if err != nil {
		return current, mapProviderError("eth_accounts", err)
	}
	if len(accounts) == 0 {
		m.setSession(Session{State: StateDisconnected})
		m.logger.Info("wallet access revoked by provider")
		return m.Session(), nil
	}
	address := strings.ToLower(accounts[0])

	chainHex, err := m.provider.ChainID(callCtx)
	if err != nil {
		return current, mapProviderError("eth_chainId", err)
	}
	chainID, err := provider.ParseChainID(chainHex)
	if err != nil {
		return current, &ProviderError{Op: "eth_chainId", Err: err}
	}

	balance, err := m.readBalance(callCtx, address)
	if err != nil {
		return current, err
	}

	current.Address = address
	current.ChainID = chainID
	current.Balance = balance
	m.setSession(current)
	return current, nil
}

// Close releases the provider subscription and disconnects. The manager
// must not be used afterwards.
func (m *Manager) Close() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.setSession(Session{State: StateDisconnected})
}

// handleEvent applies a provider-originated change to the session. It
// queues on the same mutex as user-initiated operations, so events and
// connects never interleave mid-transition.
func (m *Manager) handleEvent(e provider.Event) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.closed {
		return
	}
	current := m.Session()
	if current.State != StateConnected {
		return
	}

	switch e.Type {
	case provider.EventAccountsChanged:
		if len(e.Accounts) == 0 {
			m.setSession(Session{State: StateDisconnected})
			m.logger.Info("wallet disconnected by provider")
			return
		}
		// The first account is the new primary; re-read its balance.
		current.Address = strings.ToLower(e.Accounts[0])
		m.refreshBalanceLocked(&current)
		m.setSession(current)
		m.logger.Info("wallet account changed", "address", current.Address)

	case provider.EventChainChanged:
		chainID, err := provider.ParseChainID(e.ChainID)
		if err != nil {
			m.logger.Warn("ignoring chain change with bad chain id", "chain_id", e.ChainID, "error", err)
			return
		}
		current.ChainID = chainID
		m.refreshBalanceLocked(&current)
		m.setSession(current)
		m.logger.Info("wallet chain changed", "chain_id", chainID)
	}
}

// refreshBalanceLocked best-effort re-reads the balance after an event.
// A failed read keeps the stale balance rather than dropping the
// session.
func (m *Manager) refreshBalanceLocked(s *Session) {
	ctx, cancel := m.providerCtx(context.Background())
	defer cancel()

	balance, err := m.readBalance(ctx, s.Address)
	if err != nil {
		m.logger.Warn("balance refresh failed", "address", s.Address, "error", err)
		return
	}
	s.Balance = balance
}

func (m *Manager) readBalance(ctx context.Context, address string) (string, error) {
	weiHex, err := m.provider.Balance(ctx, address)
	if err != nil {
		return "", mapProviderError("eth_getBalance", err)
	}
	balance, err := provider.FormatBalance(weiHex)
	if err != nil {
		return "", &ProviderError{Op: "eth_getBalance", Err: err}
	}
	return balance, nil
}

func (m *Manager) setSession(s Session) {
	m.stateMu.Lock()
	m.session = s
	m.stateMu.Unlock()
}

func (m *Manager) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// mapProviderError folds a raw provider failure into the session error
// taxonomy.
func mapProviderError(op string, err error) error {
	switch {
	case provider.IsUserRejected(err):
		return fmt.Errorf("%s: %w", op, ErrUserRejected)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, ErrProviderTimeout)
	default:
		return &ProviderError{Op: op, Err: err}
	}
}
