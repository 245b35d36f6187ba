package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker"

	"github.com/rugmarket/rugmarket/service/metrics"
)

// RPCProvider talks to an Ethereum JSON-RPC endpoint. Calls go through a
// circuit breaker so a dead endpoint fails fast instead of stacking up
// timed-out requests. Since plain JSON-RPC has no push channel for
// account or chain changes, the provider detects them with a background
// poll loop and republishes them as events.
type RPCProvider struct {
	rpc     *gethrpc.Client
	eth     *ethclient.Client
	breaker *gobreaker.CircuitBreaker
	hub     *eventHub
	logger  *slog.Logger
	metrics *metrics.Metrics

	pollInterval time.Duration
	stop         chan struct{}
	wg           sync.WaitGroup

	mu           sync.Mutex
	lastAccounts []string
	lastChainID  string
}

// NewRPCProvider dials the endpoint and starts change detection. A
// pollInterval of zero disables the poll loop (events then only come
// from explicit calls in tests). m may be nil.
func NewRPCProvider(ctx context.Context, url string, pollInterval time.Duration, m *metrics.Metrics, logger *slog.Logger) (*RPCProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rpcClient, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum endpoint: %w", err)
	}

	p := &RPCProvider{
		rpc: rpcClient,
		eth: ethclient.NewClient(rpcClient),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "eth-provider",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("provider circuit breaker state change",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
				if m != nil {
					// gobreaker.State is 0=closed, 1=half-open, 2=open,
					// matching the gauge's documented encoding.
					m.RecordBreakerState(name, float64(to))
				}
			},
		}),
		hub:          newEventHub(),
		logger:       logger,
		metrics:      m,
		pollInterval: pollInterval,
		stop:         make(chan struct{}),
	}

	if pollInterval > 0 {
		p.wg.Add(1)
		go p.pollLoop()
	}

	logger.Info("ethereum provider initialized", "url", url, "poll_interval", pollInterval)
	return p, nil
}

// RequestAccounts prompts for account access via eth_requestAccounts.
func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	err := p.call(ctx, &accounts, "eth_requestAccounts")
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// Accounts returns the authorized accounts without prompting.
func (p *RPCProvider) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	err := p.call(ctx, &accounts, "eth_accounts")
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// ChainID returns the active chain id as a hex string.
func (p *RPCProvider) ChainID(ctx context.Context) (string, error) {
	var chainID string
	err := p.call(ctx, &chainID, "eth_chainId")
	if err != nil {
		return "", err
	}
	return chainID, nil
}

// Balance returns the latest balance of an address as hex wei.
func (p *RPCProvider) Balance(ctx context.Context, address string) (string, error) {
	var balance string
	err := p.call(ctx, &balance, "eth_getBalance", address, "latest")
	if err != nil {
		return "", err
	}
	return balance, nil
}

// Subscribe registers a handler for provider events.
func (p *RPCProvider) Subscribe(h Handler) func() {
	return p.hub.subscribe(h)
}

// InspectContract reads deployed code and balance for an address.
func (p *RPCProvider) InspectContract(ctx context.Context, address string) (*ContractState, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	addr := common.HexToAddress(address)

	start := time.Now()
	result, err := p.breaker.Execute(func() (interface{}, error) {
		code, err := p.eth.CodeAt(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read code: %w", err)
		}
		balance, err := p.eth.BalanceAt(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read balance: %w", err)
		}
		return &ContractState{
			Exists:     len(code) > 0,
			CodeSize:   len(code),
			BalanceWei: "0x" + balance.Text(16),
		}, nil
	})
	p.recordCall("inspect_contract", err, start)
	if err != nil {
		return nil, mapRPCError(err)
	}
	return result.(*ContractState), nil
}

// Close stops the poll loop and releases the connection.
func (p *RPCProvider) Close() error {
	close(p.stop)
	p.wg.Wait()
	p.hub.close()
	p.rpc.Close()
	p.logger.Info("ethereum provider closed")
	return nil
}

// call runs one JSON-RPC request through the circuit breaker.
func (p *RPCProvider) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	start := time.Now()
	_, err := p.breaker.Execute(func() (interface{}, error) {
		if err := p.rpc.CallContext(ctx, result, method, args...); err != nil {
			return nil, err
		}
		return nil, nil
	})
	p.recordCall(method, err, start)
	if err != nil {
		return mapRPCError(err)
	}
	return nil
}

func (p *RPCProvider) recordCall(method string, err error, start time.Time) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordRPCCall(method, status, time.Since(start).Seconds())
}

// mapRPCError converts go-ethereum rpc errors into RequestError so
// callers can branch on EIP-1193 codes (4001 = user rejected).
func mapRPCError(err error) error {
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return &RequestError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}
	return err
}

// pollLoop detects account and chain changes and republishes them as
// provider events.
func (p *RPCProvider) pollLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.detectChanges()
		case <-p.stop:
			return
		}
	}
}

func (p *RPCProvider) detectChanges() {
	ctx, cancel := context.WithTimeout(context.Background(), p.pollInterval)
	defer cancel()

	accounts, err := p.Accounts(ctx)
	if err != nil {
		p.logger.Debug("change detection: accounts read failed", "error", err)
		return
	}
	chainID, err := p.ChainID(ctx)
	if err != nil {
		p.logger.Debug("change detection: chain id read failed", "error", err)
		return
	}

	p.mu.Lock()
	accountsChanged := !equalAccounts(p.lastAccounts, accounts)
	chainChanged := p.lastChainID != "" && p.lastChainID != chainID
	firstObservation := p.lastChainID == ""
	p.lastAccounts = accounts
	p.lastChainID = chainID
	p.mu.Unlock()

	// The first poll establishes a baseline; only subsequent deltas
	// are events.
	if firstObservation {
		return
	}

	if accountsChanged {
		p.logger.Debug("provider accounts changed", "count", len(accounts))
		p.hub.publish(Event{Type: EventAccountsChanged, Accounts: accounts})
	}
	if chainChanged {
		p.logger.Debug("provider chain changed", "chain_id", chainID)
		p.hub.publish(Event{Type: EventChainChanged, ChainID: chainID})
	}
}

func equalAccounts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
