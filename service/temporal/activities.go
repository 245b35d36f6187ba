package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rugmarket/rugmarket/service/market"
	"github.com/rugmarket/rugmarket/service/metrics"
	"github.com/rugmarket/rugmarket/service/provider"
	"github.com/rugmarket/rugmarket/service/scan"
)

// ScanContractInput contains the input parameters for scanning a contract.
type ScanContractInput struct {
	ContractAddress string `json:"contract_address"`
	// SeedMarket controls whether a prediction market is created from
	// the scan result. Rescans leave an existing market alone either way.
	SeedMarket bool `json:"seed_market"`
}

// ScanContractResult contains the result of a contract scan workflow run.
type ScanContractResult struct {
	ContractAddress   string    `json:"contract_address"`
	ScanID            string    `json:"scan_id"`
	RiskLevel         string    `json:"risk_level"`
	ExploitLikelihood int       `json:"exploit_likelihood"`
	ContractExists    *bool     `json:"contract_exists,omitempty"`
	CodeSize          int       `json:"code_size"`
	MarketSeeded      bool      `json:"market_seeded"`
	ScanTime          time.Time `json:"scan_time"`
	Error             *string   `json:"error,omitempty"`
}

// RunScanInput contains parameters for the RunScan activity.
type RunScanInput struct {
	ContractAddress string `json:"contract_address"`
}

// RunScanResult contains the result of the RunScan activity.
type RunScanResult struct {
	Result *scan.Result `json:"result"`
}

// InspectContractInput contains parameters for the InspectContract activity.
type InspectContractInput struct {
	ContractAddress string `json:"contract_address"`
}

// InspectContractResult contains the result of the InspectContract activity.
type InspectContractResult struct {
	State *provider.ContractState `json:"state"`
}

// ArchiveScanInput contains parameters for the ArchiveScan activity.
type ArchiveScanInput struct {
	Result *scan.Result `json:"result"`
}

// ArchiveScanResult contains the result of the ArchiveScan activity.
type ArchiveScanResult struct {
	Archived bool `json:"archived"`
}

// SeedMarketInput contains parameters for the SeedMarket activity.
type SeedMarketInput struct {
	ContractAddress string          `json:"contract_address"`
	Seed            scan.MarketSeed `json:"seed"`
}

// SeedMarketResult contains the result of the SeedMarket activity.
type SeedMarketResult struct {
	Seeded        bool `json:"seeded"`
	AlreadySeeded bool `json:"already_seeded"`
}

// StoreInterface defines the database operations needed by activities.
// This allows for easy mocking in tests.
type StoreInterface interface {
	CreateScan(ctx context.Context, result *scan.Result) error
}

// MarketSeederInterface seeds prediction markets from scan results. In
// the worker this is the service HTTP client, so the server's ledger
// stays the single authority for market state.
type MarketSeederInterface interface {
	SeedMarket(ctx context.Context, contractAddress string, seed scan.MarketSeed) (*market.Market, error)
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	store     StoreInterface
	scanner   scan.Scanner
	inspector provider.Inspector
	seeder    MarketSeederInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded. inspector may be nil when
// no chain endpoint is configured.
func NewActivities(
	store StoreInterface,
	scanner scan.Scanner,
	inspector provider.Inspector,
	seeder MarketSeederInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:     store,
		scanner:   scanner,
		inspector: inspector,
		seeder:    seeder,
		metrics:   m,
		logger:    logger,
	}
}

// RunScan executes the contract scan heuristics.
func (a *Activities) RunScan(ctx context.Context, input RunScanInput) (*RunScanResult, error) {
	a.logger.DebugContext(ctx, "running contract scan", "contract", input.ContractAddress)

	start := time.Now()
	result, err := a.scanner.Scan(ctx, input.ContractAddress)
	duration := time.Since(start).Seconds()

	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordScan("unknown", "error", duration)
		}
		return nil, fmt.Errorf("scan failed for %s: %w", input.ContractAddress, err)
	}

	if a.metrics != nil {
		a.metrics.RecordScan(string(result.Risk.Level), "success", duration)
		a.metrics.RecordActivityDuration("RunScan", input.ContractAddress, duration)
	}

	a.logger.InfoContext(ctx, "contract scan completed",
		"contract", result.ContractAddress,
		"risk_level", result.Risk.Level,
		"exploit_likelihood", result.ExploitLikelihood,
	)

	return &RunScanResult{Result: result}, nil
}

// InspectContract reads on-chain state for the contract address.
func (a *Activities) InspectContract(ctx context.Context, input InspectContractInput) (*InspectContractResult, error) {
	if a.inspector == nil {
		a.logger.DebugContext(ctx, "no chain inspector configured, skipping inspection",
			"contract", input.ContractAddress,
		)
		return &InspectContractResult{}, nil
	}

	start := time.Now()
	state, err := a.inspector.InspectContract(ctx, input.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect contract %s: %w", input.ContractAddress, err)
	}
	if a.metrics != nil {
		a.metrics.RecordActivityDuration("InspectContract", input.ContractAddress, time.Since(start).Seconds())
	}

	a.logger.InfoContext(ctx, "inspected contract",
		"contract", input.ContractAddress,
		"exists", state.Exists,
		"code_size", state.CodeSize,
	)

	return &InspectContractResult{State: state}, nil
}

// ArchiveScan writes the scan result to the audit archive.
func (a *Activities) ArchiveScan(ctx context.Context, input ArchiveScanInput) (*ArchiveScanResult, error) {
	if input.Result == nil {
		return nil, errors.New("archive scan called with nil result")
	}

	start := time.Now()
	err := a.store.CreateScan(ctx, input.Result)
	if a.metrics != nil {
		a.metrics.RecordDBQuery("insert", "scans", time.Since(start).Seconds(), err)
		a.metrics.RecordActivityDuration("ArchiveScan", input.Result.ContractAddress, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to archive scan %s: %w", input.Result.ID, err)
	}

	a.logger.InfoContext(ctx, "archived scan result",
		"scan_id", input.Result.ID,
		"contract", input.Result.ContractAddress,
	)

	return &ArchiveScanResult{Archived: true}, nil
}

// SeedMarket creates the prediction market for a freshly scanned
// contract. An already-seeded market is a normal outcome on rescans,
// not a failure.
func (a *Activities) SeedMarket(ctx context.Context, input SeedMarketInput) (*SeedMarketResult, error) {
	start := time.Now()
	m, err := a.seeder.SeedMarket(ctx, input.ContractAddress, input.Seed)
	if a.metrics != nil {
		a.metrics.RecordActivityDuration("SeedMarket", input.ContractAddress, time.Since(start).Seconds())
	}
	if errors.Is(err, market.ErrAlreadySeeded) {
		a.logger.InfoContext(ctx, "market already seeded, leaving community state alone",
			"contract", input.ContractAddress,
		)
		if a.metrics != nil {
			a.metrics.RecordMarketSeeded("already_seeded")
		}
		return &SeedMarketResult{AlreadySeeded: true}, nil
	}
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordMarketSeeded("error")
		}
		return nil, fmt.Errorf("failed to seed market for %s: %w", input.ContractAddress, err)
	}

	if a.metrics != nil {
		a.metrics.RecordMarketSeeded("seeded")
	}

	a.logger.InfoContext(ctx, "market seeded from scan",
		"contract", m.ContractAddress,
		"yes_percentage", m.YesPercentage,
		"total_staked", m.TotalStaked,
	)

	return &SeedMarketResult{Seeded: true}, nil
}
