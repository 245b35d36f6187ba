// Package market keeps the community prediction ledger: one market per
// scanned contract, seeded from a scan result and moved by community
// stake submissions. The ledger is the authoritative in-memory state;
// persistence and fanout hang off it as best-effort sinks.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rugmarket/rugmarket/service/scan"
)

// Prediction is the side of a market a participant stakes on.
type Prediction string

const (
	// PredictionYes stakes on the contract being exploited.
	PredictionYes Prediction = "yes"
	// PredictionNo stakes on the contract holding.
	PredictionNo Prediction = "no"
)

// Valid reports whether the prediction is a known side.
func (p Prediction) Valid() bool {
	return p == PredictionYes || p == PredictionNo
}

// Odds bounds. A submission moves the yes side by oddsStep and the
// clamp keeps both sides priced; neither side ever reads as certain.
const (
	oddsStep = 2
	oddsMin  = 5
	oddsMax  = 95
)

// Market is the public state of one contract's prediction market.
type Market struct {
	ContractAddress string    `json:"contract_address"`
	YesPercentage   int       `json:"yes_percentage"`
	NoPercentage    int       `json:"no_percentage"`
	TotalStaked     float64   `json:"total_staked"`
	Participants    int       `json:"participants"`
	SeededAt        time.Time `json:"seeded_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PredictionRecord is one accepted submission, as handed to sinks and
// the audit archive.
type PredictionRecord struct {
	ID              string     `json:"id"`
	ContractAddress string     `json:"contract_address"`
	Wallet          string     `json:"wallet"`
	Prediction      Prediction `json:"prediction"`
	Amount          float64    `json:"amount"`
	YesPercentage   int        `json:"yes_percentage"` // odds after this submission
	SubmittedAt     time.Time  `json:"submitted_at"`
}

// WalletGate answers whether a wallet session is active right now.
// Satisfied by the wallet session manager.
type WalletGate interface {
	Connected() bool
	Address() string
}

// Sink receives ledger updates after they are applied. Sink failures
// are logged and never roll back the ledger.
type Sink interface {
	MarketSeeded(ctx context.Context, m Market) error
	PredictionRecorded(ctx context.Context, m Market, rec PredictionRecord) error
}

// Ledger holds all markets. Lookups take the map lock; mutations take
// the per-market lock, so submissions against different contracts never
// contend and submissions against the same contract never lose updates.
type Ledger struct {
	gate     WalletGate
	sink     Sink
	minStake float64
	maxStake float64
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu        sync.Mutex
	market    Market
	discarded bool
}

// NewLedger creates an empty ledger. gate and sink may be nil: a nil
// gate rejects every submission, a nil sink drops updates.
func NewLedger(gate WalletGate, sink Sink, minStake, maxStake float64, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		gate:     gate,
		sink:     sink,
		minStake: minStake,
		maxStake: maxStake,
		logger:   logger,
		entries:  make(map[string]*entry),
	}
}

// Seed creates the market for a contract from its scan result. Seeding
// an existing market fails; community state is never overwritten.
func (l *Ledger) Seed(ctx context.Context, address string, seed scan.MarketSeed) (Market, error) {
	if err := scan.ValidateAddress(address); err != nil {
		return Market{}, err
	}
	if err := validateSeed(seed); err != nil {
		return Market{}, err
	}
	address = scan.NormalizeAddress(address)

	now := time.Now().UTC()
	m := Market{
		ContractAddress: address,
		YesPercentage:   seed.YesPercentage,
		NoPercentage:    100 - seed.YesPercentage,
		TotalStaked:     seed.TotalStaked,
		Participants:    seed.Participants,
		SeededAt:        now,
		UpdatedAt:       now,
	}

	l.mu.Lock()
	if _, exists := l.entries[address]; exists {
		l.mu.Unlock()
		return Market{}, fmt.Errorf("%w: %s", ErrAlreadySeeded, address)
	}
	l.entries[address] = &entry{market: m}
	l.mu.Unlock()

	l.logger.Info("market seeded",
		"contract", address,
		"yes_percentage", m.YesPercentage,
		"total_staked", m.TotalStaked,
	)

	if l.sink != nil {
		if err := l.sink.MarketSeeded(ctx, m); err != nil {
			l.logger.Warn("market sink failed on seed", "contract", address, "error", err)
		}
	}
	return m, nil
}

// Submit records a stake on one side of a market. The submitter must
// have an active wallet session at the moment of submission. The yes
// side moves two points toward the chosen side, clamped to [5, 95];
// total staked and participant count only ever grow.
func (l *Ledger) Submit(ctx context.Context, address string, prediction Prediction, amount float64) (Market, error) {
	if !prediction.Valid() {
		return Market{}, fmt.Errorf("%w: %q", ErrInvalidPrediction, prediction)
	}
	if l.gate == nil || !l.gate.Connected() {
		return Market{}, ErrWalletNotConnected
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < l.minStake || amount > l.maxStake {
		return Market{}, fmt.Errorf("%w: %v not in [%v, %v]", ErrInvalidAmount, amount, l.minStake, l.maxStake)
	}
	if err := scan.ValidateAddress(address); err != nil {
		return Market{}, err
	}
	address = scan.NormalizeAddress(address)

	l.mu.RLock()
	e, ok := l.entries[address]
	l.mu.RUnlock()
	if !ok {
		return Market{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}

	e.mu.Lock()
	// The entry can be discarded between the map lookup and here; the
	// tombstone keeps such a submit from mutating a removed market.
	if e.discarded {
		e.mu.Unlock()
		return Market{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	if prediction == PredictionYes {
		e.market.YesPercentage = clampOdds(e.market.YesPercentage + oddsStep)
	} else {
		e.market.YesPercentage = clampOdds(e.market.YesPercentage - oddsStep)
	}
	e.market.NoPercentage = 100 - e.market.YesPercentage
	e.market.TotalStaked += amount
	e.market.Participants++
	e.market.UpdatedAt = time.Now().UTC()
	m := e.market
	e.mu.Unlock()

	rec := PredictionRecord{
		ID:              uuid.NewString(),
		ContractAddress: address,
		Wallet:          l.gate.Address(),
		Prediction:      prediction,
		Amount:          amount,
		YesPercentage:   m.YesPercentage,
		SubmittedAt:     m.UpdatedAt,
	}

	l.logger.Info("prediction recorded",
		"contract", address,
		"prediction", prediction,
		"amount", amount,
		"yes_percentage", m.YesPercentage,
	)

	if l.sink != nil {
		if err := l.sink.PredictionRecorded(ctx, m, rec); err != nil {
			l.logger.Warn("market sink failed on prediction", "contract", address, "error", err)
		}
	}
	return m, nil
}

// Snapshot returns a copy of one market.
func (l *Ledger) Snapshot(address string) (Market, error) {
	if err := scan.ValidateAddress(address); err != nil {
		return Market{}, err
	}
	address = scan.NormalizeAddress(address)

	l.mu.RLock()
	e, ok := l.entries[address]
	l.mu.RUnlock()
	if !ok {
		return Market{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.discarded {
		return Market{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return e.market, nil
}

// All returns copies of every market, ordered by contract address.
func (l *Ledger) All() []Market {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	markets := make([]Market, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.discarded {
			markets = append(markets, e.market)
		}
		e.mu.Unlock()
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].ContractAddress < markets[j].ContractAddress
	})
	return markets
}

// Discard drops a market, reporting whether it existed. Used when a
// fresh scan replaces the previous seed.
func (l *Ledger) Discard(address string) bool {
	address = scan.NormalizeAddress(address)

	l.mu.Lock()
	e, ok := l.entries[address]
	if !ok {
		l.mu.Unlock()
		return false
	}
	delete(l.entries, address)
	l.mu.Unlock()

	// Tombstone the entry so an in-flight submit that already resolved
	// it cannot record a stake against the removed market.
	e.mu.Lock()
	e.discarded = true
	e.mu.Unlock()

	l.logger.Info("market discarded", "contract", address)
	return true
}

// validateSeed bounds-checks a seed before it becomes a market. Seeds
// arrive over HTTP as well as from the scanner, so the ledger cannot
// rely on upstream validation.
func validateSeed(seed scan.MarketSeed) error {
	if seed.YesPercentage < 0 || seed.YesPercentage > 100 {
		return fmt.Errorf("%w: yes percentage %d out of range [0,100]", ErrInvalidSeed, seed.YesPercentage)
	}
	if math.IsNaN(seed.TotalStaked) || math.IsInf(seed.TotalStaked, 0) || seed.TotalStaked < 0 {
		return fmt.Errorf("%w: total staked %v must be a non-negative finite number", ErrInvalidSeed, seed.TotalStaked)
	}
	if seed.Participants < 0 {
		return fmt.Errorf("%w: participants %d is negative", ErrInvalidSeed, seed.Participants)
	}
	return nil
}

func clampOdds(v int) int {
	if v < oddsMin {
		return oddsMin
	}
	if v > oddsMax {
		return oddsMax
	}
	return v
}
