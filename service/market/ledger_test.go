package market

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugmarket/rugmarket/service/scan"
)

const (
	contractAddr  = "0x1234567890123456789012345678901234567890"
	otherContract = "0xabcdef0123456789abcdef0123456789abcdef01"
	walletAddr    = "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"
)

// stubGate is a settable wallet connectivity gate.
type stubGate struct {
	mu        sync.Mutex
	connected bool
	address   string
}

func (g *stubGate) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *stubGate) Address() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.address
}

func (g *stubGate) set(connected bool, address string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = connected
	g.address = address
}

// mockSink records ledger updates and can be made to fail.
type mockSink struct {
	mu          sync.Mutex
	seeded      []Market
	predictions []PredictionRecord
	err         error
}

func (s *mockSink) MarketSeeded(_ context.Context, m Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.seeded = append(s.seeded, m)
	return nil
}

func (s *mockSink) PredictionRecorded(_ context.Context, _ Market, rec PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.predictions = append(s.predictions, rec)
	return nil
}

func (s *mockSink) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func newTestLedger(t *testing.T) (*Ledger, *stubGate, *mockSink) {
	t.Helper()
	gate := &stubGate{}
	gate.set(true, walletAddr)
	sink := &mockSink{}
	return NewLedger(gate, sink, 1, 1000, nil), gate, sink
}

func seedMarket(t *testing.T, l *Ledger, address string, yes int) Market {
	t.Helper()
	m, err := l.Seed(context.Background(), address, scan.MarketSeed{
		YesPercentage: yes,
		TotalStaked:   10000,
		Participants:  100,
	})
	require.NoError(t, err)
	return m
}

func TestLedger_Seed(t *testing.T) {
	ledger, _, sink := newTestLedger(t)

	m := seedMarket(t, ledger, contractAddr, 60)
	assert.Equal(t, contractAddr, m.ContractAddress)
	assert.Equal(t, 60, m.YesPercentage)
	assert.Equal(t, 40, m.NoPercentage)
	assert.Equal(t, 10000.0, m.TotalStaked)
	assert.Equal(t, 100, m.Participants)
	assert.False(t, m.SeededAt.IsZero())

	require.Len(t, sink.seeded, 1)
	assert.Equal(t, m, sink.seeded[0])

	// Seeding again never overwrites community state.
	_, err := ledger.Seed(context.Background(), contractAddr, scan.MarketSeed{YesPercentage: 20})
	assert.ErrorIs(t, err, ErrAlreadySeeded)

	got, err := ledger.Snapshot(contractAddr)
	require.NoError(t, err)
	assert.Equal(t, 60, got.YesPercentage)
}

func TestLedger_SeedRejectsBadAddress(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.Seed(context.Background(), "0x123", scan.MarketSeed{YesPercentage: 50})
	assert.Error(t, err)
}

func TestLedger_SeedRejectsOutOfRangeSeed(t *testing.T) {
	tests := []struct {
		name string
		seed scan.MarketSeed
	}{
		{"percentage above 100", scan.MarketSeed{YesPercentage: 150, TotalStaked: 1000, Participants: 10}},
		{"negative percentage", scan.MarketSeed{YesPercentage: -5, TotalStaked: 1000, Participants: 10}},
		{"negative staked", scan.MarketSeed{YesPercentage: 50, TotalStaked: -5000, Participants: 10}},
		{"NaN staked", scan.MarketSeed{YesPercentage: 50, TotalStaked: math.NaN(), Participants: 10}},
		{"infinite staked", scan.MarketSeed{YesPercentage: 50, TotalStaked: math.Inf(1), Participants: 10}},
		{"negative participants", scan.MarketSeed{YesPercentage: 50, TotalStaked: 1000, Participants: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, _, sink := newTestLedger(t)

			_, err := ledger.Seed(context.Background(), contractAddr, tt.seed)
			assert.ErrorIs(t, err, ErrInvalidSeed)

			// The rejected seed must not create a market.
			_, err = ledger.Snapshot(contractAddr)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Empty(t, sink.seeded)
		})
	}
}

func TestLedger_SubmitMovesOdds(t *testing.T) {
	ledger, _, sink := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 50)

	m, err := ledger.Submit(context.Background(), contractAddr, PredictionYes, 100)
	require.NoError(t, err)
	assert.Equal(t, 52, m.YesPercentage)
	assert.Equal(t, 48, m.NoPercentage)
	assert.Equal(t, 10100.0, m.TotalStaked)
	assert.Equal(t, 101, m.Participants)

	m, err = ledger.Submit(context.Background(), contractAddr, PredictionNo, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, m.YesPercentage)
	assert.Equal(t, 50, m.NoPercentage)
	assert.Equal(t, 10150.0, m.TotalStaked)
	assert.Equal(t, 102, m.Participants)

	require.Len(t, sink.predictions, 2)
	rec := sink.predictions[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, contractAddr, rec.ContractAddress)
	assert.Equal(t, walletAddr, rec.Wallet)
	assert.Equal(t, PredictionYes, rec.Prediction)
	assert.Equal(t, 100.0, rec.Amount)
	assert.Equal(t, 52, rec.YesPercentage)
}

func TestLedger_OddsClampHigh(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 79)

	var m Market
	var err error
	for i := 0; i < 25; i++ {
		m, err = ledger.Submit(context.Background(), contractAddr, PredictionYes, 10)
		require.NoError(t, err)
	}
	assert.Equal(t, 95, m.YesPercentage)
	assert.Equal(t, 5, m.NoPercentage)
	// Stake and participants still accumulate past the clamp.
	assert.Equal(t, 10250.0, m.TotalStaked)
	assert.Equal(t, 125, m.Participants)
}

func TestLedger_OddsClampLow(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 20)

	var m Market
	var err error
	for i := 0; i < 25; i++ {
		m, err = ledger.Submit(context.Background(), contractAddr, PredictionNo, 10)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, m.YesPercentage)
	assert.Equal(t, 95, m.NoPercentage)
}

func TestLedger_SubmitRequiresWallet(t *testing.T) {
	ledger, gate, _ := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 50)

	gate.set(false, "")
	_, err := ledger.Submit(context.Background(), contractAddr, PredictionYes, 100)
	assert.ErrorIs(t, err, ErrWalletNotConnected)

	// Connectivity is checked at the moment of submission, so
	// reconnecting makes the same call succeed.
	gate.set(true, walletAddr)
	_, err = ledger.Submit(context.Background(), contractAddr, PredictionYes, 100)
	assert.NoError(t, err)
}

func TestLedger_SubmitAmountBounds(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 50)

	for _, amount := range []float64{0, 0.5, 1000.01, -10, math.NaN(), math.Inf(1)} {
		_, err := ledger.Submit(context.Background(), contractAddr, PredictionYes, amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %v", amount)
	}

	for _, amount := range []float64{1, 500.5, 1000} {
		_, err := ledger.Submit(context.Background(), contractAddr, PredictionYes, amount)
		assert.NoError(t, err, "amount %v", amount)
	}
}

func TestLedger_SubmitInvalidPrediction(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 50)

	_, err := ledger.Submit(context.Background(), contractAddr, "maybe", 100)
	assert.ErrorIs(t, err, ErrInvalidPrediction)
}

func TestLedger_SubmitUnknownMarket(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.Submit(context.Background(), contractAddr, PredictionYes, 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_AddressesAreNormalized(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	seedMarket(t, ledger, "0xABCDEF0123456789ABCDEF0123456789ABCDEF01", 50)

	m, err := ledger.Snapshot(otherContract)
	require.NoError(t, err)
	assert.Equal(t, otherContract, m.ContractAddress)

	_, err = ledger.Submit(context.Background(), "0xAbCdEf0123456789abcdef0123456789ABCDEF01", PredictionYes, 10)
	assert.NoError(t, err)
}

func TestLedger_SinkFailureDoesNotRollBack(t *testing.T) {
	ledger, _, sink := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 50)

	sink.setError(errors.New("archive unavailable"))

	m, err := ledger.Submit(context.Background(), contractAddr, PredictionYes, 100)
	require.NoError(t, err)
	assert.Equal(t, 52, m.YesPercentage)

	got, err := ledger.Snapshot(contractAddr)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestLedger_ConcurrentSubmissionsLoseNothing(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 50)

	const submitters = 100
	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			side := PredictionYes
			if i%2 == 1 {
				side = PredictionNo
			}
			_, err := ledger.Submit(context.Background(), contractAddr, side, 10)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	m, err := ledger.Snapshot(contractAddr)
	require.NoError(t, err)
	assert.Equal(t, 100+submitters, m.Participants)
	assert.Equal(t, 10000.0+submitters*10, m.TotalStaked)
	assert.GreaterOrEqual(t, m.YesPercentage, 5)
	assert.LessOrEqual(t, m.YesPercentage, 95)
	assert.Equal(t, 100, m.YesPercentage+m.NoPercentage)
}

func TestLedger_AllAndDiscard(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 50)
	seedMarket(t, ledger, otherContract, 30)

	markets := ledger.All()
	require.Len(t, markets, 2)
	// Ordered by contract address.
	assert.Equal(t, otherContract, markets[0].ContractAddress)
	assert.Equal(t, contractAddr, markets[1].ContractAddress)

	assert.True(t, ledger.Discard(contractAddr))
	assert.False(t, ledger.Discard(contractAddr))

	_, err := ledger.Snapshot(contractAddr)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, ledger.All(), 1)
}

func TestLedger_DiscardTombstonesEntry(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 50)

	ledger.mu.RLock()
	e := ledger.entries[contractAddr]
	ledger.mu.RUnlock()

	require.True(t, ledger.Discard(contractAddr))

	e.mu.Lock()
	discarded := e.discarded
	e.mu.Unlock()
	assert.True(t, discarded)
}

func TestLedger_SubmitRejectsDiscardedEntry(t *testing.T) {
	ledger, _, sink := newTestLedger(t)
	seedMarket(t, ledger, contractAddr, 50)

	// Tombstone the entry while it is still reachable from the map,
	// standing in for a submit whose lookup raced ahead of the removal.
	ledger.mu.RLock()
	e := ledger.entries[contractAddr]
	ledger.mu.RUnlock()
	e.mu.Lock()
	e.discarded = true
	e.mu.Unlock()

	_, err := ledger.Submit(context.Background(), contractAddr, PredictionYes, 100)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, sink.predictions)

	_, err = ledger.Snapshot(contractAddr)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, ledger.All())
}
