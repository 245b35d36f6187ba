package db

import (
	"context"

	"github.com/rugmarket/rugmarket/service/market"
)

// ArchiveSink adapts the Store to the ledger's sink interface. Each
// ledger update lands as a market snapshot, and each submission as a
// prediction row. The ledger treats failures as best-effort.
type ArchiveSink struct {
	store *Store
}

// NewArchiveSink wraps a store for use as a market sink.
func NewArchiveSink(store *Store) *ArchiveSink {
	return &ArchiveSink{store: store}
}

// MarketSeeded archives the initial market snapshot.
func (a *ArchiveSink) MarketSeeded(ctx context.Context, m market.Market) error {
	return a.store.UpsertMarket(ctx, m)
}

// PredictionRecorded archives the submission and the market snapshot it
// produced.
func (a *ArchiveSink) PredictionRecorded(ctx context.Context, m market.Market, rec market.PredictionRecord) error {
	if err := a.store.CreatePrediction(ctx, rec); err != nil {
		return err
	}
	return a.store.UpsertMarket(ctx, m)
}
