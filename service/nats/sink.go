package nats

import (
	"context"

	"github.com/rugmarket/rugmarket/service/market"
)

// LedgerSink adapts a Publisher to the ledger's sink interface, so
// every applied ledger update becomes a JetStream message.
type LedgerSink struct {
	pub Publisher
}

// NewLedgerSink wraps a publisher for use as a market sink.
func NewLedgerSink(pub Publisher) *LedgerSink {
	return &LedgerSink{pub: pub}
}

// MarketSeeded publishes a market_seeded event.
func (s *LedgerSink) MarketSeeded(ctx context.Context, m market.Market) error {
	return s.pub.PublishMarketEvent(ctx, SeededEvent(m))
}

// PredictionRecorded publishes a prediction_recorded event.
func (s *LedgerSink) PredictionRecorded(ctx context.Context, m market.Market, rec market.PredictionRecord) error {
	return s.pub.PublishMarketEvent(ctx, PredictionEvent(m, rec))
}
