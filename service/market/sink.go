package market

import (
	"context"
	"errors"
)

// MultiSink fans ledger updates out to several sinks. Every sink sees
// every update even when an earlier one fails; failures are joined into
// one error for the ledger to log.
type MultiSink []Sink

func (s MultiSink) MarketSeeded(ctx context.Context, m Market) error {
	var errs []error
	for _, sink := range s {
		if err := sink.MarketSeeded(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s MultiSink) PredictionRecorded(ctx context.Context, m Market, rec PredictionRecord) error {
	var errs []error
	for _, sink := range s {
		if err := sink.PredictionRecorded(ctx, m, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
