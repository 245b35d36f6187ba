package nats

import (
	"time"

	"github.com/rugmarket/rugmarket/service/market"
)

// Event kinds published to the markets stream.
const (
	EventMarketSeeded       = "market_seeded"
	EventPredictionRecorded = "prediction_recorded"
)

// MarketEvent represents a market update published to NATS.
// This is published to the subject "markets.{contract_address}" in
// JetStream and fanned out to SSE subscribers.
type MarketEvent struct {
	Kind string `json:"kind"`

	// Market state after the update
	ContractAddress string  `json:"contract_address"`
	YesPercentage   int     `json:"yes_percentage"`
	NoPercentage    int     `json:"no_percentage"`
	TotalStaked     float64 `json:"total_staked"`
	Participants    int     `json:"participants"`

	// Submission details, set for prediction_recorded only
	PredictionID string  `json:"prediction_id,omitempty"`
	Wallet       string  `json:"wallet,omitempty"`
	Prediction   string  `json:"prediction,omitempty"`
	Amount       float64 `json:"amount,omitempty"`

	// Metadata
	UpdatedAt   time.Time `json:"updated_at"`
	PublishedAt time.Time `json:"published_at"`
}

// SeededEvent builds the event for a freshly seeded market.
func SeededEvent(m market.Market) *MarketEvent {
	return &MarketEvent{
		Kind:            EventMarketSeeded,
		ContractAddress: m.ContractAddress,
		YesPercentage:   m.YesPercentage,
		NoPercentage:    m.NoPercentage,
		TotalStaked:     m.TotalStaked,
		Participants:    m.Participants,
		UpdatedAt:       m.UpdatedAt,
		PublishedAt:     time.Now().UTC(),
	}
}

// PredictionEvent builds the event for an accepted submission.
func PredictionEvent(m market.Market, rec market.PredictionRecord) *MarketEvent {
	return &MarketEvent{
		Kind:            EventPredictionRecorded,
		ContractAddress: m.ContractAddress,
		YesPercentage:   m.YesPercentage,
		NoPercentage:    m.NoPercentage,
		TotalStaked:     m.TotalStaked,
		Participants:    m.Participants,
		PredictionID:    rec.ID,
		Wallet:          rec.Wallet,
		Prediction:      string(rec.Prediction),
		Amount:          rec.Amount,
		UpdatedAt:       m.UpdatedAt,
		PublishedAt:     time.Now().UTC(),
	}
}
