package temporal

import (
	"context"
	"time"
)

// Scheduler manages Temporal schedules for contract rescans.
// Each scanned contract gets its own schedule that triggers the
// ScanContractWorkflow.
type Scheduler interface {
	// CreateRescanSchedule creates a new schedule for rescanning a
	// contract at the given interval.
	CreateRescanSchedule(ctx context.Context, contractAddress string, interval time.Duration) error

	// UpsertRescanSchedule creates the schedule, or updates its
	// interval when it already exists.
	UpsertRescanSchedule(ctx context.Context, contractAddress string, interval time.Duration) error

	// DeleteRescanSchedule deletes the schedule for a contract.
	// This stops the contract from being rescanned.
	DeleteRescanSchedule(ctx context.Context, contractAddress string) error
}

// RescanScheduleID returns the Temporal schedule ID for a contract
// address. Exposed so operational tooling can address schedules by
// contract.
func RescanScheduleID(contractAddress string) string {
	return "rescan-contract-" + contractAddress
}
