package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// ScanContractWorkflow is the Temporal workflow that scans a contract
// and seeds its prediction market. It runs once when a contract is
// first submitted, then on a rescan schedule.
//
// The workflow performs these steps:
// 1. Run the scan heuristics (RunScan activity)
// 2. Read on-chain contract state (InspectContract activity, best effort)
// 3. Archive the scan result (ArchiveScan activity)
// 4. Seed the prediction market (SeedMarket activity, when requested)
func ScanContractWorkflow(ctx workflow.Context, input ScanContractInput) (*ScanContractResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ScanContractWorkflow started", "contract", input.ContractAddress)

	result := &ScanContractResult{
		ContractAddress: input.ContractAddress,
		ScanTime:        workflow.Now(ctx),
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 120 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Step 1: Run the scan
	var scanResult *RunScanResult
	err := workflow.ExecuteActivity(ctx, a.RunScan, RunScanInput{
		ContractAddress: input.ContractAddress,
	}).Get(ctx, &scanResult)
	if err != nil {
		errMsg := fmt.Sprintf("failed to run scan: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to run scan: %w", err)
	}

	result.ScanID = scanResult.Result.ID
	result.RiskLevel = string(scanResult.Result.Risk.Level)
	result.ExploitLikelihood = scanResult.Result.ExploitLikelihood

	logger.Info("scan completed",
		"contract", input.ContractAddress,
		"risk_level", result.RiskLevel,
		"exploit_likelihood", result.ExploitLikelihood,
	)

	// Step 2: Inspect on-chain state. A dead RPC endpoint must not block
	// the scan pipeline, so failures are logged and skipped.
	var inspectResult *InspectContractResult
	err = workflow.ExecuteActivity(ctx, a.InspectContract, InspectContractInput{
		ContractAddress: input.ContractAddress,
	}).Get(ctx, &inspectResult)
	if err != nil {
		logger.Warn("failed to inspect contract, continuing without chain state",
			"contract", input.ContractAddress,
			"error", err,
		)
	} else if inspectResult.State != nil {
		result.ContractExists = &inspectResult.State.Exists
		result.CodeSize = inspectResult.State.CodeSize
	}

	// Step 3: Archive the scan result
	var archiveResult *ArchiveScanResult
	err = workflow.ExecuteActivity(ctx, a.ArchiveScan, ArchiveScanInput{
		Result: scanResult.Result,
	}).Get(ctx, &archiveResult)
	if err != nil {
		logger.Error("failed to archive scan result",
			"contract", input.ContractAddress,
			"error", err,
		)
		errMsg := fmt.Sprintf("failed to archive scan: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to archive scan: %w", err)
	}

	// Step 4: Seed the prediction market
	if input.SeedMarket {
		var seedResult *SeedMarketResult
		err = workflow.ExecuteActivity(ctx, a.SeedMarket, SeedMarketInput{
			ContractAddress: scanResult.Result.ContractAddress,
			Seed:            scanResult.Result.MarketSeed,
		}).Get(ctx, &seedResult)
		if err != nil {
			logger.Error("failed to seed market",
				"contract", input.ContractAddress,
				"error", err,
			)
			errMsg := fmt.Sprintf("failed to seed market: %v", err)
			result.Error = &errMsg
			return result, fmt.Errorf("failed to seed market: %w", err)
		}
		result.MarketSeeded = seedResult.Seeded
	}

	logger.Info("ScanContractWorkflow completed successfully",
		"contract", input.ContractAddress,
		"scan_id", result.ScanID,
		"risk_level", result.RiskLevel,
		"market_seeded", result.MarketSeeded,
	)

	return result, nil
}
