package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/rugmarket/rugmarket/service/provider"
	"github.com/rugmarket/rugmarket/service/scan"
)

const testContract = "0x1234567890123456789012345678901234567890"

func testScanResult() *scan.Result {
	return &scan.Result{
		ID:              "scan-1",
		ContractAddress: testContract,
		Risk: scan.RiskAssessment{
			Level: scan.RiskWarning,
			Score: 5.5,
			Title: "Medium Risk Detected",
		},
		SecurityChecks: []scan.SecurityCheck{
			{Name: "Honeypot Detection", Status: scan.CheckPass},
		},
		ExploitLikelihood: 48,
		MarketSeed:        scan.MarketSeed{YesPercentage: 45, TotalStaked: 20000, Participants: 120},
		ScannedAt:         time.Now().UTC(),
	}
}

func TestScanContractWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		input          ScanContractInput
		mockActivities func(runMock, inspectMock, archiveMock, seedMock *testsuite.MockCallWrapper)
		expectedError  bool
		validateResult func(*testing.T, *ScanContractResult)
	}{
		{
			name:  "successful scan with market seeding",
			input: ScanContractInput{ContractAddress: testContract, SeedMarket: true},
			mockActivities: func(runMock, inspectMock, archiveMock, seedMock *testsuite.MockCallWrapper) {
				runMock.Return(&RunScanResult{Result: testScanResult()}, nil)
				inspectMock.Return(&InspectContractResult{
					State: &provider.ContractState{Exists: true, CodeSize: 2048, BalanceWei: "0x0"},
				}, nil)
				archiveMock.Return(&ArchiveScanResult{Archived: true}, nil)
				seedMock.Return(&SeedMarketResult{Seeded: true}, nil)
			},
			expectedError: false,
			validateResult: func(t *testing.T, result *ScanContractResult) {
				assert.Equal(t, testContract, result.ContractAddress)
				assert.Equal(t, "scan-1", result.ScanID)
				assert.Equal(t, "warning", result.RiskLevel)
				assert.Equal(t, 48, result.ExploitLikelihood)
				assert.NotNil(t, result.ContractExists)
				assert.True(t, *result.ContractExists)
				assert.Equal(t, 2048, result.CodeSize)
				assert.True(t, result.MarketSeeded)
				assert.Nil(t, result.Error)
			},
		},
		{
			name:  "rescan without seeding leaves market alone",
			input: ScanContractInput{ContractAddress: testContract, SeedMarket: false},
			mockActivities: func(runMock, inspectMock, archiveMock, seedMock *testsuite.MockCallWrapper) {
				runMock.Return(&RunScanResult{Result: testScanResult()}, nil)
				inspectMock.Return(&InspectContractResult{}, nil)
				archiveMock.Return(&ArchiveScanResult{Archived: true}, nil)
				// SeedMarket should NOT be called
			},
			expectedError: false,
			validateResult: func(t *testing.T, result *ScanContractResult) {
				assert.False(t, result.MarketSeeded)
				assert.Nil(t, result.ContractExists)
				assert.Nil(t, result.Error)
			},
		},
		{
			name:  "inspection failure does not block the scan",
			input: ScanContractInput{ContractAddress: testContract, SeedMarket: true},
			mockActivities: func(runMock, inspectMock, archiveMock, seedMock *testsuite.MockCallWrapper) {
				runMock.Return(&RunScanResult{Result: testScanResult()}, nil)
				inspectMock.Return(nil, errors.New("rpc endpoint down"))
				archiveMock.Return(&ArchiveScanResult{Archived: true}, nil)
				seedMock.Return(&SeedMarketResult{Seeded: true}, nil)
			},
			expectedError: false,
			validateResult: func(t *testing.T, result *ScanContractResult) {
				assert.Nil(t, result.ContractExists)
				assert.True(t, result.MarketSeeded)
				assert.Nil(t, result.Error)
			},
		},
		{
			name:  "scan failure fails the workflow",
			input: ScanContractInput{ContractAddress: testContract, SeedMarket: true},
			mockActivities: func(runMock, inspectMock, archiveMock, seedMock *testsuite.MockCallWrapper) {
				runMock.Return(nil, errors.New("invalid contract address"))
				// No other activities should be called
			},
			expectedError: true,
			validateResult: func(t *testing.T, result *ScanContractResult) {
				// When workflow errors, the result is only partially populated
			},
		},
		{
			name:  "archive failure fails the workflow",
			input: ScanContractInput{ContractAddress: testContract, SeedMarket: true},
			mockActivities: func(runMock, inspectMock, archiveMock, seedMock *testsuite.MockCallWrapper) {
				runMock.Return(&RunScanResult{Result: testScanResult()}, nil)
				inspectMock.Return(&InspectContractResult{}, nil)
				archiveMock.Return(nil, errors.New("database error"))
			},
			expectedError: true,
			validateResult: func(t *testing.T, result *ScanContractResult) {
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestWorkflowEnvironment()

			// Register activities first (before mocking)
			activities := &Activities{}
			env.RegisterActivity(activities.RunScan)
			env.RegisterActivity(activities.InspectContract)
			env.RegisterActivity(activities.ArchiveScan)
			env.RegisterActivity(activities.SeedMarket)

			runMock := env.OnActivity(activities.RunScan, mock.Anything, mock.Anything)
			inspectMock := env.OnActivity(activities.InspectContract, mock.Anything, mock.Anything)
			archiveMock := env.OnActivity(activities.ArchiveScan, mock.Anything, mock.Anything)
			seedMock := env.OnActivity(activities.SeedMarket, mock.Anything, mock.Anything)

			tt.mockActivities(runMock, inspectMock, archiveMock, seedMock)

			env.ExecuteWorkflow(ScanContractWorkflow, tt.input)

			if tt.expectedError {
				assert.Error(t, env.GetWorkflowError())

				var result ScanContractResult
				env.GetWorkflowResult(&result)
				tt.validateResult(t, &result)
			} else {
				assert.NoError(t, env.GetWorkflowError())

				var result ScanContractResult
				err := env.GetWorkflowResult(&result)
				assert.NoError(t, err)
				tt.validateResult(t, &result)
			}
		})
	}
}

func TestScanContractWorkflow_ActivityRetries(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.RunScan)
	env.RegisterActivity(activities.InspectContract)
	env.RegisterActivity(activities.ArchiveScan)
	env.RegisterActivity(activities.SeedMarket)

	// RunScan fails twice then succeeds
	callCount := 0
	env.OnActivity(activities.RunScan, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		callCount++
		if callCount < 3 {
			panic("transient error") // Temporal retries on panics
		}
	}).Return(&RunScanResult{Result: testScanResult()}, nil)

	env.OnActivity(activities.InspectContract, mock.Anything, mock.Anything).
		Return(&InspectContractResult{}, nil)
	env.OnActivity(activities.ArchiveScan, mock.Anything, mock.Anything).
		Return(&ArchiveScanResult{Archived: true}, nil)
	env.OnActivity(activities.SeedMarket, mock.Anything, mock.Anything).
		Return(&SeedMarketResult{Seeded: true}, nil)

	env.ExecuteWorkflow(ScanContractWorkflow, ScanContractInput{
		ContractAddress: testContract,
		SeedMarket:      true,
	})

	assert.NoError(t, env.GetWorkflowError())

	var result ScanContractResult
	err := env.GetWorkflowResult(&result)
	assert.NoError(t, err)
	assert.Equal(t, "scan-1", result.ScanID)
	assert.Equal(t, 3, callCount)
}

func TestMockScheduler(t *testing.T) {
	sched := NewMockScheduler()
	ctx := context.Background()

	assert.NoError(t, sched.CreateRescanSchedule(ctx, testContract, time.Hour))
	assert.True(t, sched.ScheduleExists(testContract))

	interval, ok := sched.GetScheduleInterval(testContract)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, interval)

	assert.NoError(t, sched.UpsertRescanSchedule(ctx, testContract, 2*time.Hour))
	interval, _ = sched.GetScheduleInterval(testContract)
	assert.Equal(t, 2*time.Hour, interval)

	assert.NoError(t, sched.DeleteRescanSchedule(ctx, testContract))
	assert.False(t, sched.ScheduleExists(testContract))
	assert.Error(t, sched.DeleteRescanSchedule(ctx, testContract))
}
