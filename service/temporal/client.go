package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/rugmarket/rugmarket/service/metrics"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient creates a new Temporal client. m may be nil.
func NewClient(host, namespace, taskQueue string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		metrics:   m,
		logger:    logger,
	}, nil
}

// TriggerScan starts a one-off ScanContractWorkflow run and waits for
// its result. Used when a contract is submitted for its first scan.
func (c *Client) TriggerScan(ctx context.Context, contractAddress string, seedMarket bool) (*ScanContractResult, error) {
	workflowID := fmt.Sprintf("scan-contract-%s-%s", contractAddress, uuid.NewString())

	c.logger.Debug("starting scan workflow",
		"contract", contractAddress,
		"workflow_id", workflowID,
	)

	start := time.Now()
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.taskQueue,
	}, "ScanContractWorkflow", ScanContractInput{
		ContractAddress: contractAddress,
		SeedMarket:      seedMarket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start scan workflow: %w", err)
	}

	var result ScanContractResult
	if err := run.Get(ctx, &result); err != nil {
		if c.metrics != nil {
			c.metrics.RecordWorkflowDuration(contractAddress, "error", time.Since(start).Seconds())
		}
		return nil, fmt.Errorf("scan workflow failed: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordWorkflowDuration(contractAddress, "success", time.Since(start).Seconds())
	}

	c.logger.Info("scan workflow completed",
		"contract", contractAddress,
		"workflow_id", workflowID,
		"risk_level", result.RiskLevel,
	)

	return &result, nil
}

// CreateRescanSchedule creates a new Temporal schedule for rescanning a contract.
func (c *Client) CreateRescanSchedule(ctx context.Context, contractAddress string, interval time.Duration) error {
	id := RescanScheduleID(contractAddress)

	c.logger.Debug("creating rescan schedule",
		"contract", contractAddress,
		"schedule_id", id,
		"interval", interval,
	)

	scheduleSpec := client.ScheduleSpec{
		Intervals: []client.ScheduleIntervalSpec{
			{
				Every: interval,
			},
		},
	}

	// Rescans request seeding too: an existing market is left alone,
	// but a rescan of a contract whose market was discarded reseeds it.
	workflowAction := client.ScheduleWorkflowAction{
		ID:        fmt.Sprintf("rescan-contract-%s", contractAddress),
		Workflow:  "ScanContractWorkflow",
		TaskQueue: c.taskQueue,
		Args: []interface{}{ScanContractInput{
			ContractAddress: contractAddress,
			SeedMarket:      true,
		}},
	}

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:     id,
		Spec:   scheduleSpec,
		Action: &workflowAction,
		Memo: map[string]interface{}{
			"contract_address": contractAddress,
			"created_by":       "rugmarket",
		},
	})

	if err != nil {
		c.logger.Error("failed to create schedule",
			"contract", contractAddress,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("rescan schedule created",
		"contract", contractAddress,
		"schedule_id", id,
		"interval", interval,
	)

	return nil
}

// UpsertRescanSchedule creates or updates a Temporal schedule for rescanning
// a contract. If the schedule already exists, it updates the interval.
// Otherwise, it creates a new schedule.
func (c *Client) UpsertRescanSchedule(ctx context.Context, contractAddress string, interval time.Duration) error {
	id := RescanScheduleID(contractAddress)

	c.logger.Debug("upserting rescan schedule",
		"contract", contractAddress,
		"schedule_id", id,
		"interval", interval,
	)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	desc, err := handle.Describe(ctx)

	if err != nil {
		// Schedule doesn't exist or error getting it - create new one
		c.logger.Debug("schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		return c.CreateRescanSchedule(ctx, contractAddress, interval)
	}

	c.logger.Debug("schedule exists, updating interval",
		"schedule_id", id,
		"old_interval", desc.Schedule.Spec.Intervals[0].Every,
		"new_interval", interval,
	)

	err = handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})

	if err != nil {
		c.logger.Error("failed to update schedule",
			"contract", contractAddress,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("rescan schedule updated",
		"contract", contractAddress,
		"schedule_id", id,
		"interval", interval,
	)

	return nil
}

// DeleteRescanSchedule deletes the Temporal schedule for a contract.
func (c *Client) DeleteRescanSchedule(ctx context.Context, contractAddress string) error {
	id := RescanScheduleID(contractAddress)

	c.logger.Debug("deleting rescan schedule",
		"contract", contractAddress,
		"schedule_id", id,
	)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule",
			"contract", contractAddress,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.Info("rescan schedule deleted",
		"contract", contractAddress,
		"schedule_id", id,
	)

	return nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
