package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Ethereum RPC Metrics
	ethRPCCallsTotal   *prometheus.CounterVec
	ethRPCCallDuration *prometheus.HistogramVec
	ethBreakerState    *prometheus.GaugeVec

	// Wallet Session Metrics
	walletConnectsTotal    *prometheus.CounterVec
	walletDisconnectsTotal *prometheus.CounterVec
	walletSessionActive    prometheus.Gauge

	// Scan Metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec

	// Prediction Market Metrics
	marketsSeededTotal    *prometheus.CounterVec
	predictionsTotal      *prometheus.CounterVec
	predictionStakeStaked *prometheus.CounterVec

	// Workflow Metrics
	scanWorkflowDuration        *prometheus.HistogramVec
	scanWorkflowExecutionsTotal *prometheus.CounterVec
	scanActivityDuration        *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Ethereum RPC Metrics
		ethRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eth_rpc_calls_total",
				Help: "Total number of Ethereum RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		ethRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eth_rpc_call_duration_seconds",
				Help:    "Duration of Ethereum RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		ethBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eth_rpc_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"breaker"},
		),

		// Wallet Session Metrics
		walletConnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_connects_total",
				Help: "Total number of wallet connect attempts by outcome",
			},
			[]string{"wallet", "outcome"},
		),
		walletDisconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_disconnects_total",
				Help: "Total number of wallet disconnects by origin (user or provider)",
			},
			[]string{"origin"},
		),
		walletSessionActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_session_active",
				Help: "Whether a wallet session is currently connected (0 or 1)",
			},
		),

		// Scan Metrics
		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_scans_total",
				Help: "Total number of contract scans by risk level and status",
			},
			[]string{"risk_level", "status"},
		),
		scanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contract_scan_duration_seconds",
				Help:    "Duration of contract scans in seconds",
				Buckets: []float64{0.5, 1, 2, 3, 5, 10, 30},
			},
			[]string{"risk_level"},
		),

		// Prediction Market Metrics
		marketsSeededTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markets_seeded_total",
				Help: "Total number of prediction markets seeded",
			},
			[]string{"status"},
		),
		predictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictions_total",
				Help: "Total number of prediction submissions by side and outcome",
			},
			[]string{"prediction", "outcome"},
		),
		predictionStakeStaked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prediction_stake_total",
				Help: "Total stake accepted into prediction markets",
			},
			[]string{"prediction"},
		),

		// Workflow Metrics
		scanWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scan_workflow_duration_seconds",
				Help:    "Duration of scan workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"contract_address", "status"},
		),
		scanWorkflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_workflow_executions_total",
				Help: "Total number of scan workflow executions",
			},
			[]string{"contract_address", "status"},
		),
		scanActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scan_activity_duration_seconds",
				Help:    "Duration of scan workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "contract_address"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"contract_address"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"contract_address", "event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Ethereum RPC metric helpers

// RecordRPCCall records an Ethereum RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	m.ethRPCCallsTotal.WithLabelValues(method, status).Inc()
	m.ethRPCCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordBreakerState records the provider circuit breaker state.
func (m *Metrics) RecordBreakerState(breaker string, state float64) {
	m.ethBreakerState.WithLabelValues(breaker).Set(state)
}

// Wallet session metric helpers

// RecordWalletConnect records a connect attempt outcome
// ("connected", "rejected", "timeout", "error").
func (m *Metrics) RecordWalletConnect(wallet, outcome string) {
	m.walletConnectsTotal.WithLabelValues(wallet, outcome).Inc()
	if outcome == "connected" {
		m.walletSessionActive.Set(1)
	}
}

// RecordWalletDisconnect records a disconnect by origin
// ("user" or "provider").
func (m *Metrics) RecordWalletDisconnect(origin string) {
	m.walletDisconnectsTotal.WithLabelValues(origin).Inc()
	m.walletSessionActive.Set(0)
}

// Scan metric helpers

// RecordScan records a completed scan with duration.
func (m *Metrics) RecordScan(riskLevel, status string, duration float64) {
	m.scansTotal.WithLabelValues(riskLevel, status).Inc()
	if status == "success" {
		m.scanDuration.WithLabelValues(riskLevel).Observe(duration)
	}
}

// Prediction market metric helpers

// RecordMarketSeeded records a market seeding attempt.
func (m *Metrics) RecordMarketSeeded(status string) {
	m.marketsSeededTotal.WithLabelValues(status).Inc()
}

// RecordPrediction records a prediction submission outcome. Stake is
// only counted for accepted submissions.
func (m *Metrics) RecordPrediction(prediction, outcome string, amount float64) {
	m.predictionsTotal.WithLabelValues(prediction, outcome).Inc()
	if outcome == "accepted" {
		m.predictionStakeStaked.WithLabelValues(prediction).Add(amount)
	}
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(contractAddress, status string, duration float64) {
	m.scanWorkflowDuration.WithLabelValues(contractAddress, status).Observe(duration)
	m.scanWorkflowExecutionsTotal.WithLabelValues(contractAddress, status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity, contractAddress string, duration float64) {
	m.scanActivityDuration.WithLabelValues(activity, contractAddress).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(contractAddress string, delta float64) {
	m.sseActiveConnections.WithLabelValues(contractAddress).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(contractAddress, eventType string) {
	m.sseEventsSent.WithLabelValues(contractAddress, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
