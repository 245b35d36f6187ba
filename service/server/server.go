package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rugmarket/rugmarket/service/config"
	"github.com/rugmarket/rugmarket/service/db"
	"github.com/rugmarket/rugmarket/service/market"
	"github.com/rugmarket/rugmarket/service/metrics"
	"github.com/rugmarket/rugmarket/service/scan"
	"github.com/rugmarket/rugmarket/service/temporal"
	"github.com/rugmarket/rugmarket/service/wallet"
)

// Server represents the HTTP server for the contract scanner service.
type Server struct {
	addr         string
	cfg          *config.Config
	store        *db.Store
	ledger       *market.Ledger
	walletMgr    *wallet.Manager
	scanner      scan.Scanner
	scheduler    temporal.Scheduler
	ssePublisher *SSEPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The scheduler is used to create Temporal schedules for contract rescans;
// if nil, no rescan schedules are created. The ssePublisher is optional -
// if nil, SSE endpoints won't be available. The metrics is optional - if
// nil, the metrics endpoint and per-route instrumentation are disabled.
func New(addr string, cfg *config.Config, store *db.Store, ledger *market.Ledger, walletMgr *wallet.Manager, scanner scan.Scanner, scheduler temporal.Scheduler, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		cfg:          cfg,
		store:        store,
		ledger:       ledger,
		walletMgr:    walletMgr,
		scanner:      scanner,
		scheduler:    scheduler,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Scan routes
	mux.Handle("POST /api/v1/scans", s.route("start_scan",
		handleStartScan(s.scanner, s.store, s.ledger, s.scheduler, s.cfg, s.logger)))
	mux.Handle("GET /api/v1/scans/{address}", s.route("get_scan",
		handleGetScan(s.store, s.logger)))
	mux.Handle("GET /api/v1/scans/{address}/history", s.route("list_scans",
		handleListScans(s.store, s.logger)))

	// Market routes
	mux.Handle("GET /api/v1/markets", s.route("list_markets",
		handleListMarkets(s.ledger, s.logger)))
	mux.Handle("GET /api/v1/markets/{address}", s.route("get_market",
		handleGetMarket(s.ledger, s.logger)))
	mux.Handle("POST /api/v1/markets/{address}", s.route("seed_market",
		handleSeedMarket(s.ledger, s.logger)))
	mux.Handle("POST /api/v1/markets/{address}/predictions", s.route("submit_prediction",
		handleSubmitPrediction(s.ledger, s.metrics, s.logger)))
	mux.Handle("GET /api/v1/markets/{address}/predictions", s.route("list_predictions",
		handleListPredictions(s.store, s.logger)))

	// Wallet session routes
	mux.Handle("POST /api/v1/wallet/connect", s.route("wallet_connect",
		handleWalletConnect(s.walletMgr, s.metrics, s.logger)))
	mux.Handle("POST /api/v1/wallet/disconnect", s.route("wallet_disconnect",
		handleWalletDisconnect(s.walletMgr, s.metrics, s.logger)))
	mux.Handle("GET /api/v1/wallet/session", s.route("wallet_session",
		handleWalletSession(s.walletMgr, s.logger)))

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		mux.Handle("GET /api/v1/stream/markets/{address}", handleStreamMarkets(s.ssePublisher, s.metrics, s.logger))
		mux.Handle("GET /api/v1/stream/markets", handleStreamMarkets(s.ssePublisher, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// route wraps a handler with per-route metrics instrumentation when a
// metrics collector is configured.
func (s *Server) route(name string, h http.Handler) http.Handler {
	if s.metrics == nil {
		return h
	}
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	// Then shutdown HTTP server
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Pass through to next handler
		next.ServeHTTP(w, r)
	})
}
