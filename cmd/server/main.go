package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rugmarket/rugmarket/service/config"
	"github.com/rugmarket/rugmarket/service/db"
	"github.com/rugmarket/rugmarket/service/market"
	"github.com/rugmarket/rugmarket/service/metrics"
	natspkg "github.com/rugmarket/rugmarket/service/nats"
	"github.com/rugmarket/rugmarket/service/provider"
	"github.com/rugmarket/rugmarket/service/scan"
	"github.com/rugmarket/rugmarket/service/server"
	"github.com/rugmarket/rugmarket/service/temporal"
	"github.com/rugmarket/rugmarket/service/wallet"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"provider_mode", cfg.ProviderMode,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Verify database connection
	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Schema setup is idempotent, so run it on every boot
	if err := db.EnsureSchema(ctx, dbPool); err != nil {
		logger.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	// Initialize database store
	store := db.NewStore(dbPool)

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Initialize the wallet provider
	var prov provider.Provider
	if cfg.ProviderMode == "mock" {
		mock := provider.NewMockProvider()
		mock.SetAccounts("0x71C7656EC7ab88b098defB751B7401B5f6d8976F")
		prov = mock
		logger.Info("initialized mock wallet provider")
	} else {
		rpcProv, err := provider.NewRPCProvider(ctx, cfg.EthRPCURL, cfg.ProviderPollInterval, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to initialize RPC provider", "url", cfg.EthRPCURL, "error", err)
			os.Exit(1)
		}
		prov = rpcProv
		logger.Info("initialized RPC wallet provider", "url", cfg.EthRPCURL)
	}

	// Initialize wallet session manager
	walletMgr := wallet.NewManager(prov, cfg.ProviderTimeout, logger)
	defer walletMgr.Close()

	// Initialize NATS publisher for market events
	natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create NATS publisher", "error", err)
		os.Exit(1)
	}
	defer natsPublisher.Close()
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	// Market mutations fan out to NATS (live streams) and Postgres (history)
	sink := market.MultiSink{
		natspkg.NewLedgerSink(natsPublisher),
		db.NewArchiveSink(store),
	}
	ledger := market.NewLedger(walletMgr, sink, cfg.MinStake, cfg.MaxStake, logger)

	// Initialize the contract scanner
	scanner := scan.NewHeuristicScanner(cfg.ScanLatency, logger)

	// Initialize Temporal client for rescan schedule management
	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		metricsCollector,
		logger,
	)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("connected to temporal for schedule management",
		"host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
	)

	// Initialize SSE publisher for market streaming
	ssePublisher, err := server.NewSSEPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.Error("failed to create SSE publisher", "error", err)
		os.Exit(1)
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg, store, ledger, walletMgr, scanner, temporalClient, ssePublisher, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"nats_url", cfg.NATSURL,
		"temporal_host", cfg.TemporalHost,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
