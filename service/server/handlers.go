package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rugmarket/rugmarket/service/config"
	"github.com/rugmarket/rugmarket/service/db"
	"github.com/rugmarket/rugmarket/service/market"
	"github.com/rugmarket/rugmarket/service/metrics"
	"github.com/rugmarket/rugmarket/service/scan"
	"github.com/rugmarket/rugmarket/service/temporal"
	"github.com/rugmarket/rugmarket/service/wallet"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for scan and prediction requests
)

// ScanArchive defines the scan persistence operations handlers need.
type ScanArchive interface {
	CreateScan(ctx context.Context, result *scan.Result) error
	GetLatestScan(ctx context.Context, contractAddress string) (*scan.Result, error)
	ListScans(ctx context.Context, contractAddress string, limit int32) ([]*scan.Result, error)
}

// PredictionArchive defines the prediction history operations handlers need.
type PredictionArchive interface {
	ListPredictions(ctx context.Context, contractAddress string, limit int32) ([]market.PredictionRecord, error)
	CountPredictions(ctx context.Context, contractAddress string) (int64, error)
}

// SessionManager defines the wallet session operations handlers need.
type SessionManager interface {
	Connect(ctx context.Context, walletID string) (wallet.Session, error)
	Disconnect() wallet.Session
	Session() wallet.Session
}

// handleStartScan returns a handler that runs a security scan for a contract,
// archives the result, seeds the prediction market and registers a rescan
// schedule.
// POST /api/v1/scans
func handleStartScan(scanner scan.Scanner, archive ScanArchive, ledger *market.Ledger, scheduler temporal.Scheduler, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Limit request body size to prevent memory exhaustion
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			ContractAddress string `json:"contract_address"`
			RescanInterval  string `json:"rescan_interval,omitempty"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode scan request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := scan.ValidateAddress(req.ContractAddress); err != nil {
			logger.Debug("invalid contract address", "address", req.ContractAddress, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Parse and validate the rescan interval before doing any work
		rescanInterval := cfg.DefaultRescanInterval
		if req.RescanInterval != "" {
			parsed, err := time.ParseDuration(req.RescanInterval)
			if err != nil {
				writeError(w, "invalid rescan_interval: must be a valid duration (e.g. '1h', '24h')", http.StatusBadRequest)
				return
			}
			if parsed < cfg.MinRescanInterval {
				writeError(w, "rescan_interval must be at least "+cfg.MinRescanInterval.String(), http.StatusBadRequest)
				return
			}
			rescanInterval = parsed
		}

		result, err := scanner.Scan(r.Context(), req.ContractAddress)
		if err != nil {
			logger.Error("scan failed", "address", req.ContractAddress, "error", err)
			writeError(w, "scan failed", http.StatusInternalServerError)
			return
		}

		if err := archive.CreateScan(r.Context(), result); err != nil {
			logger.Error("failed to archive scan", "scan_id", result.ID, "error", err)
			writeError(w, "failed to archive scan result", http.StatusInternalServerError)
			return
		}

		// A fresh scan replaces the contract's market outright. Scheduled
		// rescans go through the worker and never reach this path, so they
		// keep community state.
		discarded := ledger.Discard(result.ContractAddress)
		m, err := ledger.Seed(r.Context(), result.ContractAddress, result.MarketSeed)
		if err != nil {
			logger.Error("failed to seed market", "address", result.ContractAddress, "error", err)
			writeError(w, "failed to seed prediction market", http.StatusInternalServerError)
			return
		}

		// Rescan schedules are best-effort: the scan result and market are
		// already committed, so a schedule failure is not worth failing the
		// request over.
		if scheduler != nil {
			if err := scheduler.UpsertRescanSchedule(r.Context(), result.ContractAddress, rescanInterval); err != nil {
				logger.Error("failed to create rescan schedule",
					"address", result.ContractAddress,
					"interval", rescanInterval,
					"error", err,
				)
			}
		}

		logger.Info("contract scanned",
			"scan_id", result.ID,
			"address", result.ContractAddress,
			"risk_level", result.Risk.Level,
			"exploit_likelihood", result.ExploitLikelihood,
			"market_replaced", discarded,
		)

		writeJSON(w, map[string]interface{}{
			"scan":            result,
			"market":          m,
			"market_replaced": discarded,
		}, http.StatusCreated)
	})
}

// handleGetScan returns a handler that retrieves the latest scan for a contract.
// GET /api/v1/scans/{address}
func handleGetScan(archive ScanArchive, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := scan.ValidateAddress(address); err != nil {
			logger.Debug("invalid contract address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := archive.GetLatestScan(r.Context(), scan.NormalizeAddress(address))
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "no scan found for contract", http.StatusNotFound)
				return
			}
			logger.Error("failed to get scan", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, result, http.StatusOK)
	})
}

// handleListScans returns a handler that lists the scan history for a contract.
// GET /api/v1/scans/{address}/history?limit=N
func handleListScans(archive ScanArchive, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := scan.ValidateAddress(address); err != nil {
			logger.Debug("invalid contract address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit, err := parseLimit(r.URL.Query().Get("limit"), 20, 100)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		results, err := archive.ListScans(r.Context(), scan.NormalizeAddress(address), limit)
		if err != nil {
			logger.Error("failed to list scans", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"scans": results,
			"count": len(results),
		}, http.StatusOK)
	})
}

// handleListMarkets returns a handler that lists all seeded prediction markets.
// GET /api/v1/markets
func handleListMarkets(ledger *market.Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		markets := ledger.All()

		logger.Debug("markets listed", "count", len(markets))

		writeJSON(w, map[string]interface{}{
			"markets": markets,
			"count":   len(markets),
		}, http.StatusOK)
	})
}

// handleGetMarket returns a handler that retrieves the current market state
// for a contract.
// GET /api/v1/markets/{address}
func handleGetMarket(ledger *market.Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		m, err := ledger.Snapshot(address)
		if err != nil {
			writeMarketError(w, logger, address, err)
			return
		}

		writeJSON(w, m, http.StatusOK)
	})
}

// handleSeedMarket returns a handler that seeds a prediction market for a
// contract. Used by the scan worker to publish market seeds produced by
// scheduled rescans.
// POST /api/v1/markets/{address}
func handleSeedMarket(ledger *market.Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var seed scan.MarketSeed
		if err := json.NewDecoder(r.Body).Decode(&seed); err != nil {
			logger.Debug("failed to decode seed request", "error", err)
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		m, err := ledger.Seed(r.Context(), address, seed)
		if err != nil {
			writeMarketError(w, logger, address, err)
			return
		}

		logger.Info("market seeded",
			"address", m.ContractAddress,
			"yes_percentage", m.YesPercentage,
			"total_staked", m.TotalStaked,
		)

		writeJSON(w, m, http.StatusCreated)
	})
}

// handleSubmitPrediction returns a handler that records a community
// prediction against a market.
// POST /api/v1/markets/{address}/predictions
func handleSubmitPrediction(ledger *market.Ledger, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Prediction string  `json:"prediction"`
			Amount     float64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode prediction request", "error", err)
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		updated, err := ledger.Submit(r.Context(), address, market.Prediction(req.Prediction), req.Amount)
		if err != nil {
			if m != nil {
				m.RecordPrediction(req.Prediction, "rejected", req.Amount)
			}
			writeMarketError(w, logger, address, err)
			return
		}

		if m != nil {
			m.RecordPrediction(req.Prediction, "accepted", req.Amount)
		}

		logger.Info("prediction recorded",
			"address", updated.ContractAddress,
			"prediction", req.Prediction,
			"amount", req.Amount,
			"yes_percentage", updated.YesPercentage,
		)

		writeJSON(w, updated, http.StatusCreated)
	})
}

// handleListPredictions returns a handler that lists the archived prediction
// history for a contract.
// GET /api/v1/markets/{address}/predictions?limit=N
func handleListPredictions(archive PredictionArchive, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := scan.ValidateAddress(address); err != nil {
			logger.Debug("invalid contract address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit, err := parseLimit(r.URL.Query().Get("limit"), 100, 1000)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		normalized := scan.NormalizeAddress(address)

		predictions, err := archive.ListPredictions(r.Context(), normalized, limit)
		if err != nil {
			logger.Error("failed to list predictions", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		total, err := archive.CountPredictions(r.Context(), normalized)
		if err != nil {
			logger.Error("failed to count predictions", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"predictions": predictions,
			"count":       len(predictions),
			"total":       total,
		}, http.StatusOK)
	})
}

// handleWalletConnect returns a handler that connects a wallet session
// through the configured provider.
// POST /api/v1/wallet/connect
func handleWalletConnect(mgr SessionManager, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			WalletID string `json:"wallet_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode connect request", "error", err)
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		sess, err := mgr.Connect(r.Context(), req.WalletID)
		if err != nil {
			if m != nil {
				m.RecordWalletConnect(req.WalletID, "rejected")
			}
			writeWalletError(w, logger, req.WalletID, err)
			return
		}

		if m != nil {
			m.RecordWalletConnect(req.WalletID, "connected")
		}

		logger.Info("wallet connected",
			"wallet", sess.WalletID,
			"address", sess.Address,
			"chain_id", sess.ChainID,
		)

		writeJSON(w, sess, http.StatusOK)
	})
}

// handleWalletDisconnect returns a handler that disconnects the wallet
// session. Disconnecting an already-disconnected session is a no-op.
// POST /api/v1/wallet/disconnect
func handleWalletDisconnect(mgr SessionManager, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := mgr.Disconnect()

		if m != nil {
			m.RecordWalletDisconnect("user")
		}

		logger.Info("wallet disconnected")
		writeJSON(w, sess, http.StatusOK)
	})
}

// handleWalletSession returns a handler that reports the current wallet session.
// GET /api/v1/wallet/session
func handleWalletSession(mgr SessionManager, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, mgr.Session(), http.StatusOK)
	})
}

// writeMarketError maps ledger errors onto HTTP status codes.
func writeMarketError(w http.ResponseWriter, logger *slog.Logger, address string, err error) {
	switch {
	case errors.Is(err, market.ErrNotFound):
		writeError(w, "market not found for contract", http.StatusNotFound)
	case errors.Is(err, market.ErrAlreadySeeded):
		writeError(w, "market already seeded for contract", http.StatusConflict)
	case errors.Is(err, market.ErrWalletNotConnected):
		writeError(w, "wallet must be connected to submit predictions", http.StatusConflict)
	case errors.Is(err, market.ErrInvalidPrediction), errors.Is(err, market.ErrInvalidAmount), errors.Is(err, market.ErrInvalidSeed):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error("market operation failed", "address", address, "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeWalletError maps wallet session errors onto HTTP status codes.
func writeWalletError(w http.ResponseWriter, logger *slog.Logger, walletID string, err error) {
	switch {
	case errors.Is(err, wallet.ErrUnsupportedWallet):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, wallet.ErrUserRejected):
		writeError(w, "connection request rejected by user", http.StatusConflict)
	case errors.Is(err, wallet.ErrNoAccounts):
		writeError(w, "wallet has no accounts available", http.StatusConflict)
	case errors.Is(err, wallet.ErrProviderTimeout):
		writeError(w, "wallet provider timed out", http.StatusGatewayTimeout)
	case errors.Is(err, wallet.ErrProviderNotAvailable):
		writeError(w, "wallet provider not available", http.StatusServiceUnavailable)
	default:
		logger.Error("wallet operation failed", "wallet", walletID, "error", err)
		writeError(w, "wallet provider error", http.StatusBadGateway)
	}
}

// parseLimit parses a limit query parameter with a default and an upper bound.
func parseLimit(raw string, def, max int32) (int32, error) {
	if raw == "" {
		return def, nil
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid limit parameter: must be an integer")
	}
	if parsed < 1 {
		return 0, errors.New("limit must be at least 1")
	}
	if int32(parsed) > max {
		return 0, errors.New("limit cannot exceed " + strconv.Itoa(int(max)))
	}
	return int32(parsed), nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
