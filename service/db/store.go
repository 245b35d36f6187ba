// Package db is the audit archive. The in-memory ledger stays
// authoritative for live odds; this store keeps a durable record of
// scans, market snapshots, and accepted predictions for later analysis.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rugmarket/rugmarket/service/market"
	"github.com/rugmarket/rugmarket/service/scan"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides database operations for the service.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateScan archives a completed scan result. Security checks are
// stored as a JSON document alongside the flat risk columns.
func (s *Store) CreateScan(ctx context.Context, result *scan.Result) error {
	checks, err := json.Marshal(result.SecurityChecks)
	if err != nil {
		return fmt.Errorf("failed to marshal security checks: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO scans (
			id, contract_address, risk_level, risk_score, risk_title,
			risk_description, exploit_likelihood, security_checks, scanned_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		result.ID,
		result.ContractAddress,
		string(result.Risk.Level),
		result.Risk.Score,
		result.Risk.Title,
		result.Risk.Description,
		result.ExploitLikelihood,
		checks,
		result.ScannedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

// GetLatestScan returns the most recent archived scan for a contract.
func (s *Store) GetLatestScan(ctx context.Context, contractAddress string) (*scan.Result, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, contract_address, risk_level, risk_score, risk_title,
		       risk_description, exploit_likelihood, security_checks, scanned_at
		FROM scans
		WHERE contract_address = $1
		ORDER BY scanned_at DESC
		LIMIT 1`,
		scan.NormalizeAddress(contractAddress),
	)
	return scanScanRow(row)
}

// ListScans returns archived scans for a contract, newest first.
func (s *Store) ListScans(ctx context.Context, contractAddress string, limit int32) ([]*scan.Result, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, contract_address, risk_level, risk_score, risk_title,
		       risk_description, exploit_likelihood, security_checks, scanned_at
		FROM scans
		WHERE contract_address = $1
		ORDER BY scanned_at DESC
		LIMIT $2`,
		scan.NormalizeAddress(contractAddress),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var results []*scan.Result
	for rows.Next() {
		result, err := scanScanRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScanRow(row rowScanner) (*scan.Result, error) {
	var (
		result scan.Result
		level  string
		checks []byte
	)
	err := row.Scan(
		&result.ID,
		&result.ContractAddress,
		&level,
		&result.Risk.Score,
		&result.Risk.Title,
		&result.Risk.Description,
		&result.ExploitLikelihood,
		&checks,
		&result.ScannedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	result.Risk.Level = scan.RiskLevel(level)
	if err := json.Unmarshal(checks, &result.SecurityChecks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal security checks: %w", err)
	}
	return &result, nil
}

// UpsertMarket archives a market snapshot, replacing any previous
// snapshot for the same contract.
func (s *Store) UpsertMarket(ctx context.Context, m market.Market) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO markets (
			contract_address, yes_percentage, no_percentage,
			total_staked, participants, seeded_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (contract_address) DO UPDATE SET
			yes_percentage = EXCLUDED.yes_percentage,
			no_percentage = EXCLUDED.no_percentage,
			total_staked = EXCLUDED.total_staked,
			participants = EXCLUDED.participants,
			updated_at = EXCLUDED.updated_at`,
		m.ContractAddress,
		m.YesPercentage,
		m.NoPercentage,
		m.TotalStaked,
		m.Participants,
		m.SeededAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert market: %w", err)
	}
	return nil
}

// GetMarket returns the archived snapshot for a contract.
func (s *Store) GetMarket(ctx context.Context, contractAddress string) (*market.Market, error) {
	var m market.Market
	err := s.pool.QueryRow(ctx, `
		SELECT contract_address, yes_percentage, no_percentage,
		       total_staked, participants, seeded_at, updated_at
		FROM markets
		WHERE contract_address = $1`,
		scan.NormalizeAddress(contractAddress),
	).Scan(
		&m.ContractAddress,
		&m.YesPercentage,
		&m.NoPercentage,
		&m.TotalStaked,
		&m.Participants,
		&m.SeededAt,
		&m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	return &m, nil
}

// ListMarkets returns all archived market snapshots, ordered by contract
// address.
func (s *Store) ListMarkets(ctx context.Context) ([]market.Market, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT contract_address, yes_percentage, no_percentage,
		       total_staked, participants, seeded_at, updated_at
		FROM markets
		ORDER BY contract_address`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()

	var markets []market.Market
	for rows.Next() {
		var m market.Market
		err := rows.Scan(
			&m.ContractAddress,
			&m.YesPercentage,
			&m.NoPercentage,
			&m.TotalStaked,
			&m.Participants,
			&m.SeededAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market row: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// CreatePrediction archives an accepted submission.
func (s *Store) CreatePrediction(ctx context.Context, rec market.PredictionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO predictions (
			id, contract_address, wallet, prediction,
			amount, yes_percentage, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID,
		rec.ContractAddress,
		rec.Wallet,
		string(rec.Prediction),
		rec.Amount,
		rec.YesPercentage,
		rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// ListPredictions returns archived submissions for a contract, newest
// first.
func (s *Store) ListPredictions(ctx context.Context, contractAddress string, limit int32) ([]market.PredictionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, contract_address, wallet, prediction,
		       amount, yes_percentage, submitted_at
		FROM predictions
		WHERE contract_address = $1
		ORDER BY submitted_at DESC
		LIMIT $2`,
		scan.NormalizeAddress(contractAddress),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var records []market.PredictionRecord
	for rows.Next() {
		var (
			rec  market.PredictionRecord
			side string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.ContractAddress,
			&rec.Wallet,
			&side,
			&rec.Amount,
			&rec.YesPercentage,
			&rec.SubmittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction row: %w", err)
		}
		rec.Prediction = market.Prediction(side)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountPredictions returns the number of archived submissions for a
// contract.
func (s *Store) CountPredictions(ctx context.Context, contractAddress string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM predictions WHERE contract_address = $1`,
		scan.NormalizeAddress(contractAddress),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
