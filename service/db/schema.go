package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at setup time. The archive is
// append-mostly, so there is no migration machinery beyond this.
const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	contract_address TEXT NOT NULL,
	risk_level TEXT NOT NULL,
	risk_score DOUBLE PRECISION NOT NULL,
	risk_title TEXT NOT NULL,
	risk_description TEXT NOT NULL DEFAULT '',
	exploit_likelihood INTEGER NOT NULL,
	security_checks JSONB NOT NULL DEFAULT '[]',
	scanned_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_contract_scanned
	ON scans (contract_address, scanned_at DESC);

CREATE TABLE IF NOT EXISTS markets (
	contract_address TEXT PRIMARY KEY,
	yes_percentage INTEGER NOT NULL,
	no_percentage INTEGER NOT NULL,
	total_staked DOUBLE PRECISION NOT NULL,
	participants INTEGER NOT NULL,
	seeded_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
	id TEXT PRIMARY KEY,
	contract_address TEXT NOT NULL,
	wallet TEXT NOT NULL,
	prediction TEXT NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	yes_percentage INTEGER NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_contract_submitted
	ON predictions (contract_address, submitted_at DESC);
`

// EnsureSchema creates the archive tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
