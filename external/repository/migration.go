package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS transcript_records (
		id UUID PRIMARY KEY,
		text TEXT NOT NULL,
		risk_score INTEGER CHECK (risk_score BETWEEN 0 AND 100),
		advice TEXT,
		is_advice_loading BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcript_records_created ON transcript_records (created_at DESC)`,
}

var sqliteSchema = `
CREATE TABLE IF NOT EXISTS transcript_records (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    risk_score INTEGER CHECK (risk_score BETWEEN 0 AND 100),
    advice TEXT,
    is_advice_loading INTEGER NOT NULL DEFAULT 0,
    created_at_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcript_records_created ON transcript_records(created_at_ns DESC);
`

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
