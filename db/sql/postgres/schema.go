package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// migrations are applied in order; a step's version is its index plus one.
// Append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cache_entries (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS cache_entries_expires_at_idx ON cache_entries (expires_at)`,
}

// migrateLock is the pg_advisory_xact_lock key serializing Migrate across
// processes sharing a database.
const migrateLock = 0x6c736269626c65

// SchemaVersion is the highest migration Migrate can apply.
func SchemaVersion() int { return len(migrations) }

// Migrate brings the schema up to SchemaVersion and returns how many steps
// it applied. Steps and their bookkeeping share one transaction.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	if db == nil {
		return 0, errors.New("postgres: migrate: nil db")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrateLock); err != nil {
		return 0, fmt.Errorf("postgres: migrate lock: %w", err)
	}
	const bookkeeping = `CREATE TABLE IF NOT EXISTS lsbible_schema (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := tx.ExecContext(ctx, bookkeeping); err != nil {
		return 0, fmt.Errorf("postgres: migrate: %w", err)
	}

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM lsbible_schema`).Scan(&current); err != nil {
		return 0, fmt.Errorf("postgres: schema version: %w", err)
	}

	applied := 0
	for v := current + 1; v <= len(migrations); v++ {
		if _, err := tx.ExecContext(ctx, migrations[v-1]); err != nil {
			return 0, fmt.Errorf("postgres: migration %d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO lsbible_schema (version) VALUES ($1)`, v); err != nil {
			return 0, fmt.Errorf("postgres: record migration %d: %w", v, err)
		}
		applied++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: migrate commit: %w", err)
	}
	return applied, nil
}
