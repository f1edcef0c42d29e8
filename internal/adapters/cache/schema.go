package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InitSchema creates the cache tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`
	CREATE TABLE IF NOT EXISTS route_distance_cache (
		origin_key TEXT NOT NULL,
		destination_key TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (origin_key, destination_key)
	);
	`,
		`
	CREATE TABLE IF NOT EXISTS geocode_cache (
		label TEXT PRIMARY KEY,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		resolved_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`,
		`
	CREATE INDEX IF NOT EXISTS idx_route_distance_cache_updated_at
	ON route_distance_cache(updated_at);
	`,
		`
	ALTER TABLE geocode_cache
	ADD COLUMN IF NOT EXISTS resolved_at TIMESTAMPTZ NOT NULL DEFAULT now();
	`,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
