package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all transcript tables. Each statement uses
// IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		extension  TEXT NOT NULL DEFAULT '',
		clock_mode TEXT NOT NULL DEFAULT 'system',
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS trace_events (
		run_id   TEXT NOT NULL,
		position INTEGER NOT NULL,
		seq      INTEGER NOT NULL,
		kind     TEXT NOT NULL,
		summary  TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_trace_events_run_id ON trace_events(run_id)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
