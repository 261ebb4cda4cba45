package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/exthost/internal/trace"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath. Use
// ":memory:" for an in-memory database in tests.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, extension, clock_mode, created_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Extension, run.ClockMode, run.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT r.id, r.extension, r.clock_mode, r.created_at,
		        (SELECT COUNT(*) FROM trace_events t WHERE t.run_id = r.id)
		   FROM runs r WHERE r.id = ?`, id)

	var run Run
	var createdAt string
	if err := row.Scan(&run.ID, &run.Extension, &run.ClockMode, &createdAt, &run.Entries); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run %s: %w", id, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for run %s: %w", id, err)
	}
	run.CreatedAt = ts
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.extension, r.clock_mode, r.created_at,
		        (SELECT COUNT(*) FROM trace_events t WHERE t.run_id = r.id)
		   FROM runs r ORDER BY r.created_at DESC, r.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var createdAt string
		if err := rows.Scan(&run.ID, &run.Extension, &run.ClockMode, &createdAt, &run.Entries); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		run.CreatedAt = ts
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) AppendEntries(ctx context.Context, runID string, entries []trace.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.logger.Debug("sql", "op", "insert", "table", "trace_events", "run_id", runID, "count", len(entries))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var base int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trace_events WHERE run_id = ?`, runID).Scan(&base); err != nil {
		return fmt.Errorf("count entries for run %s: %w", runID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trace_events (run_id, position, seq, kind, summary) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, base+i, e.Seq, e.Kind, e.Summary); err != nil {
			return fmt.Errorf("insert entry %d for run %s: %w", base+i, runID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetTrace(ctx context.Context, runID string) ([]trace.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, summary FROM trace_events WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trace for run %s: %w", runID, err)
	}
	defer rows.Close()

	var entries []trace.Entry
	for rows.Next() {
		var e trace.Entry
		if err := rows.Scan(&e.Seq, &e.Kind, &e.Summary); err != nil {
			return nil, fmt.Errorf("scan trace entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
