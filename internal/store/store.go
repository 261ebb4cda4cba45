// Package store persists recorded run transcripts for replay verification
// and golden-transcript diffing. The scheduler itself keeps no state across
// restarts; only observed traces are stored.
package store

import (
	"context"
	"time"

	"github.com/me/exthost/internal/trace"
)

// Run is one recorded host session.
type Run struct {
	ID        string
	Extension string // extension source or script path the run executed
	ClockMode string // "system" or "manual"
	CreatedAt time.Time
	Entries   int // number of transcript entries recorded
}

// Store defines the transcript persistence layer.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// AppendEntries records transcript entries in pop order. Entries are
	// immutable once written.
	AppendEntries(ctx context.Context, runID string, entries []trace.Entry) error
	GetTrace(ctx context.Context, runID string) ([]trace.Entry, error)

	Migrate(ctx context.Context) error
	Close() error
}
