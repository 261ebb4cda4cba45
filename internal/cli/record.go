package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/me/exthost/internal/store"
	"github.com/me/exthost/internal/trace"
)

// recordTranscript persists a transcript as a new run and prints its id.
func recordTranscript(ctx context.Context, dbPath, source, clockMode string, entries []trace.Entry) error {
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate transcript db: %w", err)
	}

	run := &store.Run{
		ID:        "run_" + uuid.New().String()[:8],
		Extension: source,
		ClockMode: clockMode,
		CreatedAt: time.Now().UTC(),
	}
	if err := st.CreateRun(ctx, run); err != nil {
		return err
	}
	if err := st.AppendEntries(ctx, run.ID, entries); err != nil {
		return err
	}

	logger.Info("transcript recorded", "run_id", run.ID, "entries", len(entries), "db", dbPath)
	fmt.Println(run.ID)
	return nil
}
