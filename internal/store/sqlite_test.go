package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/exthost/internal/trace"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRun(id string) *Run {
	return &Run{
		ID:        id,
		Extension: "testdata/ext.js",
		ClockMode: "manual",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestCreateAndGetRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	run := sampleRun("run_1")
	require.NoError(t, st.CreateRun(ctx, run))

	got, err := st.GetRun(ctx, "run_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Extension, got.Extension)
	assert.Equal(t, run.ClockMode, got.ClockMode)
	assert.Equal(t, 0, got.Entries)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
}

func TestGetRun_Missing(t *testing.T) {
	st := testStore(t)
	got, err := st.GetRun(context.Background(), "run_missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateRun_DuplicateID(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateRun(ctx, sampleRun("run_1")))
	assert.Error(t, st.CreateRun(ctx, sampleRun("run_1")))
}

func TestAppendAndGetTrace(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateRun(ctx, sampleRun("run_1")))

	first := []trace.Entry{
		{Seq: 2, Kind: "inbound_event", Summary: "event_id=boot payload=null"},
		{Seq: 3, Kind: "timer_fired", Summary: "timer_id=1"},
	}
	second := []trace.Entry{
		{Seq: 5, Kind: "hostcall_complete", Summary: `call_id=c1 success value="ok"`},
	}
	require.NoError(t, st.AppendEntries(ctx, "run_1", first))
	require.NoError(t, st.AppendEntries(ctx, "run_1", second))
	require.NoError(t, st.AppendEntries(ctx, "run_1", nil)) // no-op

	got, err := st.GetTrace(ctx, "run_1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, append(first, second...), got)

	run, err := st.GetRun(ctx, "run_1")
	require.NoError(t, err)
	assert.Equal(t, 3, run.Entries)
}

func TestGetTrace_EmptyRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateRun(ctx, sampleRun("run_1")))

	got, err := st.GetTrace(ctx, "run_1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListRuns_NewestFirst(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	older := sampleRun("run_older")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := sampleRun("run_newer")
	require.NoError(t, st.CreateRun(ctx, older))
	require.NoError(t, st.CreateRun(ctx, newer))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run_newer", runs[0].ID)
	assert.Equal(t, "run_older", runs[1].ID)

	limited, err := st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run_newer", limited[0].ID)
}
