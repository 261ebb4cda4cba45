package script

import (
	"io"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/me/exthost/internal/trace"
)

const mixedSourcesScript = `
name: mixed_sources
steps:
  - schedule_timer: {delay: 100, label: slow}
  - schedule_timer: {delay: 50}
  - enqueue_event: {event_id: boot, payload: {phase: 1}}
  - drain: true
  - advance: 60
  - enqueue_hostcall: {call_id: call-1, value: {status: 200}}
  - drain: true
  - cancel_timer: {label: slow}
  - advance: 100
  - drain: true
  - enqueue_stream_chunk: {call_id: call-2, sequence: 0, chunk: alpha}
  - enqueue_stream_chunk: {call_id: call-2, sequence: 1, chunk: omega, final: true}
  - drain: true
`

const timerTiesScript = `
name: timer_ties
clock: 1000
steps:
  - schedule_timer: {delay: 100}
  - schedule_timer: {delay: 100}
  - schedule_timer: {delay: 100}
  - advance: 150
  - step: 2
  - drain: true
`

func testRunner(t *testing.T) *Runner {
	t.Helper()
	return NewRunner(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func runScript(t *testing.T, src string) []trace.Entry {
	t.Helper()
	sc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	entries, err := testRunner(t).Run(sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return entries
}

// TestRun_GoldenTranscripts pins the canonical transcript of two scripted
// sessions. Regenerate with: go test ./internal/script -update
func TestRun_GoldenTranscripts(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	g.Assert(t, "mixed_sources", []byte(trace.Render(runScript(t, mixedSourcesScript))))
	g.Assert(t, "timer_ties", []byte(trace.Render(runScript(t, timerTiesScript))))
}

// TestRun_Deterministic runs one script twice and requires byte-identical
// transcripts.
func TestRun_Deterministic(t *testing.T) {
	first := trace.Render(runScript(t, mixedSourcesScript))
	second := trace.Render(runScript(t, mixedSourcesScript))
	if first != second {
		t.Fatalf("transcripts differ:\n--- first\n%s--- second\n%s", first, second)
	}
}

func TestParse_RejectsMalformedSteps(t *testing.T) {
	cases := map[string]string{
		"empty step":    "steps:\n  - {}\n",
		"two ops":       "steps:\n  - {advance: 5, drain: true}\n",
		"missing id":    "steps:\n  - cancel_timer: {}\n",
		"missing event": "steps:\n  - enqueue_event: {payload: 1}\n",
	}
	for name, src := range cases {
		if _, err := Parse([]byte(src)); err == nil {
			t.Errorf("%s: Parse accepted invalid script", name)
		}
	}
}

func TestRun_UnknownLabelFails(t *testing.T) {
	sc, err := Parse([]byte("steps:\n  - cancel_timer: {label: ghost}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := testRunner(t).Run(sc); err == nil {
		t.Fatal("Run accepted an unknown timer label")
	}
}
