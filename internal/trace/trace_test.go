package trace

import (
	"io"
	"log/slog"
	"testing"

	"github.com/me/exthost/internal/sched"
)

func TestCanonical_SortsKeysAndFormatsFloats(t *testing.T) {
	v := map[string]any{
		"zeta":  []any{1, "two", nil},
		"alpha": map[string]any{"b": 2.5, "a": true},
		"num":   1e21,
	}
	want := `{"alpha":{"a":true,"b":2.5},"num":1000000000000000000000,"zeta":[1,"two",null]}`
	if got := Canonical(v); got != want {
		t.Fatalf("Canonical = %s, want %s", got, want)
	}
}

func TestFromMacrotask_Summaries(t *testing.T) {
	clock := sched.NewManualClock(0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := sched.New(clock, logger)

	s.ScheduleTimer(10)
	s.EnqueueHostcallComplete("call-1", sched.ErrorOutcome("denied", "host not allowed"))
	s.EnqueueStreamChunk("call-2", 3, "part", true)
	s.EnqueueEvent("evt-1", map[string]any{"b": 1, "a": "x"})
	clock.Advance(10)

	// The timer's tie-break consumes seq 1; the three enqueues take 2-4 and
	// the promoted timer gets a fresh seq 5.
	want := []string{
		`000002 hostcall_complete call_id=call-1 error code=denied message="host not allowed"`,
		`000003 hostcall_complete call_id=call-2 chunk seq=3 final=true value="part"`,
		`000004 inbound_event event_id=evt-1 payload={"a":"x","b":1}`,
		`000005 timer_fired timer_id=1`,
	}

	var rec Recorder
	for task := s.Step(); task != nil; task = s.Step() {
		rec.Observe(task)
	}

	entries := rec.Entries()
	if len(entries) != len(want) {
		t.Fatalf("recorded %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].String() != w {
			t.Errorf("entry %d:\n got %s\nwant %s", i, entries[i], w)
		}
	}
}

func TestDiff(t *testing.T) {
	a := []Entry{{Seq: 1, Kind: "inbound_event", Summary: "event_id=a payload=null"}}
	b := []Entry{{Seq: 1, Kind: "inbound_event", Summary: "event_id=b payload=null"}}

	if d := Diff(a, a); d != "" {
		t.Fatalf("Diff of identical transcripts = %q", d)
	}
	if d := Diff(a, b); d == "" {
		t.Fatal("Diff missed a divergence")
	}
	if d := Diff(a, append(a, b...)); d == "" {
		t.Fatal("Diff missed a length mismatch")
	}
}
