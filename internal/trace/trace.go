// Package trace renders the observable macrotask order as a canonical,
// line-oriented transcript. Two runs fed the same script of ingestion
// calls and clock movements must produce byte-identical transcripts; the
// replay and golden-file tooling compares them verbatim.
package trace

import (
	"fmt"
	"strings"

	"github.com/me/exthost/internal/sched"
)

// Entry is one popped macrotask: its sequence number, kind tag, and a
// minimal deterministic payload summary.
type Entry struct {
	Seq     uint64 `json:"seq"`
	Kind    string `json:"kind"`
	Summary string `json:"summary"`
}

// String renders the entry as one canonical transcript line.
func (e Entry) String() string {
	return fmt.Sprintf("%06d %s %s", e.Seq, e.Kind, e.Summary)
}

// FromMacrotask summarizes a popped macrotask into a transcript entry.
func FromMacrotask(t *sched.Macrotask) Entry {
	e := Entry{Seq: uint64(t.Seq), Kind: t.Kind.String()}
	switch t.Kind {
	case sched.KindTimerFired:
		e.Summary = fmt.Sprintf("timer_id=%d", t.TimerID)
	case sched.KindHostcallComplete:
		e.Summary = fmt.Sprintf("call_id=%s %s", t.CallID, summarizeOutcome(t.Outcome))
	case sched.KindInboundEvent:
		e.Summary = fmt.Sprintf("event_id=%s payload=%s", t.EventID, Canonical(t.Payload))
	default:
		e.Summary = "?"
	}
	return e
}

func summarizeOutcome(o sched.Outcome) string {
	switch o.Kind {
	case sched.OutcomeSuccess:
		return "success value=" + Canonical(o.Value)
	case sched.OutcomeError:
		return fmt.Sprintf("error code=%s message=%q", o.Code, o.Message)
	case sched.OutcomeStreamChunk:
		return fmt.Sprintf("chunk seq=%d final=%t value=%s", o.Sequence, o.IsFinal, Canonical(o.Chunk))
	default:
		return "?"
	}
}

// Recorder accumulates transcript entries in pop order.
type Recorder struct {
	entries []Entry
}

// Observe records one popped macrotask.
func (r *Recorder) Observe(t *sched.Macrotask) {
	r.entries = append(r.entries, FromMacrotask(t))
}

// Entries returns the recorded transcript so far.
func (r *Recorder) Entries() []Entry {
	return r.entries
}

// Render joins the transcript into its canonical textual form, one entry
// per line with a trailing newline. An empty transcript renders empty.
func Render(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Diff compares two transcripts and describes the first divergence, or
// returns "" when they match. Used by replay verification.
func Diff(want, got []Entry) string {
	n := len(want)
	if len(got) < n {
		n = len(got)
	}
	for i := 0; i < n; i++ {
		if want[i] != got[i] {
			return fmt.Sprintf("line %d differs:\n- %s\n+ %s", i+1, want[i], got[i])
		}
	}
	if len(want) != len(got) {
		return fmt.Sprintf("length differs: recorded %d entries, replay produced %d", len(want), len(got))
	}
	return ""
}
