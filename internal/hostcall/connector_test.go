package hostcall

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/me/exthost/internal/sched"
)

// testHarness wires a connector to a scheduler through a channel funnel,
// standing in for the host loop's single-writer discipline.
type testHarness struct {
	sched *sched.Scheduler
	ops   chan func(*sched.Scheduler)
}

func newHarness(t *testing.T, policy Policy) (*Connector, *testHarness) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &testHarness{
		sched: sched.New(sched.NewManualClock(0), logger),
		ops:   make(chan func(*sched.Scheduler), 16),
	}
	conn := New(policy, func(op func(*sched.Scheduler)) { h.ops <- op }, logger)
	return conn, h
}

// await applies funneled ops until a macrotask can be popped.
func (h *testHarness) await(t *testing.T) *sched.Macrotask {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if task := h.sched.Step(); task != nil {
			return task
		}
		select {
		case op := <-h.ops:
			op(h.sched)
		case <-deadline:
			t.Fatal("no macrotask arrived within 5s")
		}
	}
}

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("X-Ext"); got != "yes" {
			t.Errorf("X-Ext header = %q, want yes", got)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	conn, h := newHarness(t, Policy{})
	conn.Do(context.Background(), "call-1", Request{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: map[string]string{"X-Ext": "yes"},
		Body:    []byte(`{}`),
	})

	task := h.await(t)
	if task.Kind != sched.KindHostcallComplete || task.CallID != "call-1" {
		t.Fatalf("task = %+v, want hostcall_complete call-1", task)
	}
	if task.Outcome.Kind != sched.OutcomeSuccess {
		t.Fatalf("outcome = %+v, want success", task.Outcome)
	}
	result := task.Outcome.Value.(map[string]any)
	if result["status"] != http.StatusCreated || result["body"] != `{"ok":true}` {
		t.Fatalf("result = %v", result)
	}
}

func TestDo_PolicyDeniedNeverHitsNetwork(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	conn, h := newHarness(t, Policy{DenyHosts: []string{"127.0.0.1"}})
	conn.Do(context.Background(), "call-1", Request{URL: srv.URL})

	task := h.await(t)
	if task.Outcome.Kind != sched.OutcomeError || task.Outcome.Code != CodeDenied {
		t.Fatalf("outcome = %+v, want error %s", task.Outcome, CodeDenied)
	}
	if hits != 0 {
		t.Fatalf("denied request reached the server %d times", hits)
	}
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	conn, h := newHarness(t, Policy{Timeout: 50 * time.Millisecond})
	conn.Do(context.Background(), "call-1", Request{URL: srv.URL})

	task := h.await(t)
	if task.Outcome.Kind != sched.OutcomeError || task.Outcome.Code != CodeTimeout {
		t.Fatalf("outcome = %+v, want error %s", task.Outcome, CodeTimeout)
	}
}

func TestDo_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	conn, h := newHarness(t, Policy{MaxBodyBytes: 100})
	conn.Do(context.Background(), "call-1", Request{URL: srv.URL})

	task := h.await(t)
	if task.Outcome.Kind != sched.OutcomeError || task.Outcome.Code != CodeTooLarge {
		t.Fatalf("outcome = %+v, want error %s", task.Outcome, CodeTooLarge)
	}
}

func TestDoStream_ChunksEndWithFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		io.WriteString(w, "first")
		flusher.Flush()
		io.WriteString(w, "second")
	}))
	defer srv.Close()

	conn, h := newHarness(t, Policy{})
	conn.DoStream(context.Background(), "stream-1", Request{URL: srv.URL})

	var chunks []sched.Outcome
	for {
		task := h.await(t)
		if task.Outcome.Kind != sched.OutcomeStreamChunk {
			t.Fatalf("outcome = %+v, want stream chunk", task.Outcome)
		}
		chunks = append(chunks, task.Outcome)
		if task.Outcome.IsFinal {
			break
		}
	}

	if len(chunks) == 0 {
		t.Fatal("no chunks delivered")
	}
	var body string
	prev := int64(-1)
	finals := 0
	for _, c := range chunks {
		if int64(c.Sequence) <= prev {
			t.Fatalf("chunk sequence %d not increasing after %d", c.Sequence, prev)
		}
		prev = int64(c.Sequence)
		if s, ok := c.Chunk.(string); ok {
			body += s
		}
		if c.IsFinal {
			finals++
		}
	}
	if finals != 1 {
		t.Fatalf("stream carried %d final chunks, want 1", finals)
	}
	if body != "firstsecond" {
		t.Fatalf("reassembled body = %q, want firstsecond", body)
	}
}

func TestDoStream_PolicyViolationIsFinalErrorChunk(t *testing.T) {
	conn, h := newHarness(t, Policy{RequireTLS: true})
	conn.DoStream(context.Background(), "stream-1", Request{URL: "http://example.com/"})

	task := h.await(t)
	if task.Outcome.Kind != sched.OutcomeStreamChunk || !task.Outcome.IsFinal {
		t.Fatalf("outcome = %+v, want final stream chunk", task.Outcome)
	}
	payload := task.Outcome.Chunk.(map[string]any)
	if payload["error"] != CodeTLSRequired {
		t.Fatalf("chunk error = %v, want %s", payload["error"], CodeTLSRequired)
	}
}
