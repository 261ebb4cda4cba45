// Package host runs the embedding loop that owns the scheduler. The loop
// goroutine is the scheduler's single writer: producers on other
// goroutines submit ingestion operations over a channel and never touch
// the scheduler directly, which keeps the core free of locks and rules
// out re-entrant ingestion during execution.
package host

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/exthost/internal/sched"
)

// Executor runs the side effects of one popped macrotask and drains the
// microtasks it spawns before returning. internal/extrt provides the
// production implementation.
type Executor interface {
	Execute(task *sched.Macrotask) error
}

// Config holds host loop configuration.
type Config struct {
	// OpsBuffer is the capacity of the producer funnel.
	OpsBuffer int
	// IdlePoll bounds the wait when no timer is outstanding, so external
	// stop requests are observed promptly.
	IdlePoll time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{OpsBuffer: 256, IdlePoll: time.Second}
}

// Host drives a scheduler with an executor until stopped.
type Host struct {
	sched  *sched.Scheduler
	exec   Executor
	config Config
	logger *slog.Logger
	ops    chan func(*sched.Scheduler)
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a host loop around the scheduler.
func New(s *sched.Scheduler, exec Executor, cfg Config, logger *slog.Logger) *Host {
	if cfg.OpsBuffer <= 0 {
		cfg.OpsBuffer = DefaultConfig().OpsBuffer
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = DefaultConfig().IdlePoll
	}
	return &Host{
		sched:  s,
		exec:   exec,
		config: cfg,
		logger: logger.With("component", "host"),
		ops:    make(chan func(*sched.Scheduler), cfg.OpsBuffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// SetExecutor replaces the executor. Must be called before Start; it
// exists so callers can break the cycle between an executor that needs a
// connector and a connector that submits through this host.
func (h *Host) SetExecutor(exec Executor) {
	h.exec = exec
}

// Submit delivers an ingestion operation to the loop goroutine. Safe to
// call from any goroutine; blocks only when the funnel is full.
func (h *Host) Submit(op func(*sched.Scheduler)) {
	h.ops <- op
}

// EnqueueEvent funnels an inbound event to the scheduler.
func (h *Host) EnqueueEvent(eventID string, payload any) {
	h.Submit(func(s *sched.Scheduler) {
		s.EnqueueEvent(eventID, payload)
	})
}

// Snapshot is a point-in-time view of scheduler state, taken on the loop
// goroutine so introspection never races the owner.
type Snapshot struct {
	HasPending     bool
	Macrotasks     int
	Timers         int
	NextDeadline   uint64
	HasNext        bool
	UntilNextTimer uint64
}

// Inspect captures scheduler introspection through the funnel.
func (h *Host) Inspect(ctx context.Context) (Snapshot, error) {
	result := make(chan Snapshot, 1)
	h.Submit(func(s *sched.Scheduler) {
		snap := Snapshot{
			HasPending: s.HasPending(),
			Macrotasks: s.MacrotaskCount(),
			Timers:     s.TimerCount(),
		}
		snap.NextDeadline, snap.HasNext = s.NextTimerDeadline()
		snap.UntilNextTimer, _ = s.TimeUntilNextTimer()
		result <- snap
	})
	select {
	case snap := <-result:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Start runs the loop. Blocks until ctx is cancelled or Stop is called.
func (h *Host) Start(ctx context.Context) error {
	h.logger.Info("host loop started")
	defer close(h.doneCh)

	for {
		h.applyPending()
		h.runReady()

		wait := h.config.IdlePoll
		if until, ok := h.sched.TimeUntilNextTimer(); ok {
			timerWait := time.Duration(until) * time.Millisecond
			if timerWait < wait {
				wait = timerWait
			}
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			h.logger.Info("host loop stopping", "reason", "context cancelled")
			return ctx.Err()
		case <-h.stopCh:
			timer.Stop()
			h.logger.Info("host loop stopping", "reason", "stop called")
			return nil
		case op := <-h.ops:
			timer.Stop()
			op(h.sched)
		case <-timer.C:
		}
	}
}

// Stop shuts the loop down and waits for it to exit.
func (h *Host) Stop() error {
	close(h.stopCh)
	<-h.doneCh
	return nil
}

// applyPending ingests every queued producer op without blocking.
func (h *Host) applyPending() {
	for {
		select {
		case op := <-h.ops:
			op(h.sched)
		default:
			return
		}
	}
}

// runReady pops and executes macrotasks until the scheduler goes idle.
// Producer ops arriving mid-burst are ingested between tasks so their
// sequence stamps reflect arrival order at the funnel.
func (h *Host) runReady() {
	for {
		task := h.sched.Step()
		if task == nil {
			return
		}
		if err := h.exec.Execute(task); err != nil {
			h.logger.Error("macrotask execution failed",
				"seq", uint64(task.Seq), "kind", task.Kind.String(), "error", err)
		}
		h.applyPending()
	}
}
