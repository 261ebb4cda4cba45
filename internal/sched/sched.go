// Package sched implements the deterministic event-loop scheduler that
// drives extension execution. It reproduces single-threaded event-loop
// semantics (timers, host-call completions, inbound events) under a strict
// total order, so that two runs fed the same script of ingestion calls and
// clock movements pop macrotasks in exactly the same order. Replay and
// transcript-diffing tooling depends on that guarantee.
//
// The scheduler has one logical owner and no internal locking. Producers
// running on other goroutines must funnel their ingestion calls through a
// single writer (see internal/host). The Clock is the only piece of state
// built for concurrent access.
package sched

import "log/slog"

// Scheduler owns the sequence counter, the timer store, and the macrotask
// queue. Ingestion methods stamp entities with the next sequence number;
// Step hands the caller at most one macrotask per invocation.
type Scheduler struct {
	clock  Clock
	seq    seqGen
	timers *timerStore
	queue  taskQueue
	logger *slog.Logger
}

// New creates a Scheduler reading time from clock.
func New(clock Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: newTimerStore(),
		logger: logger.With("component", "sched"),
	}
}

// ScheduleTimer registers a timer due delayMS from now and returns its id.
// Timers sharing a deadline fire in the order they were scheduled.
func (s *Scheduler) ScheduleTimer(delayMS uint64) uint64 {
	id := s.timers.schedule(s.clock.Now(), delayMS, s.seq.next())
	s.logger.Debug("timer scheduled", "timer_id", id, "delay_ms", delayMS)
	return id
}

// CancelTimer marks a timer cancelled so it is never promoted. It returns
// true on the first cancellation of the id. Cancelling a timer that was
// already promoted has no effect on the queued macrotask.
func (s *Scheduler) CancelTimer(id uint64) bool {
	fresh := s.timers.cancel(id)
	s.logger.Debug("timer cancelled", "timer_id", id, "newly", fresh)
	return fresh
}

// EnqueueHostcallComplete queues the outcome of a finished host call.
func (s *Scheduler) EnqueueHostcallComplete(callID string, outcome Outcome) {
	s.enqueue(hostcallComplete(callID, outcome))
}

// EnqueueStreamChunk queues one chunk of a streaming host call. Producers
// must keep sequence non-decreasing per call and mark exactly one trailing
// chunk final.
func (s *Scheduler) EnqueueStreamChunk(callID string, sequence uint64, chunk any, isFinal bool) {
	s.EnqueueHostcallComplete(callID, StreamChunkOutcome(sequence, chunk, isFinal))
}

// EnqueueEvent queues an inbound host event for the extension.
func (s *Scheduler) EnqueueEvent(eventID string, payload any) {
	s.enqueue(inboundEvent(eventID, payload))
}

func (s *Scheduler) enqueue(t Macrotask) {
	t.Seq = s.seq.next()
	s.queue.push(t)
}

// Step promotes due timers into the macrotask queue and returns the single
// lowest-sequence macrotask, or nil when the host is idle. The caller runs
// the task's side effects and drains any microtasks it spawns before
// calling Step again.
//
// Promoted timers receive a fresh sequence number at promotion time, so
// they are appended after whatever is already queued: a timer whose
// nominal deadline has passed never preempts a host-call or event
// macrotask that became runnable first.
func (s *Scheduler) Step() *Macrotask {
	for _, id := range s.timers.promoteDue(s.clock.Now()) {
		s.enqueue(timerFired(id))
	}
	return s.queue.pop()
}

// HasPending reports whether any macrotask is queued or any non-cancelled
// timer is outstanding.
func (s *Scheduler) HasPending() bool {
	return !s.queue.empty() || s.timers.pending() > 0
}

// MacrotaskCount returns the number of queued, not-yet-popped macrotasks.
func (s *Scheduler) MacrotaskCount() int {
	return s.queue.len()
}

// TimerCount returns the number of non-cancelled timers awaiting promotion.
func (s *Scheduler) TimerCount() int {
	return s.timers.pending()
}

// NextTimerDeadline returns the earliest non-cancelled timer deadline.
// The second result is false when no live timer exists.
func (s *Scheduler) NextTimerDeadline() (uint64, bool) {
	return s.timers.nextDeadline()
}

// TimeUntilNextTimer returns milliseconds until the earliest live timer is
// due, saturating at zero once the deadline has passed. The host's outer
// wait loop uses it to bound how long it may block.
func (s *Scheduler) TimeUntilNextTimer() (uint64, bool) {
	deadline, ok := s.timers.nextDeadline()
	if !ok {
		return 0, false
	}
	now := s.clock.Now()
	if deadline <= now {
		return 0, true
	}
	return deadline - now, true
}
