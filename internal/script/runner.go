package script

import (
	"fmt"
	"log/slog"

	"github.com/me/exthost/internal/sched"
	"github.com/me/exthost/internal/trace"
)

// Runner executes scripts against a scheduler and manual clock.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a script runner.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger.With("component", "script")}
}

// Session binds a script execution to an existing scheduler. Execute, when
// set, runs each popped macrotask's side effects (e.g. extension
// callbacks) before it is recorded.
type Session struct {
	Sched   *sched.Scheduler
	Clock   *sched.ManualClock
	Execute func(task *sched.Macrotask) error
}

// Run executes the script against a fresh scheduler and returns the
// transcript of popped macrotasks. Macrotasks left queued after a step or
// drain op remain queued; a final implicit drain is NOT performed, so
// scripts state their pops explicitly.
func (r *Runner) Run(sc *Script) ([]trace.Entry, error) {
	clock := sched.NewManualClock(sc.Clock)
	return r.RunSession(sc, Session{
		Sched: sched.New(clock, r.logger),
		Clock: clock,
	})
}

// RunSession executes the script against the caller's scheduler, clock,
// and executor.
func (r *Runner) RunSession(sc *Script, sess Session) ([]trace.Entry, error) {
	labels := make(map[string]uint64)

	var rec trace.Recorder
	for i, step := range sc.Steps {
		if err := r.apply(&sess, labels, &rec, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return rec.Entries(), nil
}

func (r *Runner) apply(sess *Session, labels map[string]uint64, rec *trace.Recorder, step Step) error {
	s, clock := sess.Sched, sess.Clock
	switch {
	case step.ScheduleTimer != nil:
		id := s.ScheduleTimer(step.ScheduleTimer.Delay)
		if step.ScheduleTimer.Label != "" {
			labels[step.ScheduleTimer.Label] = id
		}

	case step.CancelTimer != nil:
		id := step.CancelTimer.ID
		if step.CancelTimer.Label != "" {
			resolved, ok := labels[step.CancelTimer.Label]
			if !ok {
				return fmt.Errorf("unknown timer label %q", step.CancelTimer.Label)
			}
			id = resolved
		}
		s.CancelTimer(id)

	case step.Event != nil:
		s.EnqueueEvent(step.Event.EventID, step.Event.Payload)

	case step.Hostcall != nil:
		if step.Hostcall.Error != nil {
			s.EnqueueHostcallComplete(step.Hostcall.CallID,
				sched.ErrorOutcome(step.Hostcall.Error.Code, step.Hostcall.Error.Message))
		} else {
			s.EnqueueHostcallComplete(step.Hostcall.CallID, sched.SuccessOutcome(step.Hostcall.Value))
		}

	case step.StreamChunk != nil:
		s.EnqueueStreamChunk(step.StreamChunk.CallID, step.StreamChunk.Sequence,
			step.StreamChunk.Chunk, step.StreamChunk.Final)

	case step.Advance != nil:
		clock.Advance(*step.Advance)

	case step.SetClock != nil:
		clock.Set(*step.SetClock)

	case step.Drain:
		for task := s.Step(); task != nil; task = s.Step() {
			if err := sess.observe(rec, task); err != nil {
				return err
			}
		}

	case step.StepCount > 0:
		for i := 0; i < step.StepCount; i++ {
			task := s.Step()
			if task == nil {
				break
			}
			if err := sess.observe(rec, task); err != nil {
				return err
			}
		}
	}
	return nil
}

func (sess *Session) observe(rec *trace.Recorder, task *sched.Macrotask) error {
	if sess.Execute != nil {
		if err := sess.Execute(task); err != nil {
			return fmt.Errorf("execute %s seq=%d: %w", task.Kind, task.Seq, err)
		}
	}
	rec.Observe(task)
	return nil
}
