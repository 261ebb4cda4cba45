// Package extrt embeds the JavaScript extension runtime and bridges it to
// the deterministic scheduler. The runtime owns the callback tables keyed
// by timer id, call id, and event registration, and dispatches each popped
// macrotask to the matching JS callable.
//
// The VM runs on the host loop's goroutine, so JS-initiated ingestion
// (setTimeout, clearTimeout) may call the scheduler directly; asynchronous
// producers (the HTTP connector) go through the single-writer funnel.
// goja drains pending promise reactions before returning from a callable
// invocation, so microtasks settle between scheduling steps.
package extrt

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dop251/goja"

	"github.com/me/exthost/internal/hostcall"
	"github.com/me/exthost/internal/sched"
)

// Runtime hosts one extension inside a goja VM.
type Runtime struct {
	vm        *goja.Runtime
	sched     *sched.Scheduler
	connector *hostcall.Connector
	logger    *slog.Logger
	ctx       context.Context

	timerCBs  map[uint64]goja.Callable
	callCBs   map[string]goja.Callable
	streamCBs map[string]goja.Callable
	eventCB   goja.Callable
}

// New creates a runtime bound to the scheduler and connector. The context
// bounds all host calls the extension issues.
func New(ctx context.Context, s *sched.Scheduler, conn *hostcall.Connector, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{
		vm:        goja.New(),
		sched:     s,
		connector: conn,
		logger:    logger.With("component", "extrt"),
		ctx:       ctx,
		timerCBs:  make(map[uint64]goja.Callable),
		callCBs:   make(map[string]goja.Callable),
		streamCBs: make(map[string]goja.Callable),
	}
	if err := rt.install(); err != nil {
		return nil, fmt.Errorf("install host api: %w", err)
	}
	return rt, nil
}

// LoadFile reads and evaluates an extension source file.
func (r *Runtime) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read extension: %w", err)
	}
	return r.Load(path, string(src))
}

// Load evaluates extension source. name is used for stack traces.
func (r *Runtime) Load(name, src string) error {
	if _, err := r.vm.RunScript(name, src); err != nil {
		return fmt.Errorf("evaluate extension %s: %w", name, err)
	}
	return nil
}

// Execute dispatches one popped macrotask to the extension. A macrotask
// with no registered callback is dropped; a JS exception is returned but
// leaves the runtime usable.
func (r *Runtime) Execute(task *sched.Macrotask) error {
	switch task.Kind {
	case sched.KindTimerFired:
		cb, ok := r.timerCBs[task.TimerID]
		if !ok {
			r.logger.Debug("timer fired without callback", "timer_id", task.TimerID)
			return nil
		}
		delete(r.timerCBs, task.TimerID)
		return r.invoke(cb)

	case sched.KindHostcallComplete:
		return r.dispatchHostcall(task)

	case sched.KindInboundEvent:
		if r.eventCB == nil {
			r.logger.Debug("inbound event without handler", "event_id", task.EventID)
			return nil
		}
		return r.invoke(r.eventCB, r.vm.ToValue(task.EventID), r.vm.ToValue(task.Payload))

	default:
		return fmt.Errorf("unknown macrotask kind %d", task.Kind)
	}
}

func (r *Runtime) dispatchHostcall(task *sched.Macrotask) error {
	o := task.Outcome
	switch o.Kind {
	case sched.OutcomeStreamChunk:
		cb, ok := r.streamCBs[task.CallID]
		if !ok {
			r.logger.Debug("stream chunk without callback", "call_id", task.CallID)
			return nil
		}
		if o.IsFinal {
			delete(r.streamCBs, task.CallID)
		}
		chunk := r.vm.ToValue(map[string]any{
			"sequence": o.Sequence,
			"data":     o.Chunk,
			"final":    o.IsFinal,
		})
		return r.invoke(cb, chunk)

	case sched.OutcomeSuccess:
		cb, ok := r.callCBs[task.CallID]
		if !ok {
			return nil
		}
		delete(r.callCBs, task.CallID)
		return r.invoke(cb, goja.Null(), r.vm.ToValue(o.Value))

	case sched.OutcomeError:
		cb, ok := r.callCBs[task.CallID]
		if !ok {
			return nil
		}
		delete(r.callCBs, task.CallID)
		errVal := r.vm.ToValue(map[string]any{"code": o.Code, "message": o.Message})
		return r.invoke(cb, errVal, goja.Null())

	default:
		return fmt.Errorf("unknown outcome kind %d", o.Kind)
	}
}

func (r *Runtime) invoke(cb goja.Callable, args ...goja.Value) error {
	if _, err := cb(goja.Undefined(), args...); err != nil {
		return fmt.Errorf("extension callback: %w", err)
	}
	return nil
}
