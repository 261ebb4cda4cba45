// Package script parses and executes scheduler scripts: YAML documents
// describing a deterministic sequence of ingestion calls and manual-clock
// movements. Scripts back the trace CLI command, golden-transcript tests,
// and replay verification.
package script

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script is a parsed scheduler script.
type Script struct {
	// Name is an optional label used in logs and stored run metadata.
	Name string `yaml:"name"`
	// Clock seeds the manual clock; defaults to 0.
	Clock uint64 `yaml:"clock"`
	Steps []Step `yaml:"steps"`
}

// Step is one scripted operation. Exactly one field must be set.
type Step struct {
	ScheduleTimer *TimerOp  `yaml:"schedule_timer,omitempty"`
	CancelTimer   *CancelOp `yaml:"cancel_timer,omitempty"`
	Event         *EventOp  `yaml:"enqueue_event,omitempty"`
	Hostcall      *CallOp   `yaml:"enqueue_hostcall,omitempty"`
	StreamChunk   *ChunkOp  `yaml:"enqueue_stream_chunk,omitempty"`
	Advance       *uint64   `yaml:"advance,omitempty"`
	SetClock      *uint64   `yaml:"set_clock,omitempty"`
	// Drain pops macrotasks until the scheduler reports idle.
	Drain bool `yaml:"drain,omitempty"`
	// StepCount pops at most N macrotasks.
	StepCount int `yaml:"step,omitempty"`
}

// TimerOp schedules a timer. Label lets later cancel_timer steps refer to
// the returned id without hardcoding it.
type TimerOp struct {
	Delay uint64 `yaml:"delay"`
	Label string `yaml:"label,omitempty"`
}

// CancelOp cancels a timer by label (preferred) or raw id.
type CancelOp struct {
	Label string `yaml:"label,omitempty"`
	ID    uint64 `yaml:"id,omitempty"`
}

// EventOp enqueues an inbound event.
type EventOp struct {
	EventID string `yaml:"event_id"`
	Payload any    `yaml:"payload,omitempty"`
}

// CallOp enqueues a host-call completion: a success value or an error.
type CallOp struct {
	CallID string `yaml:"call_id"`
	Value  any    `yaml:"value,omitempty"`
	Error  *struct {
		Code    string `yaml:"code"`
		Message string `yaml:"message"`
	} `yaml:"error,omitempty"`
}

// ChunkOp enqueues one streaming chunk.
type ChunkOp struct {
	CallID   string `yaml:"call_id"`
	Sequence uint64 `yaml:"sequence"`
	Chunk    any    `yaml:"chunk,omitempty"`
	Final    bool   `yaml:"final,omitempty"`
}

// Parse decodes a script document.
func Parse(data []byte) (*Script, error) {
	var sc Script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	for i, step := range sc.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &sc, nil
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Parse(data)
}

func (s Step) validate() error {
	n := 0
	if s.ScheduleTimer != nil {
		n++
	}
	if s.CancelTimer != nil {
		if s.CancelTimer.Label == "" && s.CancelTimer.ID == 0 {
			return fmt.Errorf("cancel_timer needs a label or id")
		}
		n++
	}
	if s.Event != nil {
		if s.Event.EventID == "" {
			return fmt.Errorf("enqueue_event needs an event_id")
		}
		n++
	}
	if s.Hostcall != nil {
		if s.Hostcall.CallID == "" {
			return fmt.Errorf("enqueue_hostcall needs a call_id")
		}
		n++
	}
	if s.StreamChunk != nil {
		if s.StreamChunk.CallID == "" {
			return fmt.Errorf("enqueue_stream_chunk needs a call_id")
		}
		n++
	}
	if s.Advance != nil {
		n++
	}
	if s.SetClock != nil {
		n++
	}
	if s.Drain {
		n++
	}
	if s.StepCount > 0 {
		n++
	}
	if n == 0 {
		return fmt.Errorf("empty step")
	}
	if n > 1 {
		return fmt.Errorf("step sets %d operations, want exactly one", n)
	}
	return nil
}
