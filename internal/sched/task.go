package sched

// Kind identifies the payload variant carried by a Macrotask. The set is
// closed; every consumption site switches exhaustively over it.
type Kind uint8

const (
	// KindTimerFired marks a macrotask produced by timer promotion.
	KindTimerFired Kind = iota
	// KindHostcallComplete marks the outcome of an asynchronous host call.
	KindHostcallComplete
	// KindInboundEvent marks an event pushed to the extension by the host.
	KindInboundEvent
)

// String returns the trace tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindTimerFired:
		return "timer_fired"
	case KindHostcallComplete:
		return "hostcall_complete"
	case KindInboundEvent:
		return "inbound_event"
	default:
		return "unknown"
	}
}

// OutcomeKind identifies the variant of a host-call outcome.
type OutcomeKind uint8

const (
	// OutcomeSuccess carries the call's result value.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeError carries a producer-supplied error code and message.
	// The scheduler transports it without interpretation.
	OutcomeError
	// OutcomeStreamChunk carries one chunk of a streaming response.
	OutcomeStreamChunk
)

// String returns the trace tag for the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeError:
		return "error"
	case OutcomeStreamChunk:
		return "stream_chunk"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a host call. Exactly one variant's
// fields are meaningful, selected by Kind.
type Outcome struct {
	Kind OutcomeKind

	// OutcomeSuccess
	Value any

	// OutcomeError
	Code    string
	Message string

	// OutcomeStreamChunk. Sequence is per-call and non-decreasing;
	// exactly one chunk per call carries IsFinal.
	Sequence uint64
	Chunk    any
	IsFinal  bool
}

// SuccessOutcome builds a success outcome.
func SuccessOutcome(value any) Outcome {
	return Outcome{Kind: OutcomeSuccess, Value: value}
}

// ErrorOutcome builds an error outcome. Code and message are opaque to the
// scheduler; the embedding host interprets them after popping the task.
func ErrorOutcome(code, message string) Outcome {
	return Outcome{Kind: OutcomeError, Code: code, Message: message}
}

// StreamChunkOutcome builds a stream-chunk outcome.
func StreamChunkOutcome(sequence uint64, chunk any, isFinal bool) Outcome {
	return Outcome{Kind: OutcomeStreamChunk, Sequence: sequence, Chunk: chunk, IsFinal: isFinal}
}

// Macrotask is one unit of scheduled work, ordered solely by Seq.
type Macrotask struct {
	Seq  Seq
	Kind Kind

	// KindTimerFired
	TimerID uint64

	// KindHostcallComplete
	CallID  string
	Outcome Outcome

	// KindInboundEvent
	EventID string
	Payload any
}

func timerFired(timerID uint64) Macrotask {
	return Macrotask{Kind: KindTimerFired, TimerID: timerID}
}

func hostcallComplete(callID string, outcome Outcome) Macrotask {
	return Macrotask{Kind: KindHostcallComplete, CallID: callID, Outcome: outcome}
}

func inboundEvent(eventID string, payload any) Macrotask {
	return Macrotask{Kind: KindInboundEvent, EventID: eventID, Payload: payload}
}
