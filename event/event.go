package event

// Kind is a dotted string from the closed vocabulary in §4.5.
type Kind string

const (
	KindRunStarted         Kind = "run.started"
	KindRunInitialized     Kind = "run.initialized"
	KindRunFinalized       Kind = "run.finalized"
	KindRunFailed          Kind = "run.failed"
	KindRunEndedCompleted  Kind = "run.ended_completed"
	KindRunEndedFailed     Kind = "run.ended_failed"
	KindIterationStarted   Kind = "root.iteration.started"
	KindIterationCompleted Kind = "root.iteration.completed"
	KindReplStarted        Kind = "repl.execution.started"
	KindReplCompleted      Kind = "repl.execution.completed"
	KindSubcallStarted     Kind = "subcall.started"
	KindSubcallCompleted   Kind = "subcall.completed"
	KindSubcallFailed      Kind = "subcall.failed"
	KindSubcallRejected    Kind = "subcall.rejected"
	KindSubcallBatchStart  Kind = "subcall.batch_started"
	KindSubcallBatchDone   Kind = "subcall.batch_completed"
)

// Payload is a bounded, JSON-serializable mapping attached to an event.
type Payload map[string]any

// Event is one entry in the totally ordered runtime event stream (§3, §6.3).
type Event struct {
	Ts      int64   `json:"ts"` // unix milliseconds
	Seq     int     `json:"seq"`
	Kind    Kind    `json:"kind"`
	Summary string  `json:"summary"`
	Payload Payload `json:"payload,omitempty"`
}

// Sink accepts a totally ordered stream of runtime events. Deliver may be
// slow or asynchronous internally, but the Emitter always awaits it before
// delivering the next event, so a Sink implementation observes events
// strictly in seq order. Deliver errors are the Sink's own business: the
// Emitter logs them at warn level through its logger and otherwise ignores
// them — event delivery is best-effort and must never fail a run.
type Sink interface {
	Deliver(e Event) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(e Event) error

func (f SinkFunc) Deliver(e Event) error { return f(e) }

// NopSink discards every event. Useful when no observability is wired up.
type NopSink struct{}

func (NopSink) Deliver(Event) error { return nil }
