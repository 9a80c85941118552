package event

import (
	"sync"

	"github.com/hupe1980/rlmharness/logging"
)

// Emitter assigns strictly increasing sequence numbers to events and
// delivers them to a Sink one at a time, in assignment order (§5, §8:
// "event.seq is strictly increasing"). Sequence assignment happens under a
// mutex; delivery happens on a single background goroutine reading from an
// internal queue, so a caller waits on Sink I/O only when that queue is full
// and the mutex is never held while a Deliver call is in flight.
type Emitter struct {
	mu     sync.Mutex
	seq    int
	nowFn  func() int64
	sink   Sink
	logger logging.Logger

	queue chan Event
	wg    sync.WaitGroup
}

// NewEmitter starts an Emitter delivering to sink. nowFn supplies the
// millisecond timestamp for each event; pass nil to use the wall clock.
// backlog bounds the number of events that may be pending delivery before
// Emit blocks; 256 is used when backlog <= 0.
func NewEmitter(sink Sink, logger logging.Logger, nowFn func() int64, backlog int) *Emitter {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if nowFn == nil {
		nowFn = defaultNow
	}
	if backlog <= 0 {
		backlog = 256
	}

	e := &Emitter{
		nowFn:  nowFn,
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, backlog),
	}
	e.wg.Add(1)
	go e.drain()
	return e
}

// Emit bounds payload (see Bound), assigns the next sequence number,
// enqueues the event for delivery, and returns without waiting for the Sink
// unless the backlog is full, in which case it blocks until there is room.
// The returned Event reflects the seq and ts actually assigned.
func (e *Emitter) Emit(kind Kind, summary string, payload Payload) Event {
	bounded, err := Bound(payload)
	if err != nil {
		e.logger.Warn("event: payload bound failed, dropping payload", "kind", string(kind), "error", err)
		bounded = nil
	}

	e.mu.Lock()
	e.seq++
	ev := Event{
		Ts:      e.nowFn(),
		Seq:     e.seq,
		Kind:    kind,
		Summary: summary,
		Payload: bounded,
	}
	e.queue <- ev
	e.mu.Unlock()

	return ev
}

// Seq returns the most recently assigned sequence number, or 0 if no event
// has been emitted yet.
func (e *Emitter) Seq() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

func (e *Emitter) drain() {
	defer e.wg.Done()
	for ev := range e.queue {
		if err := e.sink.Deliver(ev); err != nil {
			e.logger.Warn("event: sink delivery failed", "kind", string(ev.Kind), "seq", ev.Seq, "error", err)
		}
	}
}

// Close stops accepting new events implicitly by draining and waiting for
// every already-enqueued event to reach the Sink. Callers must not call
// Emit again after Close returns.
func (e *Emitter) Close() {
	close(e.queue)
	e.wg.Wait()
}

func defaultNow() int64 {
	return nowMillis()
}
