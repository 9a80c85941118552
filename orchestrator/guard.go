package orchestrator

import (
	"fmt"
	"sync"

	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/event"
)

// guard is the single piece of shared mutable state touched from both the
// main iteration task and concurrently invoked Bridge handlers: the
// counters and active bindings from §3, plus the event emitter they are
// reported through. Every mutation and its corresponding emission happen
// inside one critical section so seq assignment can never be reordered
// relative to the state it describes (§5, §8 invariant 3).
type guard struct {
	mu sync.Mutex

	emitter *event.Emitter

	subcallCount    int
	subcallSequence int
	replSequence    int
	subcallLimit    int

	bindings core.Bindings
}

func newGuard(emitter *event.Emitter, subcallLimit int) *guard {
	return &guard{emitter: emitter, subcallLimit: subcallLimit}
}

// emit assigns the next event seq and enqueues delivery without exposing
// the emitter's own lock to callers holding g.mu; Emitter.Emit waits on the
// Sink only when its backlog is full, and the delivery goroutine never takes
// g.mu, so calling it under g.mu cannot deadlock.
func (g *guard) emit(kind event.Kind, summary string, payload event.Payload) event.Event {
	return g.emitter.Emit(kind, summary, payload)
}

// beginReplExecution assigns the next repl-<N> id, binds it as active
// alongside iterationIndex, and emits repl.execution.started atomically.
func (g *guard) beginReplExecution(iterationIndex int) (string, event.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.replSequence++
	id := fmt.Sprintf("repl-%d", g.replSequence)
	g.bindings = core.Bindings{IterationIndex: iterationIndex, ReplExecutionID: id}

	ev := g.emit(event.KindReplStarted, "repl execution started", event.Payload{
		"replExecutionId": id,
		"iteration":       iterationIndex,
	})
	return id, ev
}

// endReplExecution clears the active binding and emits
// repl.execution.completed atomically with the clear.
func (g *guard) endReplExecution(id string, payload event.Payload) event.Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.bindings = core.Bindings{}

	if payload == nil {
		payload = event.Payload{}
	}
	payload["replExecutionId"] = id
	return g.emit(event.KindReplCompleted, "repl execution completed", payload)
}

// snapshot returns the currently active bindings without mutating them.
func (g *guard) snapshot() core.Bindings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bindings
}

// reserveSubcall implements steps 1-2 of §4.8's subcall accounting: assign
// an id, snapshot bindings, and either reject (budget exhausted) or
// reserve a slot by incrementing subcallCount, all under one lock so the
// budget check and the count mutation cannot race with a concurrent
// reservation.
func (g *guard) reserveSubcall(model string) (id string, bindings core.Bindings, rejected bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.subcallSequence++
	id = fmt.Sprintf("sub-%d", g.subcallSequence)
	bindings = g.bindings

	if g.subcallCount >= g.subcallLimit {
		g.emit(event.KindSubcallRejected, "sub-call budget exhausted", event.Payload{
			"subcallId":       id,
			"iterationIndex":  bindings.IterationIndex,
			"replExecutionId": bindings.ReplExecutionID,
			"model":           model,
			"subcallCount":    g.subcallCount,
			"subcallLimit":    g.subcallLimit,
		})
		return id, bindings, true
	}

	g.subcallCount++
	g.emit(event.KindSubcallStarted, "sub-call started", event.Payload{
		"subcallId":       id,
		"iterationIndex":  bindings.IterationIndex,
		"replExecutionId": bindings.ReplExecutionID,
		"model":           model,
	})
	return id, bindings, false
}

// completeSubcall emits subcall.completed or subcall.failed. It does not
// need to hold g.mu across an I/O call — the caller already performed the
// LM call before invoking this — so it takes the lock only for the
// emission itself.
func (g *guard) completeSubcall(id string, bindings core.Bindings, model string, ok bool, detail string) event.Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	kind := event.KindSubcallCompleted
	summary := "sub-call completed"
	if !ok {
		kind = event.KindSubcallFailed
		summary = "sub-call failed"
	}

	return g.emit(kind, summary, event.Payload{
		"subcallId":       id,
		"iterationIndex":  bindings.IterationIndex,
		"replExecutionId": bindings.ReplExecutionID,
		"model":           model,
		"detail":          detail,
	})
}

func (g *guard) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subcallCount
}
