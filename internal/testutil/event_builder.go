package testutil

import "github.com/hupe1980/rlmharness/event"

// EventBuilder provides a fluent helper for constructing event.Event values
// in tests without threading every field through a struct literal.
// Example:
//
//	ev := NewEventBuilder(event.KindSubcallStarted).Seq(3).Summary("sub-call started").
//	        Payload("subcallId", "sub-1").Build()
//
// Chain only the parts you need; Seq and Ts default to zero.
type EventBuilder struct {
	kind    event.Kind
	seq     int
	ts      int64
	summary string
	payload event.Payload
}

// NewEventBuilder creates a builder for an event of the given kind.
func NewEventBuilder(kind event.Kind) *EventBuilder {
	return &EventBuilder{kind: kind}
}

// Seq overrides the event's seq (chainable).
func (b *EventBuilder) Seq(seq int) *EventBuilder { b.seq = seq; return b }

// Ts overrides the event's timestamp in unix milliseconds (chainable).
func (b *EventBuilder) Ts(ts int64) *EventBuilder { b.ts = ts; return b }

// Summary sets the human-readable summary (chainable).
func (b *EventBuilder) Summary(s string) *EventBuilder { b.summary = s; return b }

// Payload sets a single payload key (chainable, repeatable).
func (b *EventBuilder) Payload(key string, val any) *EventBuilder {
	if b.payload == nil {
		b.payload = event.Payload{}
	}
	b.payload[key] = val
	return b
}

// Build constructs the event.Event value.
func (b *EventBuilder) Build() event.Event {
	return event.Event{
		Ts:      b.ts,
		Seq:     b.seq,
		Kind:    b.kind,
		Summary: b.summary,
		Payload: b.payload,
	}
}
