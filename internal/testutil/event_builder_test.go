package testutil

import (
	"testing"

	"github.com/hupe1980/rlmharness/event"
	"github.com/stretchr/testify/assert"
)

func TestEventBuilder_BuildsPopulatedEvent(t *testing.T) {
	ev := NewEventBuilder(event.KindSubcallRejected).
		Seq(4).
		Ts(1000).
		Summary("sub-call budget exhausted").
		Payload("subcallId", "sub-3").
		Payload("subcallLimit", 2).
		Build()

	assert.Equal(t, event.KindSubcallRejected, ev.Kind)
	assert.Equal(t, 4, ev.Seq)
	assert.Equal(t, int64(1000), ev.Ts)
	assert.Equal(t, "sub-call budget exhausted", ev.Summary)
	assert.Equal(t, "sub-3", ev.Payload["subcallId"])
	assert.Equal(t, 2, ev.Payload["subcallLimit"])
}

func TestEventBuilder_NilPayloadWhenUnset(t *testing.T) {
	ev := NewEventBuilder(event.KindRunStarted).Build()
	assert.Nil(t, ev.Payload)
}
