package trace

import (
	"testing"

	"github.com/hupe1980/rlmharness/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_OutcomeNotifiesCollectorExactlyOnce(t *testing.T) {
	b := NewBuilder("run-1", 1000, core.DefaultRunConfig(), core.ContextMeta{})
	b.AddIteration(IterationTrace{Index: 1, ResponseText: "hi"})
	b.AddSubcall(core.SubcallRecord{ID: "sub-1", Kind: core.SubcallKindSingle})

	var calls int
	var got Record
	collector := CollectorFunc(func(r Record) {
		calls++
		got = r
	})

	rec := b.Outcome(collector, 2500, "completed", "", "final answer", false, "")

	assert.Equal(t, 1, calls)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "final answer", got.Answer)
	assert.Equal(t, int64(1500), got.ExecutionTimeMs)
	require.Len(t, got.Iterations, 1)
	require.Len(t, got.Subcalls, 1)
	assert.Equal(t, rec, got)
}

func TestBuilder_OutcomeWithNilCollector(t *testing.T) {
	b := NewBuilder("run-2", 0, core.DefaultRunConfig(), core.ContextMeta{})
	rec := b.Outcome(nil, 10, "failed", "boom", "", false, "")
	assert.Equal(t, "failed", rec.Status)
	assert.Equal(t, "boom", rec.ErrorMessage)
}

func TestDump_ProducesIndentedJSON(t *testing.T) {
	rec := Record{RunID: "run-3", Status: "completed"}
	out := Dump(rec)
	assert.Contains(t, string(out), "run-3")
	assert.Contains(t, string(out), "\n")
}
