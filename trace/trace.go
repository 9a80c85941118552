package trace

import (
	"sync"

	"github.com/hupe1980/rlmharness/core"
)

// ReplExecutionTrace mirrors one exec call nested under its iteration.
type ReplExecutionTrace struct {
	ReplExecutionID string
	Code            string
	Result          core.ReplExecutionResult
}

// IterationTrace mirrors one root LM call and its executed code blocks.
type IterationTrace struct {
	Index        int
	ResponseText string
	Executions   []ReplExecutionTrace
	LatencyMs    int64
}

// Record is the structured post-hoc trace of a single run (§4.6).
type Record struct {
	RunID           string
	StartedAt       int64
	EndedAt         int64
	Status          string // "completed" | "failed"
	ErrorMessage    string
	Config          core.RunConfig
	ContextMeta     core.ContextMeta
	Iterations      []IterationTrace
	Subcalls        []core.SubcallRecord
	FallbackUsed    bool
	FallbackRaw     string
	Answer          string
	ExecutionTimeMs int64
}

// Collector receives the finished Record of a run; it is notified exactly
// once at the end, whether the run succeeded or failed (§4.6). Builder does
// the accumulation while the run progresses.
type Collector interface {
	Finish(r Record)
}

// CollectorFunc adapts a plain function to the Collector interface.
type CollectorFunc func(r Record)

func (f CollectorFunc) Finish(r Record) { f(r) }

// Builder accumulates trace state during a run and produces a Record in
// Outcome. AddIteration is called only from the Orchestrator's single main
// task, but AddSubcall is called from concurrently invoked Bridge handler
// goroutines (§4.8, §5), so both appends are guarded by mu.
type Builder struct {
	runID   string
	started int64
	config  core.RunConfig
	ctxMeta core.ContextMeta

	mu         sync.Mutex
	iterations []IterationTrace
	subcalls   []core.SubcallRecord
}

// NewBuilder starts accumulating a trace for a run.
func NewBuilder(runID string, startedAt int64, config core.RunConfig, ctxMeta core.ContextMeta) *Builder {
	return &Builder{runID: runID, started: startedAt, config: config, ctxMeta: ctxMeta}
}

// ContextMeta returns the context metadata this Builder was constructed
// with.
func (b *Builder) ContextMeta() core.ContextMeta { return b.ctxMeta }

// RunID returns the run identifier this Builder was constructed with.
func (b *Builder) RunID() string { return b.runID }

// AddIteration appends a completed iteration's trace.
func (b *Builder) AddIteration(it IterationTrace) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.iterations = append(b.iterations, it)
}

// AddSubcall appends a completed subcall record. Safe to call concurrently
// from multiple in-flight Bridge handlers.
func (b *Builder) AddSubcall(s core.SubcallRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subcalls = append(b.subcalls, s)
}

// Outcome finalizes the accumulated state into a Record and, if collector
// is non-nil, delivers it exactly once.
func (b *Builder) Outcome(collector Collector, endedAt int64, status, errMsg, answer string, fallbackUsed bool, fallbackRaw string) Record {
	b.mu.Lock()
	iterations := append([]IterationTrace(nil), b.iterations...)
	subcalls := append([]core.SubcallRecord(nil), b.subcalls...)
	b.mu.Unlock()

	rec := Record{
		RunID:           b.runID,
		StartedAt:       b.started,
		EndedAt:         endedAt,
		Status:          status,
		ErrorMessage:    errMsg,
		Config:          b.config,
		ContextMeta:     b.ctxMeta,
		Iterations:      iterations,
		Subcalls:        subcalls,
		FallbackUsed:    fallbackUsed,
		FallbackRaw:     fallbackRaw,
		Answer:          answer,
		ExecutionTimeMs: endedAt - b.started,
	}
	if collector != nil {
		collector.Finish(rec)
	}
	return rec
}
