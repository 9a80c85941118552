package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/event"
	"github.com/hupe1980/rlmharness/lm"
	"github.com/hupe1980/rlmharness/logging"
	"github.com/hupe1980/rlmharness/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceClient returns one canned lm.Result per call, in order, so a test
// can script exactly what the root loop sees on each iteration without
// depending on MockClient's last-user-message matching.
type sequenceClient struct {
	mu        sync.Mutex
	responses []lm.Result
	n         int
	inputs    []lm.Input
}

func (s *sequenceClient) Call(ctx context.Context, model string, input lm.Input, deadline time.Duration) (lm.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, input)
	if s.n >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	r := s.responses[s.n]
	s.n++
	return r, nil
}

func writeWorkerScript(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake_interpreter.sh")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

type recordingSink struct {
	mu  sync.Mutex
	got []event.Event
}

func (r *recordingSink) Deliver(e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return nil
}

func (r *recordingSink) events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.got))
	copy(out, r.got)
	return out
}

const basicWorkerScript = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    *'"cmd":"init"'*) echo '{"ok":true}' ;;
    *'"cmd":"close"'*) echo '{"ok":true}'; exit 0 ;;
    *) echo '{"ok":true}' ;;
  esac
done
`

const execWorkerScript = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    *'"cmd":"init"'*) echo '{"ok":true}' ;;
    *'"cmd":"exec"'*) printf '%s\n' '{"ok":true,"stdout":"5\n","stderr":"","locals":{"result":"5"},"execution_time":0.002}' ;;
    *'"cmd":"final_var"'*) echo '{"ok":true,"value":"5"}' ;;
    *'"cmd":"close"'*) echo '{"ok":true}'; exit 0 ;;
    *) echo '{"ok":true}' ;;
  esac
done
`

// subcallWorkerScript issues an llm_query and an llm_query_batched call to
// the bridge URL it is handed at init, so exec exercises the whole Worker
// -> Bridge -> Subcaller round trip rather than just the Subcaller alone.
const subcallWorkerScript = `#!/bin/sh
BRIDGE=""
while IFS= read -r line; do
  case "$line" in
    *'"cmd":"init"'*)
      BRIDGE=$(printf '%s' "$line" | sed -n 's/.*"bridge_url":"\([^"]*\)".*/\1/p')
      echo '{"ok":true}'
      ;;
    *'"cmd":"exec"'*)
      curl -s -X POST "$BRIDGE/llm_query" -H 'Content-Type: application/json' -d '{"prompt":"one"}' >/dev/null
      curl -s -X POST "$BRIDGE/llm_query" -H 'Content-Type: application/json' -d '{"prompt":"two"}' >/dev/null
      printf '%s\n' '{"ok":true,"stdout":"ok\n","locals":{}}'
      ;;
    *'"cmd":"final_var"'*) echo '{"ok":true,"value":"done"}' ;;
    *'"cmd":"close"'*) echo '{"ok":true}'; exit 0 ;;
    *) echo '{"ok":true}' ;;
  esac
done
`

func TestHarness_TrivialFinal(t *testing.T) {
	script := writeWorkerScript(t, basicWorkerScript)
	root := &sequenceClient{responses: []lm.Result{{Text: "No code needed.\nFINAL(42)"}}}
	sink := &recordingSink{}

	h := New(func(o *Options) {
		o.WorkerCommand = script
		o.RootClient = root
		o.RootModel = "root-model"
		o.Sink = sink
	})

	res, err := h.Completion(context.Background(), CompletionRequest{
		Context:  core.StringContext("ctx"),
		Question: "what is the answer",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Answer)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 0, res.SubcallCount)

	evs := sink.events()
	require.NotEmpty(t, evs)
	for i := 1; i < len(evs); i++ {
		assert.Less(t, evs[i-1].Seq, evs[i].Seq)
	}

	ended := 0
	for _, e := range evs {
		if e.Kind == event.KindRunEndedCompleted || e.Kind == event.KindRunEndedFailed {
			ended++
		}
	}
	assert.Equal(t, 1, ended, "exactly one run-ended event must be emitted")
}

func TestHarness_ReplExecutionThenFinalVar(t *testing.T) {
	script := writeWorkerScript(t, execWorkerScript)
	root := &sequenceClient{responses: []lm.Result{
		{Text: "Let's compute it.\n```repl\nresult = 5\n```"},
		{Text: "FINAL_VAR(result)"},
	}}
	sink := &recordingSink{}

	h := New(func(o *Options) {
		o.WorkerCommand = script
		o.RootClient = root
		o.RootModel = "root-model"
		o.Sink = sink
	})

	res, err := h.Completion(context.Background(), CompletionRequest{
		Context:  core.StringContext("ctx"),
		Question: "compute result",
	})
	require.NoError(t, err)
	assert.Equal(t, "5", res.Answer)
	assert.Equal(t, 2, res.Iterations)
	require.NotNil(t, res.Trace)
	require.Len(t, res.Trace.Iterations, 2)
	require.Len(t, res.Trace.Iterations[0].Executions, 1)
	assert.Equal(t, "result = 5", res.Trace.Iterations[0].Executions[0].Code)

	var sawStart, sawEnd bool
	for _, e := range sink.events() {
		if e.Kind == event.KindReplStarted {
			sawStart = true
		}
		if e.Kind == event.KindReplCompleted {
			sawEnd = true
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawEnd)
}

func TestHarness_SubcallDuringExecUsesGuardedBudget(t *testing.T) {
	script := writeWorkerScript(t, subcallWorkerScript)
	root := &sequenceClient{responses: []lm.Result{
		{Text: "```repl\nask()\n```"},
		{Text: "FINAL_VAR(x)"},
	}}
	sub := lm.NewMockClient()
	sink := &recordingSink{}
	var trec trace.Record
	collector := trace.CollectorFunc(func(r trace.Record) { trec = r })

	h := New(func(o *Options) {
		o.WorkerCommand = script
		o.RootClient = root
		o.SubClient = sub
		o.RootModel = "root-model"
		o.SubModel = "sub-model"
		o.SubcallLimit = 2
		o.Sink = sink
		o.Trace = collector
	})

	res, err := h.Completion(context.Background(), CompletionRequest{
		Context:  core.StringContext("ctx"),
		Question: "ask twice",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SubcallCount)
	assert.Len(t, trec.Subcalls, 2)
	for _, sc := range trec.Subcalls {
		assert.False(t, sc.Rejected)
	}
}

func TestHarness_SubcallBudgetRejectsBeyondLimit(t *testing.T) {
	script := writeWorkerScript(t, subcallWorkerScript)
	root := &sequenceClient{responses: []lm.Result{
		{Text: "```repl\nask()\n```"},
		{Text: "FINAL_VAR(x)"},
	}}
	sub := lm.NewMockClient()
	var trec trace.Record
	collector := trace.CollectorFunc(func(r trace.Record) { trec = r })

	h := New(func(o *Options) {
		o.WorkerCommand = script
		o.RootClient = root
		o.SubClient = sub
		o.RootModel = "root-model"
		o.SubModel = "sub-model"
		o.SubcallLimit = 1
		o.Trace = collector
	})

	_, err := h.Completion(context.Background(), CompletionRequest{
		Context:  core.StringContext("ctx"),
		Question: "ask twice",
	})
	require.NoError(t, err)

	require.Len(t, trec.Subcalls, 2)
	rejected := 0
	for _, sc := range trec.Subcalls {
		if sc.Rejected {
			rejected++
		}
	}
	assert.Equal(t, 1, rejected, "the second sub-call must be rejected once the limit of 1 is reached")
}

func TestHarness_IterationLimitFallsBackToRawText(t *testing.T) {
	script := writeWorkerScript(t, basicWorkerScript)
	root := &sequenceClient{responses: []lm.Result{
		{Text: "still thinking, no directive yet"},
	}}
	var trec trace.Record
	collector := trace.CollectorFunc(func(r trace.Record) { trec = r })

	h := New(func(o *Options) {
		o.WorkerCommand = script
		o.RootClient = root
		o.RootModel = "root-model"
		o.IterationLimit = 2
		o.Trace = collector
	})

	res, err := h.Completion(context.Background(), CompletionRequest{
		Context:  core.StringContext("ctx"),
		Question: "never converges",
	})
	require.NoError(t, err)
	assert.Equal(t, "still thinking, no directive yet", res.Answer)
	assert.True(t, trec.FallbackUsed)
	assert.Equal(t, "still thinking, no directive yet", trec.FallbackRaw)
}

func TestGuard_BindingsOnlyActiveBetweenReplStartAndComplete(t *testing.T) {
	g := newGuard(event.NewEmitter(event.NopSink{}, nil, nil, 0), 10)
	assert.False(t, g.snapshot().Active(), "no exec is in flight before any beginReplExecution")

	id, _ := g.beginReplExecution(3)
	snap := g.snapshot()
	assert.True(t, snap.Active())
	assert.Equal(t, 3, snap.IterationIndex)
	assert.Equal(t, id, snap.ReplExecutionID)

	g.endReplExecution(id, nil)
	assert.False(t, g.snapshot().Active(), "the binding must clear once repl.execution.completed is emitted")
}

// recordingRunLogger implements logging.Logger plus llmCallLogger and
// runCompletionLogger, so it can prove Completion's root-call and
// run-completion sites actually reach the optional richer logger rather
// than only compiling against it.
type recordingRunLogger struct {
	logging.NoOpLogger
	mu          sync.Mutex
	llmCalls    []string
	completions int
}

func (l *recordingRunLogger) LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.llmCalls = append(l.llmCalls, model)
}

func (l *recordingRunLogger) LogRunCompletion(runID string, iterations int, dur time.Duration, success bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completions++
}

func TestHarness_LogsLLMCallsAndRunCompletionWhenLoggerSupportsIt(t *testing.T) {
	script := writeWorkerScript(t, basicWorkerScript)
	root := &sequenceClient{responses: []lm.Result{{Text: "No code needed.\nFINAL(42)"}}}
	logger := &recordingRunLogger{}

	h := New(func(o *Options) {
		o.WorkerCommand = script
		o.RootClient = root
		o.RootModel = "root-model"
		o.Logger = logger
	})

	res, err := h.Completion(context.Background(), CompletionRequest{
		Context:  core.StringContext("ctx"),
		Question: "what is the answer",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Answer)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Equal(t, []string{"root-model"}, logger.llmCalls)
	assert.Equal(t, 1, logger.completions)
}

func TestHarness_FinalTakesLiteralAnswerFinalVarReadsWorker(t *testing.T) {
	script := writeWorkerScript(t, execWorkerScript)

	rootFinal := &sequenceClient{responses: []lm.Result{{Text: "FINAL(literal answer)"}}}
	h1 := New(func(o *Options) {
		o.WorkerCommand = script
		o.RootClient = rootFinal
		o.RootModel = "root-model"
	})
	res1, err := h1.Completion(context.Background(), CompletionRequest{Context: core.StringContext("c"), Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "literal answer", res1.Answer)

	script2 := writeWorkerScript(t, execWorkerScript)
	rootVar := &sequenceClient{responses: []lm.Result{{Text: "FINAL_VAR(result)"}}}
	h2 := New(func(o *Options) {
		o.WorkerCommand = script2
		o.RootClient = rootVar
		o.RootModel = "root-model"
	})
	res2, err := h2.Completion(context.Background(), CompletionRequest{Context: core.StringContext("c"), Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "5", res2.Answer, "FINAL_VAR resolves through the worker rather than echoing the name")
}
