package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/rlmharness/bridge"
	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/event"
	"github.com/hupe1980/rlmharness/lm"
	"github.com/hupe1980/rlmharness/logging"
	"github.com/hupe1980/rlmharness/replparse"
	"github.com/hupe1980/rlmharness/trace"
	"github.com/hupe1980/rlmharness/worker"
)

// runCompletionLogger is the subset of *logging.HarnessLogger this package
// can exercise: a plain logging.Logger has no notion of a finished run, so
// this is satisfied only when the caller supplied the richer logger.
type runCompletionLogger interface {
	LogRunCompletion(runID string, iterations int, dur time.Duration, success bool, err error)
}

// CompletionRequest is the input to Harness.Completion (§4.8).
type CompletionRequest struct {
	Context         core.Context
	ContextFilePath string
	Question        string
	MaxIterations   int // overrides Options.IterationLimit when > 0
}

// CompletionResult is the output of a successful Harness.Completion.
type CompletionResult struct {
	Answer          string
	Iterations      int
	SubcallCount    int
	ExecutionTimeMs int64
	Trace           *trace.Record
}

// Harness runs the RLM root loop end to end (§4.8). It is safe to reuse
// across sequential calls to Completion; each call is independent and
// owns its own Worker, Bridge, event emitter and counters.
type Harness struct {
	opts Options
	cfg  core.RunConfig
}

// New constructs a Harness. WorkerCommand and RootClient are required;
// every other field has a resolved default (§6.4).
func New(optFns ...func(o *Options)) *Harness {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Harness{opts: opts, cfg: opts.resolve()}
}

// Completion runs the root loop to a final answer or a fatal error
// (§4.8). Worker and Bridge are always released before Completion
// returns, on every exit path.
func (h *Harness) Completion(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	cfg := h.cfg
	if req.MaxIterations > 0 {
		cfg.IterationLimit = req.MaxIterations
	}

	logger := h.opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	sink := h.opts.Sink
	if sink == nil {
		sink = event.NopSink{}
	}

	runID := uuid.NewString()
	startedAt := nowMillis()

	emitter := event.NewEmitter(sink, logger, nil, 0)
	defer emitter.Close()

	g := newGuard(emitter, cfg.SubcallLimit)

	ctxMeta, err := core.BuildContextMeta(req.Context, cfg.Redaction.MaxContextPreviewChars)
	if err != nil {
		return h.fail(g, trace.NewBuilder(runID, startedAt, cfg, core.ContextMeta{}), startedAt,
			fmt.Errorf("orchestrator: build context meta: %w", err))
	}

	tracer := trace.NewBuilder(runID, startedAt, cfg, ctxMeta)

	// Starting: acquire the Worker, then start the Bridge, then emit
	// run.started (§4.8).
	workerClient, err := worker.Start(ctx, worker.Options{
		Command: h.opts.WorkerCommand,
		Args:    h.opts.WorkerArgs,
		Logger:  logger,
	})
	if err != nil {
		return h.fail(g, tracer, startedAt, fmt.Errorf("orchestrator: start worker: %w", err))
	}
	defer workerClient.Close()

	rootClient := h.opts.RootClient
	subClient := h.opts.SubClient
	if subClient == nil {
		subClient = rootClient
	}

	sc := &subcaller{
		g:         g,
		client:    subClient,
		model:     cfg.SubModel,
		timeout:   time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
		tracer:    tracer,
		redaction: cfg.Redaction,
		logger:    logger,
	}

	bridgeServer, err := bridge.Start(sc, logger)
	if err != nil {
		return h.fail(g, tracer, startedAt, fmt.Errorf("orchestrator: start bridge: %w", err))
	}
	defer func() { _ = bridgeServer.Shutdown(context.Background()) }()

	g.emit(event.KindRunStarted, "run started", event.Payload{"runId": runID})

	// Initializing.
	if err := workerClient.Init(contextValue(req.Context), req.ContextFilePath, bridgeServer.URL(), req.Question); err != nil {
		return h.fail(g, tracer, startedAt, fmt.Errorf("orchestrator: init worker: %w", err))
	}
	g.emit(event.KindRunInitialized, "run initialized", nil)

	timeout := time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	outcome, err := runIterations(ctx, cfg, timeout, g, tracer, workerClient, rootClient, logger)
	if err != nil {
		return h.fail(g, tracer, startedAt, err)
	}

	// Finalizing.
	answer, err := resolveAnswer(workerClient, outcome.directive)
	if err != nil {
		return h.fail(g, tracer, startedAt, err)
	}
	g.emit(event.KindRunFinalized, "run finalized", event.Payload{"kind": string(outcome.directive.Kind)})

	endedAt := nowMillis()
	g.emit(event.KindRunEndedCompleted, "run ended", nil)
	rec := tracer.Outcome(h.opts.Trace, endedAt, "completed", "", answer, outcome.fallbackUsed, outcome.fallbackRaw)

	if cl, ok := logger.(runCompletionLogger); ok {
		cl.LogRunCompletion(runID, outcome.iterations, time.Duration(endedAt-startedAt)*time.Millisecond, true, nil)
	}

	return CompletionResult{
		Answer:          answer,
		Iterations:      outcome.iterations,
		SubcallCount:    g.count(),
		ExecutionTimeMs: endedAt - startedAt,
		Trace:           &rec,
	}, nil
}

// fail implements the Failing -> Ending transition: emit run.failed, emit
// run.ended_failed, and deliver the trace with status failed exactly once.
// Resources are released afterwards by the caller's deferred cleanups as
// Completion returns.
func (h *Harness) fail(g *guard, tracer *trace.Builder, startedAt int64, cause error) (CompletionResult, error) {
	g.emit(event.KindRunFailed, "run failed", event.Payload{"error": cause.Error()})
	endedAt := nowMillis()
	g.emit(event.KindRunEndedFailed, "run ended", event.Payload{"error": cause.Error()})
	if tracer != nil {
		tracer.Outcome(h.opts.Trace, endedAt, "failed", cause.Error(), "", false, "")
	}
	if cl, ok := h.opts.Logger.(runCompletionLogger); ok {
		cl.LogRunCompletion(tracer.RunID(), 0, time.Duration(endedAt-startedAt)*time.Millisecond, false, cause)
	}
	return CompletionResult{}, cause
}

func resolveAnswer(workerClient *worker.Client, directive core.Directive) (string, error) {
	switch directive.Kind {
	case core.DirectiveFinalVar:
		return workerClient.FinalVar(directive.Value)
	default:
		return directive.Value, nil
	}
}

// iterationOutcome is the result of running Iterating/CheckingDirective to
// completion, either via a parsed directive or the fallback path.
type iterationOutcome struct {
	directive    core.Directive
	iterations   int
	fallbackUsed bool
	fallbackRaw  string
}

func runIterations(
	ctx context.Context,
	cfg core.RunConfig,
	timeout time.Duration,
	g *guard,
	tracer *trace.Builder,
	workerClient *worker.Client,
	rootClient lm.Client,
	logger logging.Logger,
) (iterationOutcome, error) {
	hist := newHistory(tracerContextMeta(tracer))

	var directive core.Directive
	iterationsRun := 0

	for i := 1; i <= cfg.IterationLimit; i++ {
		hist.appendUser(turnInstruction(i - 1))

		d, ran, err := runOneIteration(ctx, cfg, timeout, g, tracer, workerClient, rootClient, hist, i, logger)
		if err != nil {
			return iterationOutcome{}, err
		}
		iterationsRun = i
		if ran {
			directive = d
			break
		}
	}

	if directive.Kind != "" {
		return iterationOutcome{directive: directive, iterations: iterationsRun}, nil
	}

	// Fallback path: the iteration limit was reached with no directive.
	hist.appendUser(finalDirectiveDemand())
	start := time.Now()
	res, err := rootClient.Call(ctx, cfg.RootModel, hist.input(), timeout)
	if cl, ok := logger.(llmCallLogger); ok {
		tokens := 0
		if res.Usage != nil {
			tokens = res.Usage.TotalTokens
		}
		cl.LogLLMCall(cfg.RootModel, tokens, time.Since(start), err == nil, err)
	}
	if err != nil {
		return iterationOutcome{}, &core.LMCallError{Kind: core.LMCallErrorRemote, Detail: "fallback root call failed", Err: err}
	}

	if d, ok := replparse.ParseDirective(res.Text); ok {
		return iterationOutcome{directive: d, iterations: iterationsRun}, nil
	}

	return iterationOutcome{
		directive:    core.Directive{Kind: core.DirectiveFallbackText, Value: res.Text},
		iterations:   iterationsRun,
		fallbackUsed: true,
		fallbackRaw:  res.Text,
	}, nil
}

// runOneIteration executes Iterating(i) and CheckingDirective(i): one root
// call, its parsed REPL blocks, and directive detection.
func runOneIteration(
	ctx context.Context,
	cfg core.RunConfig,
	timeout time.Duration,
	g *guard,
	tracer *trace.Builder,
	workerClient *worker.Client,
	rootClient lm.Client,
	hist *history,
	i int,
	logger logging.Logger,
) (core.Directive, bool, error) {
	iterStart := time.Now()
	g.emit(event.KindIterationStarted, "iteration started", event.Payload{"iteration": i})

	res, err := rootClient.Call(ctx, cfg.RootModel, hist.input(), timeout)
	iterDur := time.Since(iterStart)
	if cl, ok := logger.(llmCallLogger); ok {
		tokens := 0
		if res.Usage != nil {
			tokens = res.Usage.TotalTokens
		}
		cl.LogLLMCall(cfg.RootModel, tokens, iterDur, err == nil, err)
	}
	if err != nil {
		return core.Directive{}, false, err
	}
	latency := iterDur.Milliseconds()

	blocks := replparse.ExtractCodeBlocks(res.Text)
	g.emit(event.KindIterationCompleted, "iteration completed", event.Payload{
		"iteration":     i,
		"codeBlocks":    len(blocks),
		"responseChars": len(res.Text),
		"latencyMs":     latency,
	})

	hist.appendAssistant(res.Text)

	executions := make([]trace.ReplExecutionTrace, 0, len(blocks))
	for _, code := range blocks {
		id, _ := g.beginReplExecution(i)

		execRes, err := workerClient.Exec(code)
		if err != nil {
			g.endReplExecution(id, event.Payload{"error": err.Error()})
			return core.Directive{}, false, err
		}

		result := core.ReplExecutionResult{
			Stdout:        execRes.Stdout,
			Stderr:        execRes.Stderr,
			VariableNames: execRes.VariableNames,
			ElapsedMs:     execRes.ElapsedMs,
		}
		g.endReplExecution(id, event.Payload{
			"iteration":   i,
			"stdoutChars": len(execRes.Stdout),
			"stderrChars": len(execRes.Stderr),
		})

		executions = append(executions, trace.ReplExecutionTrace{ReplExecutionID: id, Code: code, Result: result})
		hist.appendUser(executionMessage(code, result, cfg.MaxExecutionOutputChars))
	}

	tracer.AddIteration(trace.IterationTrace{
		Index:        i,
		ResponseText: res.Text,
		Executions:   executions,
		LatencyMs:    latency,
	})

	if d, ok := replparse.ParseDirective(res.Text); ok {
		return d, true, nil
	}
	return core.Directive{}, false, nil
}

// contextValue converts a core.Context into the plain value the Worker's
// init request carries as {context}.
func contextValue(ctx core.Context) any {
	switch v := ctx.(type) {
	case core.StringContext:
		return string(v)
	case core.SequenceContext:
		return []any(v)
	case core.MappingContext:
		return map[string]any(v)
	default:
		return nil
	}
}

// tracerContextMeta recovers the ContextMeta a Builder was constructed
// with, so the message history can reuse it without a second parameter
// threaded through every call.
func tracerContextMeta(tracer *trace.Builder) core.ContextMeta {
	return tracer.ContextMeta()
}
