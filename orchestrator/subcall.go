package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/event"
	"github.com/hupe1980/rlmharness/lm"
	"github.com/hupe1980/rlmharness/logging"
	"github.com/hupe1980/rlmharness/redact"
	"github.com/hupe1980/rlmharness/trace"
)

// llmCallLogger is the subset of *logging.HarnessLogger this package can
// exercise: a plain logging.Logger has no notion of model/token/latency,
// so this is satisfied only when the caller supplied the richer logger.
type llmCallLogger interface {
	LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error)
}

// subcaller implements bridge.Subcaller, routing interpreter-originated
// llm_query / llm_query_batched calls through the shared guard for
// accounting and through the sub LM client for execution (§4.8).
type subcaller struct {
	g         *guard
	client    lm.Client
	model     string
	timeout   time.Duration
	tracer    *trace.Builder
	redaction core.RedactionPolicy
	logger    logging.Logger
}

// Query implements bridge.Subcaller for a single prompt.
func (s *subcaller) Query(ctx context.Context, prompt, model string) string {
	if model == "" {
		model = s.model
	}
	return s.runOne(ctx, prompt, model, core.SubcallKindSingle, 0)
}

// QueryBatched implements bridge.Subcaller. Steps 1-3 of §4.8 are applied
// to each prompt in order, sequentially, so responses preserve prompt
// order (§8 invariant 6) even though this handler may itself be invoked
// concurrently with others by the Bridge.
func (s *subcaller) QueryBatched(ctx context.Context, prompts []string, model string) []string {
	if model == "" {
		model = s.model
	}

	s.g.emit(event.KindSubcallBatchStart, "sub-call batch started", event.Payload{
		"size":  len(prompts),
		"model": model,
	})

	responses := make([]string, len(prompts))
	for i, prompt := range prompts {
		responses[i] = s.runOne(ctx, prompt, model, core.SubcallKindBatched, i)
	}

	s.g.emit(event.KindSubcallBatchDone, "sub-call batch completed", event.Payload{
		"size": len(prompts),
	})

	return responses
}

func (s *subcaller) runOne(ctx context.Context, prompt, model string, kind core.SubcallKind, batchIndex int) string {
	id, bindings, rejected := s.g.reserveSubcall(model)
	if rejected {
		if s.tracer != nil {
			s.tracer.AddSubcall(core.SubcallRecord{
				ID:              id,
				IterationIndex:  bindings.IterationIndex,
				ReplExecutionID: bindings.ReplExecutionID,
				Kind:            kind,
				BatchIndex:      batchIndex,
				Model:           model,
				Prompt:          prompt,
				Rejected:        true,
			})
		}
		return fmt.Sprintf("Error: sub-call limit reached (%d)", s.g.subcallLimit)
	}

	if s.logger != nil {
		s.logger.Debug("subcall prompt", "subcallId", id, "prompt", redact.Prompt(prompt, s.redaction).Text)
	}

	start := time.Now()
	res, err := s.client.Call(ctx, model, lm.PromptInput(prompt), s.timeout)
	dur := time.Since(start)
	latency := dur.Milliseconds()

	if cl, ok := s.logger.(llmCallLogger); ok {
		tokens := 0
		if res.Usage != nil {
			tokens = res.Usage.TotalTokens
		}
		cl.LogLLMCall(model, tokens, dur, err == nil, err)
	}

	rec := core.SubcallRecord{
		ID:              id,
		IterationIndex:  bindings.IterationIndex,
		ReplExecutionID: bindings.ReplExecutionID,
		Kind:            kind,
		BatchIndex:      batchIndex,
		Model:           model,
		Prompt:          prompt,
		StartedAt:       start,
		LatencyMs:       latency,
	}

	if err != nil {
		detail := err.Error()
		rec.Err = detail
		s.g.completeSubcall(id, bindings, model, false, detail)
		if s.tracer != nil {
			s.tracer.AddSubcall(rec)
		}
		return fmt.Sprintf("Error: LM query failed - %s", detail)
	}

	rec.Response = res.Text
	s.g.completeSubcall(id, bindings, model, true, res.Text)
	if s.tracer != nil {
		s.tracer.AddSubcall(rec)
	}
	return res.Text
}
