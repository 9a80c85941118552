// Package rlmharness provides a high-level façade over the Recursive
// Language Model root loop, the interpreter Worker it drives, and the LM
// Bridge it exposes to code running inside that interpreter. Most
// applications interact with this package by:
//  1. Creating a Harness via New(), supplying at least a WorkerCommand and a
//     RootClient.
//  2. Calling Completion with a question and a context payload.
//  3. Optionally observing the run through a Sink (streamed events) or a
//     Trace collector (a single structured record once the run ends).
//
// The façade delegates the state machine to package orchestrator while
// keeping setup and usage ergonomics concise. All defaults are safe for
// local development; production deployments typically supply a real LM
// Client (see lm/anthropic and lm/openai) and a structured logger.
package rlmharness

import (
	"context"

	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/orchestrator"
)

// Options configures the Harness. It re-exports orchestrator.Options so
// callers never need to import that package directly for basic use.
type Options = orchestrator.Options

// CompletionRequest is the input to Harness.Completion.
type CompletionRequest = orchestrator.CompletionRequest

// CompletionResult is the output of a successful Harness.Completion.
type CompletionResult = orchestrator.CompletionResult

// Harness runs the RLM root loop end to end: Starting, Initializing,
// Iterating/CheckingDirective, Finalizing, Ending (or Failing, from any
// state).
type Harness struct {
	inner *orchestrator.Harness
}

// New constructs a Harness. WorkerCommand and RootClient are required; every
// other field has a resolved default.
func New(optFns ...func(o *Options)) *Harness {
	return &Harness{inner: orchestrator.New(optFns...)}
}

// Completion runs the root loop to a final answer or a fatal error. The
// Worker and Bridge it acquires are always released before Completion
// returns, on every exit path.
func (h *Harness) Completion(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	return h.inner.Completion(ctx, req)
}

// StringContext wraps a plain string as the run's context payload.
func StringContext(s string) core.Context { return core.StringContext(s) }

// SequenceContext wraps an ordered list of items as the run's context
// payload.
func SequenceContext(items []any) core.Context { return core.SequenceContext(items) }

// MappingContext wraps a name -> item map as the run's context payload.
func MappingContext(items map[string]any) core.Context { return core.MappingContext(items) }
