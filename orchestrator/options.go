package orchestrator

import (
	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/event"
	"github.com/hupe1980/rlmharness/lm"
	"github.com/hupe1980/rlmharness/logging"
	"github.com/hupe1980/rlmharness/trace"
)

// Options configures a Harness. Construct with New(optFns...); fields left
// zero take the resolved defaults from core.DefaultRunConfig (§4.8, §6.4).
type Options struct {
	RootModel               string
	SubModel                string
	IterationLimit          int
	SubcallLimit            int
	RequestTimeoutMs        int
	MaxExecutionOutputChars int
	Redaction               *core.RedactionPolicy

	// WorkerCommand and WorkerArgs launch the operator-configured
	// interpreter child process (§4.3).
	WorkerCommand string
	WorkerArgs    []string

	// RootClient answers root LM calls; SubClient answers subcalls issued
	// through the Bridge. If SubClient is nil, RootClient is reused.
	RootClient lm.Client
	SubClient  lm.Client

	Sink    event.Sink
	Trace   trace.Collector
	Logger  logging.Logger
	Verbose bool
}

func defaultOptions() Options {
	cfg := core.DefaultRunConfig()
	return Options{
		IterationLimit:          cfg.IterationLimit,
		SubcallLimit:            cfg.SubcallLimit,
		RequestTimeoutMs:        cfg.RequestTimeoutMs,
		MaxExecutionOutputChars: cfg.MaxExecutionOutputChars,
	}
}

func (o Options) resolve() core.RunConfig {
	cfg := core.RunConfig{
		RootModel:               o.RootModel,
		SubModel:                o.SubModel,
		IterationLimit:          o.IterationLimit,
		SubcallLimit:            o.SubcallLimit,
		RequestTimeoutMs:        o.RequestTimeoutMs,
		MaxExecutionOutputChars: o.MaxExecutionOutputChars,
		Redaction:               core.DefaultRedactionPolicy(),
	}
	if o.Redaction != nil {
		cfg.Redaction = *o.Redaction
	}
	if cfg.SubModel == "" {
		cfg.SubModel = cfg.RootModel
	}
	return cfg
}
