// Command rlmcli is a minimal front-end for exercising a Harness end to
// end from the shell: give it a question, optionally a plain-text context
// and a YAML config (which can set the worker command; "python3" otherwise),
// and it prints the answer and run counters as JSON to stdout. With
// -verbose (or verbose in the config) each event is also printed to stderr.
// It exists as a demonstration harness, not a production
// operator tool: real deployments are expected to embed package
// rlmharness directly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/rlmharness"
	"github.com/hupe1980/rlmharness/event"
	"github.com/hupe1980/rlmharness/lm"
	"github.com/hupe1980/rlmharness/lm/anthropic"
	"github.com/hupe1980/rlmharness/lm/openai"
	"github.com/hupe1980/rlmharness/logging"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML run configuration")
		question    = flag.String("question", "", "question to answer (required)")
		contextText = flag.String("context", "", "plain-text context payload")
		verbose     = flag.Bool("verbose", false, "log every event to stderr")
	)
	flag.Parse()

	if *question == "" {
		log.Fatal("rlmcli: -question is required")
	}

	var fileCfg rlmharness.FileConfig
	if *configPath != "" {
		cfg, err := rlmharness.LoadOptionsFile(*configPath)
		if err != nil {
			log.Fatalf("rlmcli: %v", err)
		}
		fileCfg = cfg
	}

	client, err := buildClient(fileCfg.Provider)
	if err != nil {
		log.Fatalf("rlmcli: %v", err)
	}

	logger := logging.NewSlogLogger(logging.LogLevelInfo, "text", false)

	h := rlmharness.New(func(o *rlmharness.Options) {
		o.RootClient = client
		o.WorkerCommand = "python3"
		fileCfg.ApplyTo(o)
		o.Logger = logger
		if *verbose || o.Verbose {
			o.Sink = event.SinkFunc(func(e event.Event) error {
				fmt.Fprintf(os.Stderr, "[%3d] %-24s %s\n", e.Seq, e.Kind, e.Summary)
				return nil
			})
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	res, err := h.Completion(ctx, rlmharness.CompletionRequest{
		Context:  rlmharness.StringContext(*contextText),
		Question: *question,
	})
	if err != nil {
		log.Fatalf("rlmcli: completion failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"answer":          res.Answer,
		"iterations":      res.Iterations,
		"subcallCount":    res.SubcallCount,
		"executionTimeMs": res.ExecutionTimeMs,
	})
}

func buildClient(provider string) (lm.Client, error) {
	switch strings.ToLower(provider) {
	case "anthropic":
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is required for provider %q", provider)
		}
		return anthropic.New(func(o *anthropic.Options) { o.APIKey = os.Getenv("ANTHROPIC_API_KEY") }), nil
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for provider %q", provider)
		}
		return openai.New(), nil
	case "", "mock":
		return lm.NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic, openai, or mock)", provider)
	}
}
