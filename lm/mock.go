package lm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/rlmharness/core"
)

// MockClient is a deterministic in-memory Client for tests and examples. It
// returns canned responses keyed by prompt text, falling back to an echo
// response, and can simulate latency or a forced failure.
type MockClient struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	delay     time.Duration
	calls     []Input
}

// NewMockClient constructs an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{responses: make(map[string]string)}
}

// AddResponse registers a canned response for an exact prompt match.
func (m *MockClient) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWith makes every subsequent Call return err.
func (m *MockClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes Call block for d (or until ctx is done, whichever first)
// before returning, to exercise deadline handling in tests.
func (m *MockClient) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns every Input passed to Call so far, in order.
func (m *MockClient) Calls() []Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Input, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockClient) Call(ctx context.Context, model string, input Input, deadline time.Duration) (Result, error) {
	start := time.Now()

	m.mu.Lock()
	m.calls = append(m.calls, input)
	delay := m.delay
	failErr := m.err
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{}, &core.LMCallError{Kind: core.LMCallErrorTimeout, Detail: "mock call cancelled", Err: ctx.Err()}
		case <-timer.C:
		}
	}

	if failErr != nil {
		return Result{}, failErr
	}

	prompt := input.Prompt
	if prompt == "" {
		for _, msg := range input.Messages {
			if msg.Role == RoleUser {
				prompt = msg.Text
			}
		}
	}

	m.mu.Lock()
	text, ok := m.responses[prompt]
	m.mu.Unlock()
	if !ok {
		text = fmt.Sprintf("mock response to: %s", prompt)
	}

	return Result{
		Text:         text,
		FinishReason: "stop",
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}
