package lm

import (
	"context"
	"time"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of an ordered conversation passed to Call.
type Message struct {
	Role Role
	Text string
}

// Input is either a flat prompt or an ordered sequence of role-tagged
// messages (§4.1). Exactly one of Prompt or Messages should be set;
// Prompt takes precedence when both are non-empty.
type Input struct {
	Prompt   string
	Messages []Message
}

// PromptInput builds a single-message Input from a flat string.
func PromptInput(prompt string) Input {
	return Input{Prompt: prompt}
}

// Usage reports token accounting for a completed call, when the provider
// exposes it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result is the normalized outcome of a Call.
type Result struct {
	Text         string
	Usage        *Usage
	FinishReason string
	LatencyMs    int64
}

// Client is the minimal contract every LM provider adapter satisfies: one
// text-in/text-out operation honoring a per-call deadline (§4.1). Call
// performs no retries; the caller classifies and handles failures.
type Client interface {
	Call(ctx context.Context, model string, input Input, deadline time.Duration) (Result, error)
}
