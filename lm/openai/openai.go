// Package openai adapts the OpenAI Chat Completions API to the lm.Client
// contract used by the harness for both root and sub model calls.
package openai

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/lm"
	"github.com/openai/openai-go"
)

// Options configures the OpenAI client adapter.
type Options struct {
	Temperature         float64
	MaxCompletionTokens int64
}

// Client wraps the official OpenAI SDK client behind lm.Client.
type Client struct {
	client *openai.Client
	opts   Options
}

// New constructs a Client using the official OpenAI SDK, configured from
// environment variables the SDK itself understands (OPENAI_API_KEY, etc).
func New(optFns ...func(o *Options)) *Client {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient wraps a pre-configured OpenAI SDK client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Client {
	opts := Options{Temperature: 0.7, MaxCompletionTokens: 4096}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

// Call implements lm.Client. model names the OpenAI model id directly.
func (c *Client) Call(ctx context.Context, model string, input lm.Input, deadline time.Duration) (lm.Result, error) {
	start := time.Now()

	callCtx := ctx
	if deadline > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model:               model,
		Messages:            buildMessages(input),
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	}

	resp, err := c.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		return lm.Result{}, classifyError(err, callCtx)
	}
	if len(resp.Choices) == 0 {
		return lm.Result{}, &core.LMCallError{Kind: core.LMCallErrorRemote, Detail: "openai returned no choices"}
	}

	choice := resp.Choices[0]

	var usage *lm.Usage
	if resp.Usage.TotalTokens > 0 {
		usage = &lm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}

	return lm.Result{
		Text:         choice.Message.Content,
		Usage:        usage,
		FinishReason: choice.FinishReason,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func buildMessages(input lm.Input) []openai.ChatCompletionMessageParamUnion {
	if input.Prompt != "" {
		return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(input.Prompt)}
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(input.Messages))
	for _, msg := range input.Messages {
		switch msg.Role {
		case lm.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Text))
		case lm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Text))
		default:
			messages = append(messages, openai.UserMessage(msg.Text))
		}
	}
	return messages
}

func classifyError(err error, ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &core.LMCallError{Kind: core.LMCallErrorTimeout, Detail: "openai call deadline exceeded", Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &core.LMCallError{Kind: core.LMCallErrorRemote, Detail: apiErr.Error(), Err: err}
	}

	return &core.LMCallError{Kind: core.LMCallErrorTransport, Detail: "openai transport error", Err: err}
}
