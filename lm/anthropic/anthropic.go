// Package anthropic adapts the Anthropic Messages API to the lm.Client
// contract used by the harness for both root and sub model calls.
package anthropic

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/lm"
)

// Options configures the Anthropic client adapter.
type Options struct {
	APIKey      string
	MaxTokens   int64
	Temperature float64
}

// Client wraps the official Anthropic SDK client behind lm.Client.
type Client struct {
	client *anthropic.Client
	opts   Options
}

// New constructs a Client using the official Anthropic SDK.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{MaxTokens: 4096, Temperature: 0.7}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Client{client: &client, opts: opts}
}

// NewFromClient wraps a pre-configured Anthropic SDK client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Client {
	opts := Options{MaxTokens: 4096, Temperature: 0.7}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

// Call implements lm.Client. model names the Anthropic model id directly
// (e.g. "claude-sonnet-4-20250514"); input is either a flat prompt or an
// ordered role-tagged message sequence.
func (c *Client) Call(ctx context.Context, model string, input lm.Input, deadline time.Duration) (lm.Result, error) {
	start := time.Now()

	callCtx := ctx
	if deadline > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	messages, system := buildMessages(input)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		Messages:    messages,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(callCtx, params)
	if err != nil {
		return lm.Result{}, classifyError(err, callCtx)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	finish := "stop"
	if resp.StopReason != "" {
		finish = string(resp.StopReason)
	}

	var usage *lm.Usage
	usage = &lm.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	return lm.Result{
		Text:         text,
		Usage:        usage,
		FinishReason: finish,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func buildMessages(input lm.Input) ([]anthropic.MessageParam, string) {
	if input.Prompt != "" {
		return []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(input.Prompt))}, ""
	}

	var (
		messages []anthropic.MessageParam
		system   string
	)
	for _, msg := range input.Messages {
		switch msg.Role {
		case lm.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Text
		case lm.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		}
	}
	return messages, system
}

func classifyError(err error, ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &core.LMCallError{Kind: core.LMCallErrorTimeout, Detail: "anthropic call deadline exceeded", Err: err}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &core.LMCallError{Kind: core.LMCallErrorRemote, Detail: apiErr.Error(), Err: err}
	}

	return &core.LMCallError{Kind: core.LMCallErrorTransport, Detail: "anthropic transport error", Err: err}
}
