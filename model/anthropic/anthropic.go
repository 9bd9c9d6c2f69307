// Package anthropic provides a completion adapter for the Anthropic Claude
// API behind the generic model.Completion interface.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/model"
)

// Options configures the Anthropic completion adapter (model id, max tokens,
// temperature, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Completion wraps the Anthropic Messages API behind model.Completion.
type Completion struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic completion adapter using the official client.
func New(optFns ...func(o *Options)) *Completion {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Completion{client: &client, opts: opts}
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Completion {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Completion{client: client, opts: opts}
}

// Generate implements model.Completion. Raw mode sends the prompt verbatim
// as a single user message; formatted mode prepends a brevity instruction as
// a system block. Backend failures map to core.ErrCompletionUnavailable so
// the orchestration core can apply its degradation policy.
func (c *Completion) Generate(ctx context.Context, prompt string, raw bool) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	}

	if !raw {
		params.System = []anthropic.TextBlockParam{{Text: "Answer concisely in plain prose."}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %v", core.ErrCompletionUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	return sb.String(), nil
}

// Info returns metadata describing this Anthropic adapter.
func (c *Completion) Info() model.Info {
	return model.Info{Name: string(c.opts.Model), Provider: "anthropic"}
}
