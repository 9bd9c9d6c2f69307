// Package openai provides a completion adapter for the OpenAI Chat
// Completions API behind the generic model.Completion interface.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI completion adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Completion wraps the OpenAI Chat Completions API behind model.Completion.
type Completion struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI completion adapter using the official client.
func New(optFns ...func(o *Options)) *Completion {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)
	return &Completion{client: &client, opts: opts}
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Completion {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Completion{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Generate implements model.Completion. Raw mode sends the prompt verbatim
// as a single user message; formatted mode adds a brevity system message.
// Backend failures map to core.ErrCompletionUnavailable.
func (c *Completion) Generate(ctx context.Context, prompt string, raw bool) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if !raw {
		messages = append(messages, openai.SystemMessage("Answer concisely in plain prose."))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               c.opts.Model,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", core.ErrCompletionUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai: no choices returned", core.ErrCompletionUnavailable)
	}

	return resp.Choices[0].Message.Content, nil
}

// Info returns metadata describing this OpenAI adapter.
func (c *Completion) Info() model.Info {
	return model.Info{Name: c.opts.Model, Provider: "openai"}
}
