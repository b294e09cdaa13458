// Package genai asks an OpenAI chat model for food product names that the
// nutrition database is more likely to recognise.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoicesReturned is returned when the model produced no completion.
var ErrNoChoicesReturned = errors.New("no choices returned")

const suggestSystemPrompt = `You normalise food names for the OpenFoodFacts search engine.
Reply with a single common English product name (one to three words) for the food the user typed.
The input may be misspelled or in another language. Reply with the name only, no punctuation.`

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

type completions struct {
	svc *openai.ChatCompletionService
}

func (c completions) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := c.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a GenAI client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: string(openai.ChatModelGPT4oMini)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI.NewClient: client created", "model", cfg.Model)
	return &Client{chat: completions{svc: &cli.Chat.Completions}, model: cfg.Model}, nil
}

// GeneratePrompt returns the model's reply to a system and user prompt pair.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature:         openai.Float(0),
		MaxCompletionTokens: openai.Int(16),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// SuggestFoodName proposes a searchable product name for name.
func (c *Client) SuggestFoodName(ctx context.Context, name string) (string, error) {
	out, err := c.GeneratePrompt(ctx, suggestSystemPrompt, name)
	if err != nil {
		slog.Warn("GenAI.SuggestFoodName: completion failed", "name", name, "error", err)
		return "", err
	}
	s := strings.Trim(strings.TrimSpace(out), `."'`)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if s == "" {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("GenAI.SuggestFoodName: suggestion", "name", name, "suggestion", s)
	return s, nil
}
