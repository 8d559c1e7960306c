// Package llm wraps the remote text-generation endpoint. The endpoint is a
// black box that accepts a prompt and returns text or fails; callers decide
// what to do with either outcome.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

type Client struct {
	api           *openai.Client
	primaryModel  string
	fallbackModel string
	maxTokens     int
	temperature   float32
	logger        *slog.Logger
}

type Options struct {
	APIKey        string
	BaseURL       string // override for OpenAI-compatible endpoints and tests
	PrimaryModel  string
	FallbackModel string
	MaxTokens     int
	Temperature   float32
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &Client{
		api:           openai.NewClientWithConfig(cfg),
		primaryModel:  opts.PrimaryModel,
		fallbackModel: opts.FallbackModel,
		maxTokens:     opts.MaxTokens,
		temperature:   opts.Temperature,
		logger:        logger,
	}
}

// Models returns the models to attempt in order: primary first, then the
// fallback when one is configured.
func (c *Client) Models() []string {
	if c.fallbackModel == "" || c.fallbackModel == c.primaryModel {
		return []string{c.primaryModel}
	}
	return []string{c.primaryModel, c.fallbackModel}
}

// Complete sends a system+user prompt to the given model requesting a JSON
// object response at the configured (low) temperature and returns the raw
// response text.
func (c *Client) Complete(ctx context.Context, model, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion (%s): empty choices", model)
	}
	return resp.Choices[0].Message.Content, nil
}
