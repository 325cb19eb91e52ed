// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package script

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// OpenAIBackend calls the Chat Completions API.
type OpenAIBackend struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIBackend builds a backend from cfg. A nil client uses the SDK's
// default transport.
func NewOpenAIBackend(cfg types.GenerationConfig, client *http.Client) *OpenAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}
	c := openai.NewClient(opts...)
	return &OpenAIBackend{
		client:      &c,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (b *OpenAIBackend) Name() string { return "openai" }

// Complete sends the prompt as a system and a user message.
func (b *OpenAIBackend) Complete(ctx context.Context, p Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
		Temperature: openai.Opt(b.temperature),
	}
	if b.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Opt(int64(b.maxTokens))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai: status %d: %s", apiErr.StatusCode, strings.TrimSpace(apiErr.Message))
		}
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
