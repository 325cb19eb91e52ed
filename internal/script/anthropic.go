// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package script

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

const defaultAnthropicMaxTokens = 8192

// AnthropicBackend calls the Messages API.
type AnthropicBackend struct {
	client      *anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewAnthropicBackend builds a backend from cfg.
func NewAnthropicBackend(cfg types.GenerationConfig, client *http.Client) *AnthropicBackend {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1")))
	}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}
	c := anthropic.NewClient(opts...)
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicBackend{
		client:      &c,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

// Complete sends the prompt and concatenates the text blocks of the reply.
func (b *AnthropicBackend) Complete(ctx context.Context, p Prompt) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: p.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
		Temperature: anthropic.Float(b.temperature),
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.AsText().Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("anthropic: response has no text")
	}
	return out.String(), nil
}
