// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package script

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Backend abstracts the hosted model so tests can supply a mock. Complete
// sends one system+user prompt and returns the raw completion text.
type Backend interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// NewBackend builds the backend named by cfg.Provider.
func NewBackend(cfg types.GenerationConfig, client *http.Client) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai backend: no API key (set generation.api_key or OPENAI_API_KEY)")
		}
		return NewOpenAIBackend(cfg, client), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic backend: no API key (set generation.api_key or ANTHROPIC_API_KEY)")
		}
		return NewAnthropicBackend(cfg, client), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q (want openai or anthropic)", cfg.Provider)
	}
}
