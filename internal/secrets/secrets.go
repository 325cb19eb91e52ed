// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: openai-api-key, anthropic-api-key, semantic-scholar-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// Key file names.
const (
	OpenAIKey          = "openai-api-key"
	AnthropicKey       = "anthropic-api-key"
	SemanticScholarKey = "semantic-scholar-api-key"
)

// envFallback names the conventional environment variable of each key.
var envFallback = map[string]string{
	OpenAIKey:          "OPENAI_API_KEY",
	AnthropicKey:       "ANTHROPIC_API_KEY",
	SemanticScholarKey: "SEMANTIC_SCHOLAR_API_KEY",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	log := logging.New("secrets")
	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.WithError(err).WithField("secret", name).Warn("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills API keys that cfg leaves empty, first from secrets and then
// from the conventional environment variables looked up with getenv. Keys
// set by config files or flags win.
func Apply(cfg *types.Config, secrets map[string]string, getenv func(string) string) {
	get := func(key string) string {
		if v := secrets[key]; v != "" {
			return v
		}
		if getenv != nil {
			return strings.TrimSpace(getenv(envFallback[key]))
		}
		return ""
	}

	if cfg.Generation.APIKey == "" {
		switch cfg.Generation.Provider {
		case "anthropic":
			cfg.Generation.APIKey = get(AnthropicKey)
		default:
			cfg.Generation.APIKey = get(OpenAIKey)
		}
	}
	if cfg.Synthesis.APIKey == "" {
		cfg.Synthesis.APIKey = get(OpenAIKey)
	}
	if cfg.Search.SemanticScholarAPIKey == "" {
		cfg.Search.SemanticScholarAPIKey = get(SemanticScholarKey)
	}
}
