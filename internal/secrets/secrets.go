// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file holds one secret: the file name is the key and the trimmed
// contents are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/pkg/types"
)

// Key files understood by Apply.
const (
	OpenAIAPIKey      = "openai-api-key"
	AnthropicAPIKey   = "anthropic-api-key"
	GraphClientSecret = "graph-client-secret"
	RedisURL          = "redis-url"
)

// Load reads every regular, non-hidden file in dir. A missing directory is
// not an error. Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (map[string]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills credentials in cfg that are still empty after config and
// environment loading. The API key follows the configured provider.
func Apply(cfg *types.Config, secrets map[string]string) {
	key := OpenAIAPIKey
	if cfg.AI.Provider == types.ProviderClaude {
		key = AnthropicAPIKey
	}
	fill(&cfg.AI.APIKey, secrets[key])
	fill(&cfg.Publish.ClientSecret, secrets[GraphClientSecret])
	fill(&cfg.Search.RedisURL, secrets[RedisURL])
}

// Names returns the loaded key names, sorted, for logging without values.
func Names(secrets map[string]string) []string {
	names := make([]string, 0, len(secrets))
	for k := range secrets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
