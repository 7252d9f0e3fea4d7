// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/pkg/types"
)

// New builds the configured backend, fills unset sampling parameters from
// cfg, and wraps the result in Retrying. Retrying is the only retry layer.
func New(cfg types.AIConfig, logger *zap.Logger) (*Retrying, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var backend Generator
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		o, err := NewOpenAI(OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			UserAgent:  cfg.UserAgent,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		backend = o
	case types.ProviderClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic api key missing; add .secrets/anthropic-api-key or set ai.api_key")
		}
		backend = &Claude{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Client:    httpClient,
			BaseURL:   cfg.BaseURL,
			UserAgent: cfg.UserAgent,
		}
	default:
		return nil, &types.ValidationError{
			Field:      "ai.provider",
			Constraint: fmt.Sprintf("unknown provider %q: use openai or claude", cfg.Provider),
		}
	}
	return NewRetrying(WithDefaults(backend, cfg.Temperature, cfg.MaxTokens), cfg.MaxRetries, cfg.RequestsPerSecond, logger), nil
}

// Defaults fills a request's zero Temperature and MaxTokens before passing
// it on. Stages that set their own values are left alone.
type Defaults struct {
	inner       Generator
	temperature float64
	maxTokens   int
}

// WithDefaults wraps inner. Zero arguments leave the field to the backend.
func WithDefaults(inner Generator, temperature float64, maxTokens int) *Defaults {
	return &Defaults{inner: inner, temperature: temperature, maxTokens: maxTokens}
}

// Generate implements Generator.
func (d *Defaults) Generate(ctx context.Context, req Request) (Response, error) {
	if req.Temperature == 0 {
		req.Temperature = d.temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = d.maxTokens
	}
	return d.inner.Generate(ctx, req)
}

// Name reports the wrapped backend's name.
func (d *Defaults) Name() string {
	if n, ok := d.inner.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "generator"
}
