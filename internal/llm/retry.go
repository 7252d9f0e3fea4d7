// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/contentforge/pkg/types"
)

// backoffBase is the base duration for exponential backoff between
// generation retries. Package-level var for test substitution.
var backoffBase = 2 * time.Second

// maxBackoff caps a single wait.
const maxBackoff = 30 * time.Second

// Retrying decorates a Generator with bounded exponential backoff on
// transient failures and an optional request rate limit. Authentication and
// permanent failures return immediately.
type Retrying struct {
	inner      Generator
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewRetrying wraps inner. requestsPerSecond <= 0 disables rate limiting.
func NewRetrying(inner Generator, maxRetries int, requestsPerSecond float64, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retrying{inner: inner, maxRetries: maxRetries, logger: logger}
	if requestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return r
}

// Generate implements Generator.
func (r *Retrying) Generate(ctx context.Context, req Request) (Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			r.logger.Warn("retrying generation",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.maxRetries),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return Response{}, err
			}
		}

		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		if !types.IsTransient(err) {
			return Response{}, err
		}
		lastErr = err
	}
	return Response{}, fmt.Errorf("generation failed after %d retries: %w", r.maxRetries, lastErr)
}
