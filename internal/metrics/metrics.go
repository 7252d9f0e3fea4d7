// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus instruments for the generation
// workflow. A Recorder satisfies the observer hooks of the search cache,
// the section pipeline, and the workflow service.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/contentforge/internal/llm"
	"github.com/pdiddy/contentforge/internal/pipeline"
	"github.com/pdiddy/contentforge/pkg/types"
)

const namespace = "contentforge"

// Recorder holds the registered instruments.
type Recorder struct {
	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RequestTokens   prometheus.Histogram

	Sections        *prometheus.CounterVec
	SectionDuration prometheus.Histogram

	SearchCache *prometheus.CounterVec

	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	GenerationTokens   prometheus.Counter
}

// NewRecorder registers every instrument with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Content generation requests by final report status",
		}, []string{"status"}),
		RequestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Wall-clock time of a content generation request",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		RequestTokens: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_tokens",
			Help:      "Tokens used per content generation request",
			Buckets:   []float64{500, 1000, 2500, 5000, 10000, 25000, 50000},
		}),
		Sections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sections_total",
			Help:      "Sections processed by terminal state",
		}, []string{"state"}),
		SectionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "section_duration_seconds",
			Help:      "Time to research and draft one section",
			Buckets:   prometheus.DefBuckets,
		}),
		SearchCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Search cache lookups by result",
		}, []string{"result"}),
		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generation calls by outcome",
		}, []string{"outcome"}),
		GenerationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of a single generation call",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		GenerationTokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Tokens reported by the generation backend",
		}),
	}
}

// RequestFinished implements workflow.Observer.
func (r *Recorder) RequestFinished(status types.ContentStatus, d time.Duration, tokens int) {
	r.Requests.WithLabelValues(string(status)).Inc()
	r.RequestDuration.Observe(d.Seconds())
	if tokens > 0 {
		r.RequestTokens.Observe(float64(tokens))
	}
}

// SectionFinished implements pipeline.Observer.
func (r *Recorder) SectionFinished(state pipeline.State, d time.Duration) {
	r.Sections.WithLabelValues(state.String()).Inc()
	r.SectionDuration.Observe(d.Seconds())
}

// CacheHit implements search.CacheObserver.
func (r *Recorder) CacheHit() { r.SearchCache.WithLabelValues("hit").Inc() }

// CacheMiss implements search.CacheObserver.
func (r *Recorder) CacheMiss() { r.SearchCache.WithLabelValues("miss").Inc() }

// Instrument wraps gen so every call is counted and timed.
func (r *Recorder) Instrument(gen llm.Generator) llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
		start := time.Now()
		resp, err := gen.Generate(ctx, req)
		r.GenerationDuration.Observe(time.Since(start).Seconds())
		r.Generations.WithLabelValues(outcome(err)).Inc()
		if resp.TokensUsed > 0 {
			r.GenerationTokens.Add(float64(resp.TokensUsed))
		}
		return resp, err
	})
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	var ce *types.CollaboratorError
	if errors.As(err, &ce) {
		return string(ce.Kind)
	}
	return "error"
}
