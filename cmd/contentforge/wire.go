// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/internal/corpus"
	"github.com/pdiddy/contentforge/internal/llm"
	"github.com/pdiddy/contentforge/internal/metrics"
	"github.com/pdiddy/contentforge/internal/pipeline"
	"github.com/pdiddy/contentforge/internal/plan"
	"github.com/pdiddy/contentforge/internal/publish"
	"github.com/pdiddy/contentforge/internal/rag"
	"github.com/pdiddy/contentforge/internal/report"
	"github.com/pdiddy/contentforge/internal/search"
	"github.com/pdiddy/contentforge/internal/workflow"
	"github.com/pdiddy/contentforge/pkg/types"
)

// app holds the collaborators built from cfg. close releases them.
type app struct {
	searcher search.Searcher
	service  *workflow.Service
	close    func()
}

// newSearcher opens the corpus store, wrapped in the Redis cache when
// search.redis_url is set.
func newSearcher(rec *metrics.Recorder) (search.Searcher, func(), error) {
	store, err := corpus.NewStore(cfg.Search.CorpusDB, logger)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { store.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var s search.Searcher = store
	if cfg.Search.RedisURL != "" {
		client, err := search.NewRedisClient(cfg.Search.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { client.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, searches will bypass the cache", zap.Error(err))
		}
		cached := search.NewCached(store, client, cfg.Search.CacheTTL, logger)
		if rec != nil {
			cached.WithObserver(rec)
		}
		s = cached
	}
	return s, closeAll, nil
}

// newApp wires the full workflow. rec may be nil.
func newApp(rec *metrics.Recorder, withPublisher bool) (*app, error) {
	if _, err := types.ParseCitationStyle(string(cfg.Generation.CitationStyle)); err != nil {
		return nil, err
	}

	var gen llm.Generator
	retrying, err := llm.New(cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("generation backend: %w", err)
	}
	gen = retrying
	if rec != nil {
		gen = rec.Instrument(gen)
	}

	searcher, closeSearch, err := newSearcher(rec)
	if err != nil {
		return nil, err
	}

	builder := rag.NewBuilder(searcher,
		rag.WithTopK(cfg.Search.TopKPerSectionQuery),
		rag.WithMinScore(cfg.Search.MinScore),
		rag.WithLogger(logger),
	)

	runnerOpts := []pipeline.Option{
		pipeline.WithConcurrency(cfg.Generation.Concurrency),
		pipeline.WithMaxSectionWords(cfg.Generation.MaxSectionWords),
		pipeline.WithLogger(logger),
	}
	serviceOpts := []workflow.Option{workflow.WithLogger(logger)}
	if rec != nil {
		runnerOpts = append(runnerOpts, pipeline.WithObserver(rec))
		serviceOpts = append(serviceOpts, workflow.WithObserver(rec))
	}
	if withPublisher {
		p, err := publish.New(cfg.Publish, logger)
		if err != nil {
			closeSearch()
			return nil, fmt.Errorf("publisher: %w", err)
		}
		serviceOpts = append(serviceOpts, workflow.WithPublisher(p))
	}

	assembler := report.NewAssembler(gen,
		report.WithFactCheck(cfg.Generation.FactCheck),
		report.WithLogger(logger),
	)
	svc := workflow.NewService(
		plan.NewPlanner(gen, logger),
		pipeline.NewRunner(builder, gen, runnerOpts...),
		assembler,
		cfg.Generation,
		serviceOpts...,
	)
	return &app{searcher: searcher, service: svc, close: closeSearch}, nil
}
