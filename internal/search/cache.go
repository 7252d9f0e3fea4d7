// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "contentforge:search:"

// CacheObserver receives hit/miss notifications. internal/metrics satisfies it.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// Cached wraps a Searcher with a Redis result cache. Redis errors are logged
// and the inner searcher is used directly; the cache never fails a search.
type Cached struct {
	inner    Searcher
	client   *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
	observer CacheObserver
}

// NewCached creates a caching decorator.
func NewCached(inner Searcher, client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{inner: inner, client: client, ttl: ttl, logger: logger}
}

// WithObserver attaches a hit/miss observer.
func (c *Cached) WithObserver(o CacheObserver) *Cached {
	c.observer = o
	return c
}

// Name implements Named.
func (c *Cached) Name() string { return "cached(" + backendName(0, c.inner) + ")" }

// Search implements Searcher.
func (c *Cached) Search(ctx context.Context, q Query) ([]Passage, error) {
	key := cacheKey(q)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var passages []Passage
		if jerr := json.Unmarshal(data, &passages); jerr == nil {
			c.hit()
			return passages, nil
		}
		c.logger.Warn("discarding corrupt cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("search cache read failed", zap.Error(err))
	}
	c.miss()

	passages, err := c.inner.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(passages)
	if err != nil {
		return passages, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("search cache write failed", zap.Error(err))
	}
	return passages, nil
}

func (c *Cached) hit() {
	if c.observer != nil {
		c.observer.CacheHit()
	}
}

func (c *Cached) miss() {
	if c.observer != nil {
		c.observer.CacheMiss()
	}
}

// cacheKey hashes the full query so TopK and MinScore variants never collide.
func cacheKey(q Query) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%g", q.Text, q.TopK, q.MinScore)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
