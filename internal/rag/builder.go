// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rag assembles retrieved passages into a bounded, citation-attributed
// context string for drafting.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/internal/search"
	"github.com/pdiddy/contentforge/pkg/types"
)

const (
	// blockSeparator joins context blocks.
	blockSeparator = "\n\n"

	// minTruncatedChars is the smallest remaining budget worth filling with a
	// truncated block.
	minTruncatedChars = 100

	ellipsis = "..."
)

// Builder turns a query into a token-budgeted context.
type Builder struct {
	searcher search.Searcher
	topK     int
	minScore float64
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithTopK sets the number of passages requested per query.
func WithTopK(k int) Option { return func(b *Builder) { b.topK = k } }

// WithMinScore sets the minimum passage score.
func WithMinScore(s float64) Option { return func(b *Builder) { b.minScore = s } }

// WithClock overrides the retrieval timestamp source.
func WithClock(now func() time.Time) Option { return func(b *Builder) { b.now = now } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(b *Builder) { b.logger = l } }

// NewBuilder creates a Builder over the given searcher.
func NewBuilder(s search.Searcher, opts ...Option) *Builder {
	b := &Builder{
		searcher: s,
		topK:     5,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build retrieves passages for query and packs them, highest score first,
// into at most maxTokens*4 characters. Each block reads
// "[n] Source: <source>\n<content>" and blocks are separated by a blank line.
// When the next block does not fit and more than 100 characters remain, a
// truncated copy ending in "..." is included. Returned citations cover every
// included block. No results yields ("", nil, nil).
func (b *Builder) Build(ctx context.Context, query string, maxTokens int) (string, []types.Citation, error) {
	passages, err := b.searcher.Search(ctx, search.Query{Text: query, TopK: b.topK, MinScore: b.minScore})
	if err != nil {
		return "", nil, fmt.Errorf("searching %q: %w", query, err)
	}
	if len(passages) == 0 {
		return "", nil, nil
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})

	budget := TokensToChars(maxTokens)
	retrievedAt := b.now()

	var (
		sb        strings.Builder
		citations []types.Citation
	)
	for i, p := range passages {
		block := formatBlock(i+1, p)
		sep := 0
		if sb.Len() > 0 {
			sep = len(blockSeparator)
		}

		if sb.Len()+sep+len(block) <= budget {
			if sep > 0 {
				sb.WriteString(blockSeparator)
			}
			sb.WriteString(block)
			citations = append(citations, p.Citation(retrievedAt))
			continue
		}

		remaining := budget - sb.Len() - sep
		if remaining > minTruncatedChars {
			if sep > 0 {
				sb.WriteString(blockSeparator)
			}
			sb.WriteString(truncateBytes(block, remaining-len(ellipsis)))
			sb.WriteString(ellipsis)
			citations = append(citations, p.Citation(retrievedAt))
		}
		break
	}

	b.logger.Debug("context built",
		zap.String("query", query),
		zap.Int("passages", len(passages)),
		zap.Int("included", len(citations)),
		zap.Int("chars", sb.Len()),
		zap.Int("budget_chars", budget),
	)
	return sb.String(), citations, nil
}

// BuildMulti builds one context per query with the total budget split evenly
// up front. Each non-empty context is rendered under "# Research: <query>"
// and the pieces are joined by a blank line. Citations are concatenated in
// query order without deduplication.
func (b *Builder) BuildMulti(ctx context.Context, queries []string, totalTokens int) (string, []types.Citation, error) {
	if len(queries) == 0 {
		return "", nil, nil
	}
	perQuery := SplitBudget(totalTokens, len(queries))

	var (
		parts     []string
		citations []types.Citation
	)
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		text, cs, err := b.Build(ctx, q, perQuery)
		if err != nil {
			return "", nil, err
		}
		if text == "" {
			continue
		}
		parts = append(parts, "# Research: "+q+"\n"+text)
		citations = append(citations, cs...)
	}
	return strings.Join(parts, blockSeparator), citations, nil
}

func formatBlock(n int, p search.Passage) string {
	return fmt.Sprintf("[%d] Source: %s\n%s", n, p.Source, p.Content)
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
