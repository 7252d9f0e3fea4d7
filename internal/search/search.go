// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search defines the retrieval contract used by the context builder
// and provides the fan-out, in-memory, and cached implementations of it.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/pkg/types"
)

// maxCitationTextChars bounds the excerpt carried by a citation.
const maxCitationTextChars = 500

// Passage is one ranked retrieval result.
type Passage struct {
	// ID identifies the passage within its backend.
	ID string `json:"id" yaml:"id"`

	// Content is the passage text placed into the context.
	Content string `json:"content" yaml:"content"`

	// Source is the document title or label.
	Source string `json:"source" yaml:"source"`

	// SourceType classifies the source (document, web, database).
	SourceType string `json:"source_type,omitempty" yaml:"source_type,omitempty"`

	// URL links to the source document, when known.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Score is the relevance score in [0.0, 1.0].
	Score float64 `json:"score" yaml:"score"`

	// PageNumber is the page the passage came from, when known.
	PageNumber *int `json:"page_number,omitempty" yaml:"page_number,omitempty"`

	// Metadata carries backend-specific fields.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Citation converts the passage into a citation retrieved at the given time.
// The excerpt is truncated to 500 characters. A passage without an ID gets
// a fresh UUID.
func (p Passage) Citation(retrievedAt time.Time) types.Citation {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	sourceType := p.SourceType
	if sourceType == "" {
		sourceType = "document"
	}
	c := types.Citation{
		ID:             id,
		Text:           truncateRunes(p.Content, maxCitationTextChars),
		Source:         p.Source,
		SourceType:     sourceType,
		RelevanceScore: clampScore(p.Score),
		URL:            p.URL,
		RetrievedAt:    retrievedAt,
	}
	if p.PageNumber != nil {
		c.PageNumber = types.IntPtr(*p.PageNumber)
	}
	return c
}

// Query holds the retrieval parameters.
type Query struct {
	// Text is the free-text query.
	Text string `json:"text"`

	// TopK caps the number of passages returned; zero means backend default.
	TopK int `json:"top_k"`

	// MinScore drops passages scoring below it.
	MinScore float64 `json:"min_score"`
}

// IsEmpty reports whether the query contains no searchable terms.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == ""
}

// Searcher retrieves ranked passages. Implementations return results sorted
// by descending score with passages below MinScore removed.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Passage, error)
}

// Named is implemented by searchers that report a backend name for logs.
type Named interface {
	Name() string
}

// Multi fans a query out to several searchers concurrently, deduplicates
// passages by ID keeping the highest score, ranks them, and returns the top K.
// A backend failure is logged and skipped; Multi fails only when every
// backend fails.
type Multi struct {
	backends []Searcher
	logger   *zap.Logger
}

// NewMulti creates a fan-out searcher.
func NewMulti(logger *zap.Logger, backends ...Searcher) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{backends: backends, logger: logger}
}

// Search implements Searcher.
func (m *Multi) Search(ctx context.Context, q Query) ([]Passage, error) {
	if len(m.backends) == 0 {
		return nil, fmt.Errorf("no search backends configured")
	}

	type backendResult struct {
		passages []Passage
		err      error
		name     string
	}

	ch := make(chan backendResult, len(m.backends))
	var wg sync.WaitGroup
	for i, b := range m.backends {
		wg.Add(1)
		go func(i int, b Searcher) {
			defer wg.Done()
			passages, err := b.Search(ctx, q)
			ch <- backendResult{passages: passages, err: err, name: backendName(i, b)}
		}(i, b)
	}
	go func() {
		wg.Wait()
		close(ch)
	}()

	var all []Passage
	var failures []string
	for br := range ch {
		if br.err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", br.name, br.err))
			m.logger.Warn("search backend failed", zap.String("backend", br.name), zap.Error(br.err))
			continue
		}
		all = append(all, br.passages...)
	}
	if len(failures) == len(m.backends) {
		return nil, &types.CollaboratorError{
			Service: "search",
			Op:      "search",
			Kind:    types.KindTransient,
			Err:     fmt.Errorf("all backends failed: %s", strings.Join(failures, "; ")),
		}
	}

	return Rank(Deduplicate(all), q), nil
}

func backendName(i int, b Searcher) string {
	if n, ok := b.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("backend-%d", i)
}

// Deduplicate merges passages sharing an ID, keeping the higher score and
// filling empty fields from later duplicates. Passages without an ID are
// never merged.
func Deduplicate(passages []Passage) []Passage {
	seen := make(map[string]int)
	var out []Passage
	for _, p := range passages {
		if p.ID != "" {
			if idx, ok := seen[p.ID]; ok {
				mergeInto(&out[idx], p)
				continue
			}
			seen[p.ID] = len(out)
		}
		out = append(out, p)
	}
	return out
}

func mergeInto(dst *Passage, src Passage) {
	if src.Score > dst.Score {
		dst.Score = src.Score
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if dst.PageNumber == nil && src.PageNumber != nil {
		dst.PageNumber = types.IntPtr(*src.PageNumber)
	}
	if dst.Content == "" {
		dst.Content = src.Content
	}
}

// Rank filters by MinScore, sorts by descending score (stable for ties), and
// truncates to TopK when positive.
func Rank(passages []Passage, q Query) []Passage {
	out := passages[:0:0]
	for _, p := range passages {
		if p.Score >= q.MinScore {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if q.TopK > 0 && len(out) > q.TopK {
		out = out[:q.TopK]
	}
	return out
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
