// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"
)

// indexedPassage is the document shape stored in the bleve index.
type indexedPassage struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// MemIndex is an in-memory BM25 searcher over a fixed set of passages.
// It backs `contentforge research --from` and tests that need real ranking.
type MemIndex struct {
	mu       sync.RWMutex
	index    bleve.Index
	passages map[string]Passage
}

// NewMemIndex creates an empty in-memory index.
func NewMemIndex() (*MemIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}
	return &MemIndex{index: index, passages: make(map[string]Passage)}, nil
}

// Name implements Named.
func (m *MemIndex) Name() string { return "memory" }

// Add indexes passages. Passages must carry a non-empty ID; re-adding an ID
// replaces the earlier passage.
func (m *MemIndex) Add(passages ...Passage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range passages {
		if p.ID == "" {
			return fmt.Errorf("passage from %q has no ID", p.Source)
		}
		if err := m.index.Index(p.ID, indexedPassage{Content: p.Content, Source: p.Source}); err != nil {
			return fmt.Errorf("indexing passage %s: %w", p.ID, err)
		}
		m.passages[p.ID] = p
	}
	return nil
}

// Len returns the number of indexed passages.
func (m *MemIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.passages)
}

// Search implements Searcher. Raw BM25 scores are mapped into [0,1) with
// s/(1+s) so MinScore applies uniformly across backends.
func (m *MemIndex) Search(ctx context.Context, q Query) ([]Passage, error) {
	if q.IsEmpty() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := q.TopK
	if size <= 0 {
		size = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q.Text), size*3, 0, false)

	m.mu.RLock()
	defer m.mu.RUnlock()
	res, err := m.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	out := make([]Passage, 0, len(res.Hits))
	for _, hit := range res.Hits {
		p, ok := m.passages[hit.ID]
		if !ok {
			continue
		}
		p.Score = normalizeScore(hit.Score)
		out = append(out, p)
	}
	return Rank(out, q), nil
}

// Close releases the index.
func (m *MemIndex) Close() error {
	return m.index.Close()
}

func normalizeScore(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return raw / (1 + raw)
}
