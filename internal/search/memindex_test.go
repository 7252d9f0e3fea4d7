package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *MemIndex {
	t.Helper()
	idx, err := NewMemIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.Add(
		Passage{ID: "solar-1", Source: "Solar Outlook", Content: "Solar panel installations grew quickly in 2024 as costs fell."},
		Passage{ID: "wind-1", Source: "Wind Review", Content: "Offshore wind capacity expanded along the North Sea coast."},
		Passage{ID: "solar-2", Source: "Grid Study", Content: "Grid operators integrate solar generation with battery storage."},
	))
	return idx
}

func TestMemIndexSearch(t *testing.T) {
	idx := newTestIndex(t)
	assert.Equal(t, 3, idx.Len())

	got, err := idx.Search(context.Background(), Query{Text: "solar", TopK: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.Contains(t, p.ID, "solar")
		assert.Greater(t, p.Score, 0.0)
		assert.Less(t, p.Score, 1.0)
	}
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestMemIndexTopKAndMinScore(t *testing.T) {
	idx := newTestIndex(t)

	got, err := idx.Search(context.Background(), Query{Text: "solar", TopK: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = idx.Search(context.Background(), Query{Text: "solar", MinScore: 0.999})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemIndexEmptyQuery(t *testing.T) {
	idx := newTestIndex(t)
	got, err := idx.Search(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemIndexRejectsMissingID(t *testing.T) {
	idx, err := NewMemIndex()
	require.NoError(t, err)
	defer idx.Close()
	assert.Error(t, idx.Add(Passage{Source: "x", Content: "y"}))
}

func TestNormalizeScore(t *testing.T) {
	assert.Equal(t, 0.0, normalizeScore(-1))
	assert.Equal(t, 0.0, normalizeScore(0))
	assert.InDelta(t, 0.5, normalizeScore(1), 1e-9)
}
