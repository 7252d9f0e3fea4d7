package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/contentforge/pkg/types"
)

// --- fake searcher ---

type fakeSearcher struct {
	name     string
	passages []Passage
	err      error
	calls    int
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(_ context.Context, q Query) ([]Passage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return Rank(append([]Passage(nil), f.passages...), q), nil
}

// --- Query ---

func TestQueryIsEmpty(t *testing.T) {
	assert.True(t, Query{}.IsEmpty())
	assert.True(t, Query{Text: "   "}.IsEmpty())
	assert.False(t, Query{Text: "solar"}.IsEmpty())
}

// --- Rank ---

func TestRankFiltersSortsAndTruncates(t *testing.T) {
	in := []Passage{
		{ID: "a", Score: 0.4},
		{ID: "b", Score: 0.9},
		{ID: "c", Score: 0.1},
		{ID: "d", Score: 0.7},
	}
	got := Rank(in, Query{Text: "x", TopK: 2, MinScore: 0.3})
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "d", got[1].ID)
}

func TestRankStableForTies(t *testing.T) {
	in := []Passage{{ID: "first", Score: 0.5}, {ID: "second", Score: 0.5}}
	got := Rank(in, Query{Text: "x"})
	assert.Equal(t, []string{"first", "second"}, []string{got[0].ID, got[1].ID})
}

// --- Deduplicate ---

func TestDeduplicateKeepsHighestScore(t *testing.T) {
	in := []Passage{
		{ID: "p1", Source: "DocA", Score: 0.6},
		{ID: "p2", Source: "DocB", Score: 0.5},
		{ID: "p1", Source: "DocA", Score: 0.8, URL: "https://a.example"},
		{Source: "anon", Score: 0.3},
		{Source: "anon", Score: 0.3},
	}
	got := Deduplicate(in)
	require.Len(t, got, 4)
	assert.Equal(t, 0.8, got[0].Score)
	assert.Equal(t, "https://a.example", got[0].URL)
}

// --- Multi ---

func TestMultiMergesBackends(t *testing.T) {
	a := &fakeSearcher{name: "a", passages: []Passage{{ID: "1", Score: 0.9}, {ID: "2", Score: 0.4}}}
	b := &fakeSearcher{name: "b", passages: []Passage{{ID: "2", Score: 0.7}, {ID: "3", Score: 0.5}}}
	m := NewMulti(zaptest.NewLogger(t), a, b)

	got, err := m.Search(context.Background(), Query{Text: "q", TopK: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, 0.7, got[1].Score)
	assert.Equal(t, "3", got[2].ID)
}

func TestMultiToleratesPartialFailure(t *testing.T) {
	ok := &fakeSearcher{name: "ok", passages: []Passage{{ID: "1", Score: 0.9}}}
	bad := &fakeSearcher{name: "bad", err: errors.New("boom")}
	got, err := NewMulti(zaptest.NewLogger(t), ok, bad).Search(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMultiAllBackendsFail(t *testing.T) {
	bad := &fakeSearcher{name: "bad", err: errors.New("boom")}
	_, err := NewMulti(nil, bad).Search(context.Background(), Query{Text: "q"})
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))
	assert.Contains(t, err.Error(), "bad: boom")
}

func TestMultiNoBackends(t *testing.T) {
	_, err := NewMulti(nil).Search(context.Background(), Query{Text: "q"})
	assert.Error(t, err)
}

// --- Passage.Citation ---

func TestPassageCitation(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	p := Passage{
		ID:         "p-1",
		Content:    strings.Repeat("é", 600),
		Source:     "DocA",
		Score:      1.4,
		PageNumber: types.IntPtr(5),
	}
	c := p.Citation(at)
	assert.Equal(t, "p-1", c.ID)
	assert.Equal(t, 500, len([]rune(c.Text)))
	assert.Equal(t, "document", c.SourceType)
	assert.Equal(t, 1.0, c.RelevanceScore)
	assert.Equal(t, at, c.RetrievedAt)
	require.NotNil(t, c.PageNumber)
	assert.Equal(t, 5, *c.PageNumber)

	// The citation owns its page number.
	*p.PageNumber = 9
	assert.Equal(t, 5, *c.PageNumber)
	require.NoError(t, c.Validate())
}

func TestPassageCitationGeneratesID(t *testing.T) {
	c := Passage{Content: "x", Source: "S", Score: 0.5}.Citation(time.Now())
	assert.NotEmpty(t, c.ID)
}
