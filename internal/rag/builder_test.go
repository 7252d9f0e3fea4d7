package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/contentforge/internal/search"
	"github.com/pdiddy/contentforge/pkg/types"
)

// --- fake searcher ---

type fakeSearcher struct {
	byQuery map[string][]search.Passage
	err     error
	queries []search.Query
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) ([]search.Passage, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return append([]search.Passage(nil), f.byQuery[q.Text]...), nil
}

var fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestBuilder(t *testing.T, s search.Searcher) *Builder {
	return NewBuilder(s,
		WithTopK(2),
		WithClock(func() time.Time { return fixedTime }),
		WithLogger(zaptest.NewLogger(t)),
	)
}

func passage(id, source, content string, score float64) search.Passage {
	return search.Passage{ID: id, Source: source, Content: content, Score: score}
}

// --- Build ---

func TestBuildEmptyResults(t *testing.T) {
	b := newTestBuilder(t, &fakeSearcher{})
	text, cits, err := b.Build(context.Background(), "nothing", 1000)
	require.NoError(t, err)
	assert.Equal(t, "", text)
	assert.Empty(t, cits)
}

func TestBuildFormatsBlocksByDescendingScore(t *testing.T) {
	s := &fakeSearcher{byQuery: map[string][]search.Passage{
		"q": {
			passage("b", "DocB", "beta content", 0.8),
			passage("a", "DocA", "alpha content", 0.9),
		},
	}}
	b := newTestBuilder(t, s)

	text, cits, err := b.Build(context.Background(), "q", 1000)
	require.NoError(t, err)
	assert.Equal(t, "[1] Source: DocA\nalpha content\n\n[2] Source: DocB\nbeta content", text)
	require.Len(t, cits, 2)
	assert.Equal(t, "a", cits[0].ID)
	assert.Equal(t, "b", cits[1].ID)
	assert.Equal(t, fixedTime, cits[0].RetrievedAt)

	require.Len(t, s.queries, 1)
	assert.Equal(t, 2, s.queries[0].TopK)
}

func TestBuildLengthGrowsWithEachPassage(t *testing.T) {
	var all []search.Passage
	for i := 0; i < 5; i++ {
		all = append(all, passage(fmt.Sprint(i), fmt.Sprintf("Doc%d", i), "short passage text", 0.9-float64(i)*0.1))
	}

	prev := 0
	for n := 1; n <= len(all); n++ {
		s := &fakeSearcher{byQuery: map[string][]search.Passage{"q": all[:n]}}
		b := NewBuilder(s, WithTopK(10))
		text, cits, err := b.Build(context.Background(), "q", 10000)
		require.NoError(t, err)
		assert.Greater(t, len(text), prev, "n=%d", n)
		assert.Len(t, cits, n)
		prev = len(text)
	}
}

func TestBuildTruncatesWhenEnoughBudgetRemains(t *testing.T) {
	long := strings.Repeat("x", 400)
	s := &fakeSearcher{byQuery: map[string][]search.Passage{
		"q": {
			passage("a", "DocA", "first", 0.9),
			passage("b", "DocB", long, 0.8),
			passage("c", "DocC", "never reached", 0.7),
		},
	}}
	b := newTestBuilder(t, s)

	// 75 tokens = 300 chars; the first block is 22 chars.
	text, cits, err := b.Build(context.Background(), "q", 75)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), 300)
	assert.True(t, strings.HasSuffix(text, "..."))
	assert.Contains(t, text, "[2] Source: DocB\n")
	assert.NotContains(t, text, "DocC")
	require.Len(t, cits, 2)
	assert.Equal(t, "b", cits[1].ID)
}

func TestBuildStopsWhenRemainderTooSmall(t *testing.T) {
	first := strings.Repeat("y", 300)
	s := &fakeSearcher{byQuery: map[string][]search.Passage{
		"q": {
			passage("a", "DocA", first, 0.9),
			passage("b", "DocB", strings.Repeat("z", 400), 0.8),
		},
	}}
	b := newTestBuilder(t, s)

	// 100 tokens = 400 chars; block 1 is 317 chars, leaving 81 after the separator.
	text, cits, err := b.Build(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Equal(t, "[1] Source: DocA\n"+first, text)
	assert.Len(t, cits, 1)
}

func TestBuildTruncationKeepsUTF8Valid(t *testing.T) {
	s := &fakeSearcher{byQuery: map[string][]search.Passage{
		"q": {passage("a", "DocA", strings.Repeat("日本", 200), 0.9)},
	}}
	text, _, err := newTestBuilder(t, s).Build(context.Background(), "q", 50)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), 200)
	assert.True(t, strings.HasSuffix(text, "..."))
	assert.True(t, strings.ToValidUTF8(text, "?") == text)
}

func TestBuildPropagatesSearchError(t *testing.T) {
	s := &fakeSearcher{err: &types.CollaboratorError{Service: "corpus", Op: "search", Kind: types.KindTransient, Err: errors.New("down")}}
	_, _, err := newTestBuilder(t, s).Build(context.Background(), "q", 100)
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))
}

// --- BuildMulti ---

func TestBuildMultiSplitsBudgetAndLabelsQueries(t *testing.T) {
	s := &fakeSearcher{byQuery: map[string][]search.Passage{
		"solar": {passage("s1", "DocA", "sun", 0.9)},
		"empty": nil,
		"wind":  {passage("w1", "DocA", "air", 0.8)},
	}}
	b := newTestBuilder(t, s)

	text, cits, err := b.BuildMulti(context.Background(), []string{"solar", "empty", "wind"}, 301)
	require.NoError(t, err)
	assert.Equal(t,
		"# Research: solar\n[1] Source: DocA\nsun\n\n# Research: wind\n[1] Source: DocA\nair",
		text)
	// Duplicates survive here; the citation register deduplicates later.
	assert.Len(t, cits, 2)
	assert.Len(t, s.queries, 3)
}

func TestBuildMultiNoQueries(t *testing.T) {
	s := &fakeSearcher{}
	text, cits, err := newTestBuilder(t, s).BuildMulti(context.Background(), nil, 1000)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Nil(t, cits)
	assert.Empty(t, s.queries)
}

func TestBuildMultiCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newTestBuilder(t, &fakeSearcher{}).BuildMulti(ctx, []string{"q"}, 100)
	assert.ErrorIs(t, err, context.Canceled)
}

// --- heuristics ---

// Budgets use the fixed chars/4 and words*1.3 approximations, not a
// tokenizer, so exact values are pinned here.
func TestTokenHeuristics(t *testing.T) {
	assert.Equal(t, 2, EstimateTokens("abcdefghi"))
	assert.Equal(t, 400, TokensToChars(100))
	assert.Equal(t, 390, WordsToTokens(300))
	assert.Equal(t, 468, MaxTokensForWords(300))
	assert.Equal(t, 780, ContextBudgetForWords(300))
	assert.Equal(t, 33, SplitBudget(100, 3))
	assert.Equal(t, 0, SplitBudget(100, 0))
}
