// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/contentforge/internal/search"
	"github.com/pdiddy/contentforge/pkg/types"
)

// defaultTopK applies when a query does not set TopK.
const defaultTopK = 5

// Name implements search.Named.
func (s *Store) Name() string { return "corpus" }

// Search implements search.Searcher over the FTS5 index. The free-text query
// is reduced to quoted terms joined with OR so user punctuation never reaches
// the FTS5 parser. BM25 ranks are mapped into [0,1) with s/(1+s).
func (s *Store) Search(ctx context.Context, q search.Query) ([]search.Passage, error) {
	match := ftsQuery(q.Text)
	if match == "" {
		return nil, nil
	}
	topK := q.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.content, p.page, d.title, d.url, d.source_type, passages_fts.rank
		FROM passages_fts
		JOIN passages p ON p.rowid = passages_fts.rowid
		JOIN documents d ON d.id = p.doc_id
		WHERE passages_fts MATCH ?
		ORDER BY passages_fts.rank
		LIMIT ?`, match, topK*3)
	if err != nil {
		return nil, &types.CollaboratorError{Service: "corpus", Op: "search", Kind: types.KindPermanent, Err: err}
	}
	defer rows.Close()

	var out []search.Passage
	for rows.Next() {
		var (
			p          search.Passage
			page       sql.NullInt64
			url        sql.NullString
			sourceType sql.NullString
			rank       float64
		)
		if err := rows.Scan(&p.ID, &p.Content, &page, &p.Source, &url, &sourceType, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if page.Valid {
			p.PageNumber = types.IntPtr(int(page.Int64))
		}
		p.URL = url.String
		p.SourceType = sourceType.String
		p.Score = bm25Score(rank)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return search.Rank(out, q), nil
}

// Count returns the number of indexed documents and passages.
func (s *Store) Count(ctx context.Context) (docs, passages int, err error) {
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&docs); err != nil {
		return 0, 0, fmt.Errorf("counting documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM passages`).Scan(&passages); err != nil {
		return 0, 0, fmt.Errorf("counting passages: %w", err)
	}
	return docs, passages, nil
}

// ftsQuery turns free text into an FTS5 expression of quoted terms.
func ftsQuery(text string) string {
	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, t := range terms {
		terms[i] = `"` + strings.ToLower(t) + `"`
	}
	return strings.Join(terms, " OR ")
}

// bm25Score maps an FTS5 rank (negative, lower is better) into [0,1).
func bm25Score(rank float64) float64 {
	s := -rank
	if s <= 0 {
		return 0
	}
	return s / (1 + s)
}
