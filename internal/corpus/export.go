// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// ExportYAML writes every indexed document, with its passages in order, to
// path. The output can be re-ingested with Ingest after splitting per file.
func (s *Store) ExportYAML(ctx context.Context, path string) error {
	docs, err := s.exportDocuments(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) exportDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.title, d.url, d.source_type, p.content, p.page
		FROM documents d
		JOIN passages p ON p.doc_id = d.id
		ORDER BY d.id, p.seq`)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id, title, content string
			url, sourceType    sql.NullString
			page               sql.NullInt64
		)
		if err := rows.Scan(&id, &title, &url, &sourceType, &content, &page); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if len(docs) == 0 || docs[len(docs)-1].ID != id {
			docs = append(docs, Document{ID: id, Title: title, URL: url.String, SourceType: sourceType.String})
		}
		dp := DocumentPassage{Content: content}
		if page.Valid {
			n := int(page.Int64)
			dp.Page = &n
		}
		last := &docs[len(docs)-1]
		last.Passages = append(last.Passages, dp)
	}
	return docs, rows.Err()
}
