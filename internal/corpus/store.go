// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus persists source documents in SQLite and serves them as
// BM25-ranked passages through an FTS5 index.
package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/contentforge/internal/search"
	"github.com/pdiddy/contentforge/pkg/types"
)

// Document is one source file in the corpus directory (<id>.yaml).
type Document struct {
	// ID identifies the document. Defaults to the file name without extension.
	ID string `json:"id" yaml:"id"`

	// Title is used as the citation source.
	Title string `json:"title" yaml:"title"`

	// URL links to the original document (optional).
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// SourceType classifies the document: document, web, database.
	SourceType string `json:"source_type,omitempty" yaml:"source_type,omitempty"`

	// Passages are the retrievable chunks of the document.
	Passages []DocumentPassage `json:"passages" yaml:"passages"`
}

// DocumentPassage is one chunk of a document.
type DocumentPassage struct {
	// Content is the passage text.
	Content string `json:"content" yaml:"content"`

	// Page is the page number, when known.
	Page *int `json:"page,omitempty" yaml:"page,omitempty"`
}

// Store manages the corpus SQLite database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens or creates the corpus database at dbPath and creates the
// schema if it does not exist.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating corpus directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			url TEXT,
			source_type TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS passages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			content TEXT NOT NULL,
			page INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_doc_id ON passages(doc_id)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			doc_id TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='passages_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE passages_fts USING fts5(content, content=passages, content_rowid=rowid)`,
		`CREATE TRIGGER passages_ai AFTER INSERT ON passages BEGIN
			INSERT INTO passages_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
		`CREATE TRIGGER passages_ad AFTER DELETE ON passages BEGIN
			INSERT INTO passages_fts(passages_fts, rowid, content) VALUES('delete', old.rowid, old.content);
		END`,
		`CREATE TRIGGER passages_au AFTER UPDATE ON passages BEGIN
			INSERT INTO passages_fts(passages_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			INSERT INTO passages_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// IngestSummary holds counts from a corpus indexing run.
type IngestSummary struct {
	Indexed  int
	Updated  int
	Skipped  int
	Failed   int
	Passages int
}

// Total returns the number of documents processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest reads document YAML files from dir and indexes them. Unchanged
// files (same modification time as the last run) are skipped; changed files
// replace their earlier passages.
func (s *Store) Ingest(ctx context.Context, dir string, w io.Writer) (IngestSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading corpus directory %s: %w", dir, err)
	}

	var summary IngestSummary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		docID := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM indexing_status WHERE doc_id = ?`, docID,
		).Scan(&storedModTime)
		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", docID)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		doc, err := LoadDocument(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}
		if doc.ID == "" {
			doc.ID = docID
		}

		if err := s.ingestDocument(ctx, docID, doc, modTime); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", docID, err)
			summary.Failed++
			continue
		}
		summary.Passages += len(doc.Passages)

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d passages)\n", docID, len(doc.Passages))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d passages)\n", docID, len(doc.Passages))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)
	s.logger.Info("corpus ingest finished",
		zap.Int("indexed", summary.Indexed),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// AddDocument indexes a single document, replacing any earlier version.
func (s *Store) AddDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document %q has no id", doc.Title)
	}
	return s.ingestDocument(ctx, doc.ID, doc, "")
}

func (s *Store) ingestDocument(ctx context.Context, statusKey string, doc *Document, modTime string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE doc_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("deleting old passages: %w", err)
	}

	sourceType := doc.SourceType
	if sourceType == "" {
		sourceType = "document"
	}
	title := doc.Title
	if title == "" {
		title = doc.ID
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, url, source_type) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, url=excluded.url, source_type=excluded.source_type`,
		doc.ID, title, doc.URL, sourceType,
	)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO passages (id, doc_id, seq, content, page) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range doc.Passages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		var page sql.NullInt64
		if p.Page != nil {
			page = sql.NullInt64{Int64: int64(*p.Page), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, passageID(doc.ID, i), doc.ID, i, p.Content, page); err != nil {
			return fmt.Errorf("inserting passage %d: %w", i, err)
		}
	}

	if modTime != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO indexing_status (doc_id, file_mod_time) VALUES (?, ?)
			 ON CONFLICT(doc_id) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
			statusKey, modTime,
		)
		if err != nil {
			return fmt.Errorf("updating indexing status: %w", err)
		}
	}

	return tx.Commit()
}

func passageID(docID string, seq int) string {
	return fmt.Sprintf("%s#%d", docID, seq)
}

// LoadDocument reads one document YAML file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if len(doc.Passages) == 0 {
		return nil, fmt.Errorf("document has no passages")
	}
	return &doc, nil
}

// SearchPassages converts the document into passages with the same IDs the
// store assigns, for in-memory indexing.
func (d *Document) SearchPassages() []search.Passage {
	out := make([]search.Passage, len(d.Passages))
	for i, p := range d.Passages {
		out[i] = search.Passage{
			ID:         passageID(d.ID, i),
			Content:    p.Content,
			Source:     d.Title,
			SourceType: d.SourceType,
			URL:        d.URL,
		}
		if p.Page != nil {
			out[i].PageNumber = types.IntPtr(*p.Page)
		}
	}
	return out
}

// LoadDir reads every document YAML file in dir. A document without an id
// takes its file name.
func LoadDir(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory %s: %w", dir, err)
	}
	var docs []*Document
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		doc, err := LoadDocument(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if doc.ID == "" {
			doc.ID = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
