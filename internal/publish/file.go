// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package publish

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/pkg/types"
)

// Filesystem publishes into a local directory. Documents are written as
// Markdown with an HTML rendering beside them; messages land in
// outbox/<channel>/.
type Filesystem struct {
	root   string
	logger *zap.Logger
}

// NewFilesystem creates a publisher rooted at dir.
func NewFilesystem(dir string, logger *zap.Logger) (*Filesystem, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving publish dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filesystem{root: abs, logger: logger}, nil
}

// PublishDocument implements Publisher.
func (f *Filesystem) PublishDocument(_ context.Context, name, content, destination string) (DocumentRef, error) {
	dir, err := f.within(destination)
	if err != nil {
		return DocumentRef{}, err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return DocumentRef{}, &types.ValidationError{Field: "name", Constraint: "must be a plain file name"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return DocumentRef{}, f.fail("publish_document", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return DocumentRef{}, f.fail("publish_document", err)
	}
	rendered, err := RenderHTML(content)
	if err != nil {
		return DocumentRef{}, f.fail("publish_document", err)
	}
	htmlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".html"
	if err := os.WriteFile(htmlPath, []byte(rendered), 0o644); err != nil {
		return DocumentRef{}, f.fail("publish_document", err)
	}

	f.logger.Info("document written", zap.String("path", path))
	return DocumentRef{ID: path, Name: name, WebURL: fileURL(path)}, nil
}

// PostMessage implements Publisher.
func (f *Filesystem) PostMessage(_ context.Context, destination, content string) (MessageRef, error) {
	if strings.TrimSpace(destination) == "" {
		return MessageRef{}, &types.ValidationError{Field: "channel", Constraint: "must not be empty"}
	}
	dir := filepath.Join(f.root, "outbox", Slug(destination))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return MessageRef{}, f.fail("post_message", err)
	}
	id := uuid.NewString()
	path := filepath.Join(dir, id+".html")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return MessageRef{}, f.fail("post_message", err)
	}
	f.logger.Info("message written", zap.String("path", path))
	return MessageRef{ID: id, WebURL: fileURL(path)}, nil
}

// within resolves a folder beneath the root, rejecting escapes.
func (f *Filesystem) within(folder string) (string, error) {
	dir := filepath.Join(f.root, filepath.FromSlash(folder))
	rel, err := filepath.Rel(f.root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &types.ValidationError{Field: "folder", Constraint: "must stay inside the publish directory"}
	}
	return dir, nil
}

func (f *Filesystem) fail(op string, err error) error {
	return &types.CollaboratorError{Service: "filesystem", Op: op, Kind: types.KindPermanent, Err: err}
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
