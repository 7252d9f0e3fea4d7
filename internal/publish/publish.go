// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package publish delivers finished reports: the document goes to a
// document store (SharePoint or a local directory) and an announcement goes
// to a channel (Teams or a local outbox).
package publish

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pdiddy/contentforge/pkg/types"
)

// DocumentRef identifies an uploaded document.
type DocumentRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	WebURL string `json:"web_url"`
}

// MessageRef identifies a posted message.
type MessageRef struct {
	ID     string `json:"id"`
	WebURL string `json:"web_url"`
}

// Publisher stores documents and posts messages. Implementations return
// *types.CollaboratorError for service failures.
type Publisher interface {
	// PublishDocument stores content under name inside destination, a
	// folder path. An empty destination means the publisher's root.
	PublishDocument(ctx context.Context, name, content, destination string) (DocumentRef, error)

	// PostMessage posts HTML content to destination, a channel address.
	PostMessage(ctx context.Context, destination, content string) (MessageRef, error)
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts Markdown to HTML.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses every run of other characters to one
// hyphen.
func Slug(s string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// FileName is the document name for a report: "<slug>-<yyyymmdd>.md".
func FileName(r *types.Report) string {
	return fmt.Sprintf("%s-%s.md", Slug(r.Title), r.CreatedAt.UTC().Format("20060102"))
}

// Destination says where a report goes.
type Destination struct {
	// Folder is the document folder. Empty uses the publisher root.
	Folder string `json:"folder"`

	// Channel is the message destination. Empty skips the announcement.
	Channel string `json:"channel"`
}

// Announcement builds the HTML message announcing a published report.
func Announcement(r *types.Report, docURL string) string {
	var sb strings.Builder
	sb.WriteString("<h2>" + html.EscapeString(r.Title) + "</h2>")
	if r.ExecutiveSummary != "" {
		sb.WriteString("<p>" + html.EscapeString(r.ExecutiveSummary) + "</p>")
	}
	fmt.Fprintf(&sb, "<p>%d sections, %d citations, %d words.</p>", len(r.Sections), len(r.Citations), r.WordCount())
	if docURL != "" {
		sb.WriteString(`<p><a href="` + html.EscapeString(docURL) + `">Read the full ` + html.EscapeString(string(r.ContentType)) + `</a></p>`)
	}
	return sb.String()
}

// Report publishes a completed or degraded report: the document first, then
// the announcement when a channel is set. On success the report is marked
// published with both URLs. Every attempt is recorded as a publishing step.
func Report(ctx context.Context, p Publisher, r *types.Report, dest Destination) error {
	if r.Status != types.StatusCompleted && r.Status != types.StatusDegraded {
		return &types.ValidationError{Field: "status", Constraint: fmt.Sprintf("cannot publish a %s report", r.Status)}
	}
	if strings.TrimSpace(r.Document) == "" {
		return &types.ValidationError{Field: "document", Constraint: "must not be empty"}
	}

	start := time.Now()
	name := FileName(r)
	step := types.AgentStep{Agent: "publisher", Kind: types.StepPublishing, InputSummary: name}

	doc, err := p.PublishDocument(ctx, name, r.Document, dest.Folder)
	if err != nil {
		step.Duration = time.Since(start)
		step.Error = err.Error()
		r.AddAgentStep(step)
		return fmt.Errorf("publishing document: %w", err)
	}

	var msg MessageRef
	if dest.Channel != "" {
		msg, err = p.PostMessage(ctx, dest.Channel, Announcement(r, doc.WebURL))
		if err != nil {
			step.Duration = time.Since(start)
			step.OutputSummary = doc.WebURL
			step.Error = err.Error()
			r.AddAgentStep(step)
			return fmt.Errorf("posting announcement: %w", err)
		}
	}

	step.Duration = time.Since(start)
	step.OutputSummary = strings.TrimSpace(doc.WebURL + " " + msg.WebURL)
	r.AddAgentStep(step)
	return r.MarkPublished(doc.WebURL, msg.WebURL)
}
