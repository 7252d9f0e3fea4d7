// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the contentforge pipeline:
// citations, planned and generated sections, agent steps, reports, and the
// configuration consumed by every stage.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// noPageSentinel stands in for a missing page number in citation identity keys.
const noPageSentinel = "none"

// Citation attributes a piece of generated content to a retrieved source passage.
type Citation struct {
	// ID is an opaque identifier, usually the ID of the passage it was built from.
	ID string `json:"id" yaml:"id"`

	// Text is the cited excerpt.
	Text string `json:"text" yaml:"text"`

	// Source is the document title or label used for attribution and sorting.
	Source string `json:"source" yaml:"source"`

	// SourceType classifies the source: document, web, database.
	SourceType string `json:"source_type" yaml:"source_type"`

	// PageNumber is the page the excerpt came from, when known.
	PageNumber *int `json:"page_number,omitempty" yaml:"page_number,omitempty"`

	// RelevanceScore is the retrieval score, bounded to [0.0, 1.0].
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// URL links to the source when available.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// RetrievedAt records when the passage was fetched.
	RetrievedAt time.Time `json:"retrieved_at" yaml:"retrieved_at"`
}

// Key returns the citation identity: two citations are the same source when
// their keys are equal.
func (c Citation) Key() string {
	page := noPageSentinel
	if c.PageNumber != nil {
		page = strconv.Itoa(*c.PageNumber)
	}
	return c.Source + "\x00" + page
}

// Validate checks the score range and required fields.
func (c Citation) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return &ValidationError{Field: "citation.text", Constraint: "must not be empty"}
	}
	if strings.TrimSpace(c.Source) == "" {
		return &ValidationError{Field: "citation.source", Constraint: "must not be empty"}
	}
	if c.RelevanceScore < 0.0 || c.RelevanceScore > 1.0 {
		return &ValidationError{
			Field:      "citation.relevance_score",
			Constraint: fmt.Sprintf("%f out of range [0,1]", c.RelevanceScore),
		}
	}
	return nil
}

// Clone returns a deep copy so sections and reports never alias page pointers.
func (c Citation) Clone() Citation {
	if c.PageNumber != nil {
		p := *c.PageNumber
		c.PageNumber = &p
	}
	return c
}

// CloneCitations deep-copies a citation slice. A nil input yields nil.
func CloneCitations(cs []Citation) []Citation {
	if cs == nil {
		return nil
	}
	out := make([]Citation, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}

// CitationStyle selects how citations and reference lists are rendered.
type CitationStyle string

const (
	StyleAPA     CitationStyle = "APA"
	StyleMLA     CitationStyle = "MLA"
	StyleChicago CitationStyle = "Chicago"
	StyleIEEE    CitationStyle = "IEEE"
)

// ParseCitationStyle matches a style name case-insensitively.
func ParseCitationStyle(s string) (CitationStyle, error) {
	for _, style := range []CitationStyle{StyleAPA, StyleMLA, StyleChicago, StyleIEEE} {
		if strings.EqualFold(s, string(style)) {
			return style, nil
		}
	}
	return "", &ValidationError{
		Field:      "citation_style",
		Constraint: fmt.Sprintf("unknown style %q: use APA, MLA, Chicago, or IEEE", s),
	}
}

// IntPtr returns a pointer to n. Handy for optional page numbers.
func IntPtr(n int) *int {
	return &n
}
