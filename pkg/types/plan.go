// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// ContentType identifies the kind of document being generated. It drives
// planning guidance, drafting tone, and editing style.
type ContentType string

const (
	ContentReport        ContentType = "report"
	ContentSummary       ContentType = "summary"
	ContentArticle       ContentType = "article"
	ContentMarketingCopy ContentType = "marketing_copy"
	ContentEmail         ContentType = "email"
	ContentPresentation  ContentType = "presentation"
)

// ContentTypes lists every supported content type.
var ContentTypes = []ContentType{
	ContentReport, ContentSummary, ContentArticle,
	ContentMarketingCopy, ContentEmail, ContentPresentation,
}

// ParseContentType validates a content type name.
func ParseContentType(s string) (ContentType, error) {
	for _, ct := range ContentTypes {
		if strings.EqualFold(s, string(ct)) {
			return ct, nil
		}
	}
	return "", &ValidationError{
		Field:      "content_type",
		Constraint: fmt.Sprintf("unknown content type %q", s),
	}
}

// PlannedSection is one section of a content plan.
type PlannedSection struct {
	// Title is the section heading.
	Title string `json:"title" yaml:"title"`

	// Description says what the section should cover.
	Description string `json:"description" yaml:"description"`

	// ResearchQueries are the retrieval queries run before drafting. May be empty.
	ResearchQueries []string `json:"research_queries" yaml:"research_queries"`

	// WordCountTarget is the allocated word budget for the section.
	WordCountTarget int `json:"word_count_target" yaml:"word_count_target"`
}

// ContentPlan is the planning stage output. It is produced once per request
// and consumed immediately.
type ContentPlan struct {
	// Title is the document title.
	Title string `json:"title" yaml:"title"`

	// ExecutiveSummaryNeeded requests a summary ahead of the sections.
	ExecutiveSummaryNeeded bool `json:"executive_summary_needed" yaml:"executive_summary_needed"`

	// Sections are the planned sections in document order.
	Sections []PlannedSection `json:"sections" yaml:"sections"`

	// OverallStrategy describes the approach for the document.
	OverallStrategy string `json:"overall_strategy" yaml:"overall_strategy"`

	// KeyPoints are the main points the document must convey.
	KeyPoints []string `json:"key_points" yaml:"key_points"`
}

// TotalWords sums the section word targets.
func (p ContentPlan) TotalWords() int {
	total := 0
	for _, s := range p.Sections {
		total += s.WordCountTarget
	}
	return total
}
