// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSectionWords bounds a section body when no limit is configured.
const DefaultMaxSectionWords = 5000

// ContentStatus is the lifecycle state of a report.
type ContentStatus string

const (
	StatusDraft      ContentStatus = "draft"
	StatusGenerating ContentStatus = "generating"
	StatusCompleted  ContentStatus = "completed"
	StatusDegraded   ContentStatus = "degraded"
	StatusFailed     ContentStatus = "failed"
	StatusPublished  ContentStatus = "published"
)

// statusTransitions lists the states reachable from each state.
var statusTransitions = map[ContentStatus][]ContentStatus{
	StatusDraft:      {StatusGenerating, StatusFailed},
	StatusGenerating: {StatusCompleted, StatusDegraded, StatusFailed},
	StatusCompleted:  {StatusPublished},
	StatusDegraded:   {StatusPublished},
}

// StepKind classifies an agent step.
type StepKind string

const (
	StepPlanning     StepKind = "planning"
	StepResearch     StepKind = "research"
	StepDrafting     StepKind = "drafting"
	StepSummary      StepKind = "summary"
	StepEditing      StepKind = "editing"
	StepFactChecking StepKind = "fact_checking"
	StepPublishing   StepKind = "publishing"
)

// AgentStep records one unit of work performed while generating a report.
type AgentStep struct {
	// Agent names the component that did the work (e.g. "planner", "drafter").
	Agent string `json:"agent" yaml:"agent"`

	// Kind classifies the step.
	Kind StepKind `json:"kind" yaml:"kind"`

	// InputSummary briefly describes what the step consumed.
	InputSummary string `json:"input_summary" yaml:"input_summary"`

	// OutputSummary briefly describes what the step produced.
	OutputSummary string `json:"output_summary" yaml:"output_summary"`

	// Duration is the wall-clock time spent.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// TokensUsed is the token cost, when known.
	TokensUsed *int `json:"tokens_used,omitempty" yaml:"tokens_used,omitempty"`

	// Timestamp is when the step finished.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Error is set when the step failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the step carries an error.
func (s AgentStep) Failed() bool { return s.Error != "" }

// ContentSection is one generated section of a report.
type ContentSection struct {
	// ID uniquely identifies the section.
	ID string `json:"id" yaml:"id"`

	// Title is the section heading.
	Title string `json:"title" yaml:"title"`

	// Content is the section body in Markdown.
	Content string `json:"content" yaml:"content"`

	// Order is the zero-based position within the report.
	Order int `json:"order" yaml:"order"`

	// Citations are the section-local citations, copies of the report-level ones.
	Citations []Citation `json:"citations" yaml:"citations"`

	// Metadata carries free-form annotations (e.g. "truncated", "word_count_target").
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// WordCount counts whitespace-separated words in the body.
func (s ContentSection) WordCount() int {
	return len(strings.Fields(s.Content))
}

// Validate checks the section against a body word limit.
func (s ContentSection) Validate(maxWords int) error {
	if strings.TrimSpace(s.Title) == "" {
		return &ValidationError{Field: "section.title", Constraint: "must not be empty"}
	}
	if s.Order < 0 {
		return &ValidationError{Field: "section.order", Constraint: "must be non-negative"}
	}
	if maxWords > 0 && s.WordCount() > maxWords {
		return &ValidationError{
			Field:      "section.content",
			Constraint: fmt.Sprintf("has %d words, limit is %d", s.WordCount(), maxWords),
		}
	}
	for i, c := range s.Citations {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("section %q citation %d: %w", s.Title, i, err)
		}
	}
	return nil
}

// Report is the aggregate root of one generation request.
type Report struct {
	ID            string        `json:"id" yaml:"id"`
	Title         string        `json:"title" yaml:"title"`
	ContentType   ContentType   `json:"content_type" yaml:"content_type"`
	Status        ContentStatus `json:"status" yaml:"status"`
	Prompt        string        `json:"prompt" yaml:"prompt"`
	CitationStyle CitationStyle `json:"citation_style" yaml:"citation_style"`

	// Sections are kept sorted by Order and numbered contiguously from zero.
	Sections []ContentSection `json:"sections" yaml:"sections"`

	// ExecutiveSummary is empty when no summary was requested or it failed.
	ExecutiveSummary string `json:"executive_summary,omitempty" yaml:"executive_summary,omitempty"`

	// Citations is the deduplicated report-level citation list.
	Citations []Citation `json:"citations" yaml:"citations"`

	// AgentSteps is append-only.
	AgentSteps []AgentStep `json:"agent_steps" yaml:"agent_steps"`

	// TotalTokensUsed always equals the sum of non-nil step token counts.
	TotalTokensUsed int `json:"total_tokens_used" yaml:"total_tokens_used"`

	// GenerationTime is the wall-clock time of the whole workflow.
	GenerationTime time.Duration `json:"generation_time" yaml:"generation_time"`

	// Document is the assembled, edited text with the reference list appended.
	Document string `json:"document" yaml:"document"`

	// SectionWordLimit overrides DefaultMaxSectionWords when positive.
	SectionWordLimit int `json:"section_word_limit,omitempty" yaml:"section_word_limit,omitempty"`

	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	SharePointURL   string `json:"sharepoint_url,omitempty" yaml:"sharepoint_url,omitempty"`
	TeamsMessageURL string `json:"teams_message_url,omitempty" yaml:"teams_message_url,omitempty"`

	Tags     []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewReport creates a draft report with a fresh ID.
func NewReport(title string, ct ContentType, prompt string, style CitationStyle) *Report {
	now := time.Now().UTC()
	return &Report{
		ID:            uuid.NewString(),
		Title:         title,
		ContentType:   ct,
		Status:        StatusDraft,
		Prompt:        prompt,
		CitationStyle: style,
		CreatedAt:     now,
		UpdatedAt:     now,
		Metadata:      map[string]string{},
	}
}

func (r *Report) sectionLimit() int {
	if r.SectionWordLimit > 0 {
		return r.SectionWordLimit
	}
	return DefaultMaxSectionWords
}

func (r *Report) touch() {
	r.UpdatedAt = time.Now().UTC()
}

// AddSection validates and inserts a section, then re-sorts by Order and
// renumbers contiguously. Sections with equal Order keep insertion order.
func (r *Report) AddSection(s ContentSection) error {
	if err := s.Validate(r.sectionLimit()); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Citations = CloneCitations(s.Citations)
	r.Sections = append(r.Sections, s)
	sort.SliceStable(r.Sections, func(i, j int) bool {
		return r.Sections[i].Order < r.Sections[j].Order
	})
	for i := range r.Sections {
		r.Sections[i].Order = i
	}
	r.touch()
	return nil
}

// AddAgentStep appends a step and adds its tokens to the running total.
func (r *Report) AddAgentStep(step AgentStep) {
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now().UTC()
	}
	r.AgentSteps = append(r.AgentSteps, step)
	if step.TokensUsed != nil {
		r.TotalTokensUsed += *step.TokensUsed
	}
	r.touch()
}

// FailedSteps returns the steps that carry an error.
func (r *Report) FailedSteps() []AgentStep {
	var out []AgentStep
	for _, s := range r.AgentSteps {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

// Transition moves the report to a new status. Transitions not listed in
// the lifecycle, including any backward move, return an error.
func (r *Report) Transition(to ContentStatus) error {
	for _, allowed := range statusTransitions[r.Status] {
		if allowed == to {
			r.Status = to
			r.touch()
			return nil
		}
	}
	return &ValidationError{
		Field:      "status",
		Constraint: fmt.Sprintf("cannot move from %s to %s", r.Status, to),
	}
}

// MarkPublished records publication URLs and moves the report to published.
func (r *Report) MarkPublished(sharePointURL, teamsMessageURL string) error {
	if err := r.Transition(StatusPublished); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.PublishedAt = &now
	r.SharePointURL = sharePointURL
	r.TeamsMessageURL = teamsMessageURL
	return nil
}

// WordCount sums section body words, plus the executive summary.
func (r *Report) WordCount() int {
	total := len(strings.Fields(r.ExecutiveSummary))
	for _, s := range r.Sections {
		total += s.WordCount()
	}
	return total
}

// TotalCitations is the number of distinct report-level citations.
func (r *Report) TotalCitations() int {
	return len(r.Citations)
}
