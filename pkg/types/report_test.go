// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func section(title string, order int, words int) ContentSection {
	return ContentSection{Title: title, Order: order, Content: strings.TrimSpace(strings.Repeat("word ", words))}
}

func TestReportLifecycle(t *testing.T) {
	r := NewReport("Cloud Cost Review", ContentReport, "Review our cloud spend", StyleAPA)
	assert.Equal(t, StatusDraft, r.Status)
	assert.NotEmpty(t, r.ID)

	err := r.Transition(StatusPublished)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Field)

	require.NoError(t, r.Transition(StatusGenerating))
	require.NoError(t, r.Transition(StatusDegraded))
	assert.Error(t, r.Transition(StatusGenerating), "no backward moves")

	require.NoError(t, r.MarkPublished("https://sp/doc", "https://teams/msg"))
	assert.Equal(t, StatusPublished, r.Status)
	require.NotNil(t, r.PublishedAt)
	assert.Equal(t, "https://sp/doc", r.SharePointURL)
	assert.Error(t, r.MarkPublished("again", ""))
}

func TestAddSectionOrdersAndRenumbers(t *testing.T) {
	r := NewReport("T", ContentReport, "prompt text", StyleAPA)
	for _, s := range []ContentSection{section("third", 7, 3), section("first", 0, 1), section("second", 3, 2)} {
		require.NoError(t, r.AddSection(s))
	}
	var titles []string
	for i, s := range r.Sections {
		titles = append(titles, s.Title)
		assert.Equal(t, i, s.Order)
		assert.NotEmpty(t, s.ID)
	}
	assert.Equal(t, []string{"first", "second", "third"}, titles)
	assert.Equal(t, 6, r.WordCount())
}

func TestAddSectionRejectsInvalid(t *testing.T) {
	r := NewReport("T", ContentReport, "prompt text", StyleAPA)
	r.SectionWordLimit = 5

	tests := []struct {
		name  string
		s     ContentSection
		field string
	}{
		{"empty title", section(" ", 0, 1), "section.title"},
		{"negative order", section("a", -1, 1), "section.order"},
		{"over the word limit", section("a", 0, 6), "section.content"},
		{"bad citation score", ContentSection{Title: "a", Citations: []Citation{{Text: "x", Source: "s", RelevanceScore: 1.5}}}, "citation.relevance_score"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *ValidationError
			require.ErrorAs(t, r.AddSection(tt.s), &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, r.Sections)
}

func TestAddSectionCopiesCitations(t *testing.T) {
	r := NewReport("T", ContentReport, "prompt text", StyleAPA)
	c := Citation{Text: "x", Source: "Doc", PageNumber: IntPtr(5)}
	s := section("a", 0, 1)
	s.Citations = []Citation{c}
	require.NoError(t, r.AddSection(s))

	*c.PageNumber = 9
	assert.Equal(t, 5, *r.Sections[0].Citations[0].PageNumber)
}

func TestAgentStepTokenAccounting(t *testing.T) {
	r := NewReport("T", ContentReport, "prompt text", StyleAPA)
	r.AddAgentStep(AgentStep{Agent: "planner", Kind: StepPlanning, TokensUsed: IntPtr(120)})
	r.AddAgentStep(AgentStep{Agent: "researcher", Kind: StepResearch})
	r.AddAgentStep(AgentStep{Agent: "drafter", Kind: StepDrafting, TokensUsed: IntPtr(30), Error: "timeout"})

	assert.Equal(t, 150, r.TotalTokensUsed)
	require.Len(t, r.FailedSteps(), 1)
	assert.Equal(t, "drafter", r.FailedSteps()[0].Agent)
	for _, s := range r.AgentSteps {
		assert.False(t, s.Timestamp.IsZero())
	}
}

func TestCitationKey(t *testing.T) {
	a := Citation{Source: "DocA", PageNumber: IntPtr(5)}
	b := Citation{Source: "DocA", PageNumber: IntPtr(5), Text: "other"}
	c := Citation{Source: "DocA"}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestParseNames(t *testing.T) {
	style, err := ParseCitationStyle("chicago")
	require.NoError(t, err)
	assert.Equal(t, StyleChicago, style)
	_, err = ParseCitationStyle("Harvard")
	assert.Error(t, err)

	ct, err := ParseContentType("Marketing_Copy")
	require.NoError(t, err)
	assert.Equal(t, ContentMarketingCopy, ct)
	_, err = ParseContentType("poem")
	assert.Error(t, err)
}

func TestKindForStatus(t *testing.T) {
	tests := map[int]ErrorKind{
		401: KindAuth, 403: KindAuth,
		408: KindTransient, 429: KindTransient, 500: KindTransient, 503: KindTransient,
		400: KindPermanent, 404: KindPermanent,
	}
	for code, want := range tests {
		assert.Equal(t, want, KindForStatus(code), code)
	}

	wrapped := fmt.Errorf("drafting: %w", &CollaboratorError{Service: "openai", Op: "generate", Kind: KindTransient, Err: errors.New("overloaded")})
	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsTransient(errors.New("plain")))
}
