// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/contentforge/internal/llm"
	"github.com/pdiddy/contentforge/pkg/types"
)

const goodPlan = `{
  "title": "Remote Work in 2025",
  "executive_summary_needed": true,
  "overall_strategy": "Evidence first, then recommendations.",
  "key_points": ["productivity", "retention"],
  "sections": [
    {"title": "Introduction", "description": "Frame the topic.", "research_queries": ["remote work trends"], "word_count_target": 200},
    {"title": "Findings", "description": "Summarize the data.", "research_queries": ["remote productivity study", "  "], "word_count_target": 600},
    {"title": "Conclusion", "description": "Wrap up.", "research_queries": [], "word_count_target": 200}
  ]
}`

type recorder struct {
	req  llm.Request
	text string
}

func (r *recorder) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	r.req = req
	return llm.Response{Text: r.text, TokensUsed: 42}, nil
}

func TestPlanSuccess(t *testing.T) {
	gen := &recorder{text: "```json\n" + goodPlan + "\n```"}
	p := NewPlanner(gen, zaptest.NewLogger(t))

	res, err := p.Plan(context.Background(), "remote work impact", types.ContentReport, 2000)
	require.NoError(t, err)

	assert.Equal(t, 42, res.TokensUsed)
	assert.Equal(t, "Remote Work in 2025", res.Plan.Title)
	assert.True(t, res.Plan.ExecutiveSummaryNeeded)
	require.Len(t, res.Plan.Sections, 3)
	assert.Equal(t, 2000, res.Plan.TotalWords())
	assert.Equal(t, []int{400, 1200, 400}, []int{
		res.Plan.Sections[0].WordCountTarget,
		res.Plan.Sections[1].WordCountTarget,
		res.Plan.Sections[2].WordCountTarget,
	})
	assert.Equal(t, []string{"remote productivity study"}, res.Plan.Sections[1].ResearchQueries)
	assert.Empty(t, res.Plan.Sections[2].ResearchQueries)

	// Request shape.
	assert.InDelta(t, planningTemperature, gen.req.Temperature, 1e-9)
	require.Len(t, gen.req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, gen.req.Messages[0].Role)
	assert.Contains(t, gen.req.Messages[0].Content, `"overall_strategy"`)
	assert.Contains(t, gen.req.Messages[1].Content, "remote work impact")
	assert.Contains(t, gen.req.Messages[1].Content, "Target Length: 2000 words")
	assert.Contains(t, gen.req.Messages[1].Content, "For a REPORT:")
}

func TestPlanBareJSON(t *testing.T) {
	p := NewPlanner(&recorder{text: goodPlan}, nil)
	res, err := p.Plan(context.Background(), "remote work impact", types.ContentArticle, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Plan.TotalWords())
}

func TestPlanSummaryFlagDefaultsToTrue(t *testing.T) {
	tests := []struct {
		name string
		flag string
		want bool
	}{
		{"omitted", ``, true},
		{"explicit false", `"executive_summary_needed": false,`, false},
		{"explicit true", `"executive_summary_needed": true,`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := `{"title":"T",` + tt.flag + `"overall_strategy":"s","sections":[{"title":"A","description":"d"}]}`
			res, err := NewPlanner(&recorder{text: text}, nil).Plan(context.Background(), "remote work impact", types.ContentReport, 500)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Plan.ExecutiveSummaryNeeded)
		})
	}
}

func TestPlanMalformed(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field string
	}{
		{"not json", "I cannot help with that.", "plan"},
		{"missing sections", `{"title": "T", "overall_strategy": "s"}`, "plan"},
		{"empty sections", `{"title": "T", "overall_strategy": "s", "sections": []}`, "sections"},
		{"empty title", `{"title": "", "overall_strategy": "s", "sections": [{"title": "A", "description": "d"}]}`, "title"},
		{"blank title", `{"title": "   ", "overall_strategy": "s", "sections": [{"title": "A", "description": "d"}]}`, "title"},
		{"blank section title", `{"title": "T", "overall_strategy": "s", "sections": [{"title": " ", "description": "d"}]}`, "sections.0.title"},
		{"negative target", `{"title": "T", "overall_strategy": "s", "sections": [{"title": "A", "description": "d", "word_count_target": -5}]}`, "sections.0.word_count_target"},
		{"wrong type", `{"title": "T", "overall_strategy": "s", "sections": [{"title": "A", "description": "d", "word_count_target": "many"}]}`, "sections.0.word_count_target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(&recorder{text: tt.text}, nil)
			_, err := p.Plan(context.Background(), "a valid topic", types.ContentReport, 1000)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPlan)

			var ve *types.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.NotEmpty(t, ve.Constraint)
		})
	}
}

func TestPlanCollaboratorErrorIsNotMalformed(t *testing.T) {
	down := &types.CollaboratorError{Service: "openai", Op: "generate", Kind: types.KindTransient, Err: errors.New("503")}
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{}, down
	})
	_, err := NewPlanner(gen, nil).Plan(context.Background(), "a valid topic", types.ContentReport, 1000)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformedPlan))
	assert.True(t, types.IsTransient(err))
}

func TestPlanRejectsBadInput(t *testing.T) {
	called := false
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (llm.Response, error) {
		called = true
		return llm.Response{}, nil
	})
	p := NewPlanner(gen, nil)

	var ve *types.ValidationError
	_, err := p.Plan(context.Background(), "  ", types.ContentReport, 1000)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "topic", ve.Field)

	_, err = p.Plan(context.Background(), "topic", types.ContentReport, 0)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "max_words", ve.Field)
	assert.False(t, called)
}

func TestAllocateWords(t *testing.T) {
	sections := func(targets ...int) []types.PlannedSection {
		out := make([]types.PlannedSection, len(targets))
		for i, w := range targets {
			out[i] = types.PlannedSection{Title: "s", WordCountTarget: w}
		}
		return out
	}
	targets := func(ss []types.PlannedSection) []int {
		out := make([]int, len(ss))
		for i, s := range ss {
			out[i] = s.WordCountTarget
		}
		return out
	}

	tests := []struct {
		name  string
		in    []int
		total int
		want  []int
	}{
		{"already exact", []int{500, 500}, 1000, []int{500, 500}},
		{"scale up", []int{100, 300}, 2000, []int{500, 1500}},
		{"even split with remainder", []int{1, 1, 1}, 1000, []int{334, 333, 333}},
		{"missing targets use default", []int{0, 300}, 600, []int{300, 300}},
		{"largest remainder wins", []int{10, 20, 30}, 100, []int{17, 33, 50}},
		{"zero total", []int{100, 100}, 0, []int{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sections(tt.in...)
			got := AllocateWords(in, tt.total)
			assert.Equal(t, tt.want, targets(got))
			assert.Equal(t, tt.in, targets(in), "input must not be modified")
		})
	}
}

func TestAllocateWordsAlwaysSumsToTotal(t *testing.T) {
	for n := 1; n <= 12; n++ {
		in := make([]types.PlannedSection, n)
		for i := range in {
			in[i].WordCountTarget = (i*37)%250 + 1
		}
		for _, total := range []int{100, 777, 2000, 9999} {
			sum := 0
			for _, s := range AllocateWords(in, total) {
				sum += s.WordCountTarget
			}
			assert.Equal(t, total, sum, "n=%d total=%d", n, total)
		}
	}
}

func TestGuidanceCoversEveryContentType(t *testing.T) {
	for _, ct := range types.ContentTypes {
		g := Guidance(ct)
		assert.NotEqual(t, defaultGuidance, g, "content type %s", ct)
		assert.True(t, strings.Contains(strings.ToUpper(g), "FOR "), "content type %s", ct)
	}
	assert.Equal(t, defaultGuidance, Guidance("haiku"))
}

func TestSchemaCompiles(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)
	assert.NoError(t, s.Validate([]byte(goodPlan)))
}
