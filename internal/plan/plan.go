// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan decomposes a content request into an ordered set of sections
// with word budgets and research queries.
package plan

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/internal/llm"
	"github.com/pdiddy/contentforge/pkg/types"
)

//go:embed plan_schema.json
var planSchemaJSON string

// DefaultSectionWords is the word target assumed for a section the model
// left without one.
const DefaultSectionWords = 300

// planningTemperature keeps structured output stable.
const planningTemperature = 0.3

// ErrMalformedPlan is returned when the generated plan does not match the
// expected shape. It always wraps a *types.ValidationError.
var ErrMalformedPlan = errors.New("malformed plan")

var (
	compileOnce sync.Once
	planSchema  *llm.Schema
	compileErr  error
)

// Schema returns the compiled plan schema.
func Schema() (*llm.Schema, error) {
	compileOnce.Do(func() {
		planSchema, compileErr = llm.CompileSchema("plan_schema.json", planSchemaJSON)
	})
	return planSchema, compileErr
}

// Result is a validated plan and the tokens spent producing it.
type Result struct {
	Plan       types.ContentPlan
	TokensUsed int
}

// Planner produces content plans through a generation collaborator. It owns
// no retry policy; wrap the generator in llm.Retrying for that.
type Planner struct {
	gen    llm.Generator
	logger *zap.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(gen llm.Generator, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{gen: gen, logger: logger}
}

// Plan asks the generator for a plan for topic, validates it against the
// plan schema and semantic rules, and rescales section word targets to sum
// to maxWords. Shape problems fail with ErrMalformedPlan.
func (p *Planner) Plan(ctx context.Context, topic string, ct types.ContentType, maxWords int) (Result, error) {
	if strings.TrimSpace(topic) == "" {
		return Result{}, &types.ValidationError{Field: "topic", Constraint: "must not be empty"}
	}
	if maxWords <= 0 {
		return Result{}, &types.ValidationError{Field: "max_words", Constraint: "must be positive"}
	}

	schema, err := Schema()
	if err != nil {
		return Result{}, err
	}
	system, err := renderSystemPrompt()
	if err != nil {
		return Result{}, fmt.Errorf("rendering system prompt: %w", err)
	}
	user, err := renderPlanningPrompt(topic, ct, maxWords)
	if err != nil {
		return Result{}, fmt.Errorf("rendering planning prompt: %w", err)
	}

	// A plan that omits executive_summary_needed still gets a summary.
	plan := types.ContentPlan{ExecutiveSummaryNeeded: true}
	resp, err := llm.GenerateStructured(ctx, p.gen, llm.Request{
		Messages:    []llm.Message{llm.System(system), llm.User(user)},
		Temperature: planningTemperature,
	}, schema, &plan)
	if err != nil {
		var pe *llm.ParseError
		if errors.As(err, &pe) {
			return Result{TokensUsed: resp.TokensUsed}, fmt.Errorf("%w: %w", ErrMalformedPlan, violation(pe))
		}
		return Result{}, fmt.Errorf("generating plan: %w", err)
	}

	if verr := Validate(&plan); verr != nil {
		return Result{TokensUsed: resp.TokensUsed}, fmt.Errorf("%w: %w", ErrMalformedPlan, verr)
	}
	plan.Sections = AllocateWords(plan.Sections, maxWords)

	p.logger.Info("content plan created",
		zap.String("title", plan.Title),
		zap.Int("sections", len(plan.Sections)),
		zap.Int("tokens", resp.TokensUsed),
	)
	return Result{Plan: plan, TokensUsed: resp.TokensUsed}, nil
}

// Validate applies the semantic rules the schema cannot express and
// normalizes query lists (trimmed, blanks dropped).
func Validate(plan *types.ContentPlan) *types.ValidationError {
	if strings.TrimSpace(plan.Title) == "" {
		return &types.ValidationError{Field: "title", Constraint: "must not be blank"}
	}
	if len(plan.Sections) == 0 {
		return &types.ValidationError{Field: "sections", Constraint: "must contain at least one section"}
	}
	for i := range plan.Sections {
		s := &plan.Sections[i]
		if strings.TrimSpace(s.Title) == "" {
			return &types.ValidationError{Field: fmt.Sprintf("sections.%d.title", i), Constraint: "must not be blank"}
		}
		if s.WordCountTarget < 0 {
			return &types.ValidationError{Field: fmt.Sprintf("sections.%d.word_count_target", i), Constraint: "must not be negative"}
		}
		queries := s.ResearchQueries[:0:0]
		for _, q := range s.ResearchQueries {
			if q = strings.TrimSpace(q); q != "" {
				queries = append(queries, q)
			}
		}
		s.ResearchQueries = queries
	}
	return nil
}

// violation turns a parse failure into a ValidationError naming the deepest
// schema location that failed.
func violation(pe *llm.ParseError) *types.ValidationError {
	var ve *jsonschema.ValidationError
	if errors.As(pe, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		field := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if field == "" {
			field = "plan"
		}
		return &types.ValidationError{Field: strings.ReplaceAll(field, "/", "."), Constraint: leaf.Message}
	}
	return &types.ValidationError{Field: "plan", Constraint: pe.Err.Error()}
}

// AllocateWords returns a copy of sections with word targets rescaled in
// proportion to the requested targets so they sum exactly to total. Missing
// targets count as DefaultSectionWords. Rounding leftovers go to the
// sections with the largest fractional parts, earliest first on ties.
func AllocateWords(sections []types.PlannedSection, total int) []types.PlannedSection {
	out := make([]types.PlannedSection, len(sections))
	copy(out, sections)
	if len(out) == 0 || total <= 0 {
		for i := range out {
			out[i].WordCountTarget = 0
		}
		return out
	}

	weights := make([]int, len(out))
	sum := 0
	for i, s := range out {
		w := s.WordCountTarget
		if w <= 0 {
			w = DefaultSectionWords
		}
		weights[i] = w
		sum += w
	}

	type share struct {
		idx  int
		frac int64
	}
	shares := make([]share, len(out))
	assigned := 0
	for i, w := range weights {
		num := int64(w) * int64(total)
		out[i].WordCountTarget = int(num / int64(sum))
		shares[i] = share{idx: i, frac: num % int64(sum)}
		assigned += out[i].WordCountTarget
	}

	sort.SliceStable(shares, func(a, b int) bool { return shares[a].frac > shares[b].frac })
	for k := 0; assigned < total; k++ {
		out[shares[k%len(shares)].idx].WordCountTarget++
		assigned++
	}
	return out
}
