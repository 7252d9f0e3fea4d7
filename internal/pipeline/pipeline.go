// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline researches and drafts planned sections. Each section runs
// independently through PLANNED → RESEARCHING → DRAFTING → DONE; a failure
// ends only that section.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/contentforge/internal/citation"
	"github.com/pdiddy/contentforge/internal/llm"
	"github.com/pdiddy/contentforge/internal/rag"
	"github.com/pdiddy/contentforge/pkg/types"
)

// State is the lifecycle position of one section.
type State int

const (
	StatePlanned State = iota
	StateResearching
	StateDrafting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePlanned:
		return "planned"
	case StateResearching:
		return "researching"
	case StateDrafting:
		return "drafting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Researcher assembles budgeted context for a set of queries. rag.Builder
// implements it.
type Researcher interface {
	BuildMulti(ctx context.Context, queries []string, totalTokens int) (string, []types.Citation, error)
}

// Job is one planned section with its budgets fixed before any work starts.
type Job struct {
	// Order is the planned position of the section.
	Order int

	Section     types.PlannedSection
	ContentType types.ContentType

	// Topic is the original request, given to the drafter for orientation.
	Topic string

	// ContextTokens is the research budget across all queries.
	ContextTokens int

	// MaxTokens caps the drafting completion.
	MaxTokens int
}

// Jobs turns a plan into jobs, computing every budget upfront.
func Jobs(plan types.ContentPlan, ct types.ContentType, topic string) []Job {
	jobs := make([]Job, len(plan.Sections))
	for i, s := range plan.Sections {
		jobs[i] = Job{
			Order:         i,
			Section:       s,
			ContentType:   ct,
			Topic:         topic,
			ContextTokens: rag.ContextBudgetForWords(s.WordCountTarget),
			MaxTokens:     rag.MaxTokensForWords(s.WordCountTarget),
		}
	}
	return jobs
}

// Outcome is the result of running one job. Section is meaningful only when
// State is StateDone; Err only when State is StateFailed.
type Outcome struct {
	Order   int
	State   State
	Section types.ContentSection
	Steps   []types.AgentStep
	Err     error
}

// Observer receives a callback when a section reaches a terminal state.
type Observer interface {
	SectionFinished(state State, d time.Duration)
}

// Runner executes jobs against a researcher and a generator.
type Runner struct {
	research    Researcher
	gen         llm.Generator
	maxWords    int
	concurrency int
	logger      *zap.Logger
	observer    Observer
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxSectionWords caps each section body. Zero uses
// types.DefaultMaxSectionWords.
func WithMaxSectionWords(n int) Option { return func(r *Runner) { r.maxWords = n } }

// WithConcurrency bounds how many sections run at once.
func WithConcurrency(n int) Option { return func(r *Runner) { r.concurrency = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithObserver registers an Observer.
func WithObserver(o Observer) Option { return func(r *Runner) { r.observer = o } }

// NewRunner creates a Runner.
func NewRunner(research Researcher, gen llm.Generator, opts ...Option) *Runner {
	r := &Runner{
		research:    research,
		gen:         gen,
		maxWords:    types.DefaultMaxSectionWords,
		concurrency: 4,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxWords <= 0 {
		r.maxWords = types.DefaultMaxSectionWords
	}
	if r.concurrency <= 0 {
		r.concurrency = 1
	}
	return r
}

// RunAll runs every job on a bounded pool and returns outcomes in job order.
// Each worker writes only its own slot.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range jobs {
		i := i
		g.Go(func() error {
			outcomes[i] = r.RunSection(ctx, jobs[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// AllFailed reports whether no outcome reached StateDone.
func AllFailed(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.State == StateDone {
			return false
		}
	}
	return true
}

// RunSection researches and drafts one section. Research is skipped when
// the section has no queries. Any error ends the section in StateFailed with
// a failed AgentStep describing it.
func (r *Runner) RunSection(ctx context.Context, job Job) Outcome {
	start := r.now()
	out := Outcome{Order: job.Order, State: StatePlanned}
	title := job.Section.Title
	log := r.logger.With(zap.String("section", title), zap.Int("order", job.Order))

	fail := func(agent string, kind types.StepKind, stepStart time.Time, input string, err error) Outcome {
		out.Steps = append(out.Steps, types.AgentStep{
			Agent:        agent,
			Kind:         kind,
			InputSummary: input,
			Duration:     r.now().Sub(stepStart),
			Timestamp:    r.now().UTC(),
			Error:        err.Error(),
		})
		out.State = StateFailed
		out.Err = fmt.Errorf("section %q: %w", title, err)
		log.Warn("section failed", zap.String("stage", string(kind)), zap.Error(err))
		r.finish(out.State, start)
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail("pipeline", types.StepResearch, start, title, err)
	}

	var (
		background string
		citations  []types.Citation
	)
	if queries := job.Section.ResearchQueries; len(queries) > 0 {
		out.State = StateResearching
		stepStart := r.now()
		input := strings.Join(queries, "; ")
		text, cs, err := r.research.BuildMulti(ctx, queries, job.ContextTokens)
		if err != nil {
			return fail("researcher", types.StepResearch, stepStart, input, err)
		}
		background = text
		citations = validCitations(cs, log)
		out.Steps = append(out.Steps, types.AgentStep{
			Agent:         "researcher",
			Kind:          types.StepResearch,
			InputSummary:  input,
			OutputSummary: fmt.Sprintf("%d chars of context, %d citations", len(background), len(citations)),
			Duration:      r.now().Sub(stepStart),
			Timestamp:     r.now().UTC(),
		})
	}

	out.State = StateDrafting
	stepStart := r.now()
	body, tokens, err := r.draft(ctx, job, background)
	if err != nil {
		return fail("drafter", types.StepDrafting, stepStart, title, err)
	}

	meta := map[string]string{
		"word_count_target": strconv.Itoa(job.Section.WordCountTarget),
		"context_chars":     strconv.Itoa(len(background)),
	}
	if background != "" {
		markers := citation.Markers(body, background)
		meta["cited_blocks"] = strconv.Itoa(len(markers.Cited))
		if markers.HasDangling() {
			meta["dangling_markers"] = joinInts(markers.Dangling)
			log.Warn("draft cites missing context blocks", zap.Ints("markers", markers.Dangling))
		}
	}
	if n := len(strings.Fields(body)); n > r.maxWords {
		body = truncateWords(body, r.maxWords)
		meta["truncated"] = "true"
		log.Info("section truncated", zap.Int("words", n), zap.Int("limit", r.maxWords))
	}

	out.Steps = append(out.Steps, types.AgentStep{
		Agent:         "drafter",
		Kind:          types.StepDrafting,
		InputSummary:  fmt.Sprintf("%s (~%d words)", title, job.Section.WordCountTarget),
		OutputSummary: fmt.Sprintf("%d words", len(strings.Fields(body))),
		Duration:      r.now().Sub(stepStart),
		TokensUsed:    &tokens,
		Timestamp:     r.now().UTC(),
	})
	out.Section = types.ContentSection{
		Title:     title,
		Content:   body,
		Order:     job.Order,
		Citations: citations,
		Metadata:  meta,
	}
	out.State = StateDone
	log.Info("section drafted", zap.Int("words", len(strings.Fields(body))), zap.Int("citations", len(citations)))
	r.finish(out.State, start)
	return out
}

func (r *Runner) draft(ctx context.Context, job Job, background string) (string, int, error) {
	prompt, err := renderDraftPrompt(job, background != "")
	if err != nil {
		return "", 0, fmt.Errorf("rendering drafting prompt: %w", err)
	}
	msgs := []llm.Message{llm.System(SystemInstruction(job.ContentType))}
	if background != "" {
		msgs = append(msgs, llm.System(fmt.Sprintf(contextPreamble, background)))
	}
	msgs = append(msgs, llm.User(prompt))

	// Temperature is left to the configured backend default.
	resp, err := r.gen.Generate(ctx, llm.Request{
		Messages:  msgs,
		MaxTokens: job.MaxTokens,
	})
	if err != nil {
		return "", 0, err
	}
	body := strings.TrimSpace(resp.Text)
	if body == "" {
		return "", 0, errors.New("generator returned an empty draft")
	}
	tokens := resp.TokensUsed
	if tokens == 0 {
		tokens = rag.EstimateTokens(body)
	}
	return body, tokens, nil
}

func (r *Runner) finish(state State, start time.Time) {
	if r.observer != nil {
		r.observer.SectionFinished(state, r.now().Sub(start))
	}
}

// validCitations drops citations that would fail report validation, keeping
// first-seen order and one entry per identity.
func validCitations(cs []types.Citation, log *zap.Logger) []types.Citation {
	out := make([]types.Citation, 0, len(cs))
	for _, c := range citation.Deduplicate(cs) {
		if err := c.Validate(); err != nil {
			log.Debug("dropping citation", zap.String("source", c.Source), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out
}

// truncateWords keeps the first n words of s with their original spacing.
func truncateWords(s string, n int) string {
	words := 0
	inWord := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			if inWord && words == n {
				return s[:i]
			}
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			words++
		}
	}
	return s
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
