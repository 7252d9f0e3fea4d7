// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report assembles drafted sections into a finished document: it
// merges section outcomes, writes an executive summary, runs the editing
// pass, and appends the reference list.
package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/internal/citation"
	"github.com/pdiddy/contentforge/internal/llm"
	"github.com/pdiddy/contentforge/internal/pipeline"
	"github.com/pdiddy/contentforge/internal/rag"
	"github.com/pdiddy/contentforge/pkg/types"
)

const (
	// SummaryInputChars bounds the section text handed to the summarizer.
	SummaryInputChars = 6000

	// SummaryMaxWords caps the executive summary.
	SummaryMaxWords = 150

	summaryTemperature   = 0.5
	editingTemperature   = 0.3
	factCheckTemperature = 0.2

	agentName = "editor"
)

// Assembler turns section outcomes into a finished report. It is the single
// writer of the report it is given.
type Assembler struct {
	gen       llm.Generator
	factCheck bool
	inline    bool
	noRefs    bool
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithFactCheck enables the fact-checking pass after editing.
func WithFactCheck(on bool) Option { return func(a *Assembler) { a.factCheck = on } }

// WithInlineCitations adds inline markers to sections whose draft cites no
// context block.
func WithInlineCitations(on bool) Option { return func(a *Assembler) { a.inline = on } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(a *Assembler) { a.logger = l } }

// NewAssembler creates an Assembler.
func NewAssembler(gen llm.Generator, opts ...Option) *Assembler {
	a := &Assembler{gen: gen, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithoutReferences returns a copy of a that leaves the reference list off
// the document. Citations are still collected on the report.
func (a *Assembler) WithoutReferences() *Assembler {
	c := *a
	c.noRefs = true
	return &c
}

// MergeSummary counts what Merge did.
type MergeSummary struct {
	Added     int
	Failed    int
	Citations int
}

// Merge folds outcomes into r in planned order. Every outcome's steps are
// recorded; successful sections are added and their citations registered.
// A section rejected by report validation counts as failed.
func (a *Assembler) Merge(r *types.Report, outcomes []pipeline.Outcome) MergeSummary {
	reg := citation.NewRegister()
	reg.Add(r.Citations...)

	var sum MergeSummary
	for _, o := range outcomes {
		for _, st := range o.Steps {
			r.AddAgentStep(st)
		}
		if o.State != pipeline.StateDone {
			sum.Failed++
			continue
		}
		section := o.Section
		if a.inline && section.Metadata["cited_blocks"] == "0" {
			section.Content = citation.InsertInline(section.Content, section.Citations, r.CitationStyle)
		}
		if err := r.AddSection(section); err != nil {
			sum.Failed++
			r.AddAgentStep(types.AgentStep{
				Agent:        agentName,
				Kind:         types.StepDrafting,
				InputSummary: section.Title,
				Timestamp:    a.now().UTC(),
				Error:        err.Error(),
			})
			a.logger.Warn("section rejected", zap.String("section", section.Title), zap.Error(err))
			continue
		}
		sum.Added++
		reg.Add(section.Citations...)
	}
	r.Citations = reg.Citations()
	sum.Citations = len(r.Citations)
	return sum
}

// Summarize writes the executive summary from the section bodies, bounded
// to SummaryInputChars. A failure is recorded as a step and returned.
func (a *Assembler) Summarize(ctx context.Context, r *types.Report) error {
	start := a.now()
	body := truncateChars(sectionBodies(r), SummaryInputChars)
	prompt, err := render(summaryPromptTmpl, struct {
		Title    string
		MaxWords int
		Content  string
	}{r.Title, SummaryMaxWords, body})
	if err != nil {
		return fmt.Errorf("rendering summary prompt: %w", err)
	}

	resp, err := a.gen.Generate(ctx, llm.Request{
		Messages:    []llm.Message{llm.System(summarySystem), llm.User(prompt)},
		Temperature: summaryTemperature,
		MaxTokens:   rag.MaxTokensForWords(SummaryMaxWords),
	})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = errors.New("generator returned an empty summary")
	}
	if err != nil {
		a.record(r, types.StepSummary, start, fmt.Sprintf("%d chars", len(body)), "", nil, err)
		return fmt.Errorf("executive summary: %w", err)
	}

	r.ExecutiveSummary = strings.TrimSpace(resp.Text)
	tokens := tokensOf(resp)
	a.record(r, types.StepSummary, start, fmt.Sprintf("%d chars", len(body)),
		fmt.Sprintf("%d words", len(strings.Fields(r.ExecutiveSummary))), &tokens, nil)
	return nil
}

// Compose concatenates the title, the executive summary when present, and
// every section in order as Markdown.
func Compose(r *types.Report) string {
	var sb strings.Builder
	sb.WriteString("# " + r.Title + "\n")
	if r.ExecutiveSummary != "" {
		sb.WriteString("\n## Executive Summary\n\n")
		sb.WriteString(r.ExecutiveSummary)
		sb.WriteString("\n")
	}
	for _, s := range r.Sections {
		sb.WriteString("\n## " + s.Title + "\n\n")
		sb.WriteString(s.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Edit polishes draft under the refine-only, citation-preserving contract.
// A failure is recorded as a step and returned.
func (a *Assembler) Edit(ctx context.Context, r *types.Report, draft string) (string, error) {
	start := a.now()
	prompt, err := render(editPromptTmpl, struct {
		ContentType types.ContentType
		Tone        string
		Content     string
	}{r.ContentType, Tone(r.ContentType), draft})
	if err != nil {
		return "", fmt.Errorf("rendering editing prompt: %w", err)
	}

	resp, err := a.gen.Generate(ctx, llm.Request{
		Messages:    []llm.Message{llm.System(editingSystem), llm.User(prompt)},
		Temperature: editingTemperature,
		MaxTokens:   editMaxTokens(draft),
	})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = errors.New("generator returned an empty edit")
	}
	input := fmt.Sprintf("%d words, %d citations", len(strings.Fields(draft)), len(r.Citations))
	if err != nil {
		a.record(r, types.StepEditing, start, input, "", nil, err)
		return "", fmt.Errorf("editing: %w", err)
	}

	edited := strings.TrimSpace(resp.Text)
	tokens := tokensOf(resp)
	a.record(r, types.StepEditing, start, input, fmt.Sprintf("%d words", len(strings.Fields(edited))), &tokens, nil)
	return edited, nil
}

// FactCheckResult is the outcome of a fact-checking pass.
type FactCheckResult struct {
	Verified bool
	Issues   []string
}

// FactCheck asks the generator whether every claim in content is supported
// by the report's citations. It never fails: errors become an issue and a
// failed step.
func (a *Assembler) FactCheck(ctx context.Context, r *types.Report, content string) FactCheckResult {
	start := a.now()
	input := fmt.Sprintf("%d chars, %d sources", len(content), len(r.Citations))
	prompt, err := render(factCheckPromptTmpl, struct {
		Content   string
		Citations []types.Citation
	}{content, r.Citations})
	if err == nil {
		var resp llm.Response
		resp, err = a.gen.Generate(ctx, llm.Request{
			Messages:    []llm.Message{llm.System(factCheckSystem), llm.User(prompt)},
			Temperature: factCheckTemperature,
		})
		if err == nil {
			res := FactCheckResult{Verified: verdictVerified(resp.Text)}
			if !res.Verified {
				res.Issues = []string{strings.TrimSpace(resp.Text)}
			}
			tokens := tokensOf(resp)
			a.record(r, types.StepFactChecking, start, input,
				fmt.Sprintf("verified=%t issues=%d", res.Verified, len(res.Issues)), &tokens, nil)
			return res
		}
	}
	a.record(r, types.StepFactChecking, start, input, "", nil, err)
	a.logger.Warn("fact-check failed", zap.Error(err))
	return FactCheckResult{Issues: []string{"fact-check error: " + err.Error()}}
}

// verdictVerified reports whether a fact-check reply opens with the VERIFIED
// verdict. Replies such as "NOT VERIFIED" or "unverified" do not count.
func verdictVerified(reply string) bool {
	v := strings.TrimLeft(strings.ToUpper(strings.TrimSpace(reply)), "*_#> \t\"'")
	return strings.HasPrefix(v, "VERIFIED")
}

// Assemble runs the full sequence on a generating report: merge outcomes,
// summarize when wanted, compose, edit, and append the reference list. The
// report ends completed, or degraded when a section, the summary, or the
// edit failed. It returns an error only when no section survived.
func (a *Assembler) Assemble(ctx context.Context, r *types.Report, wantSummary bool, outcomes []pipeline.Outcome) error {
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	merged := a.Merge(r, outcomes)
	if merged.Added == 0 {
		_ = r.Transition(types.StatusFailed)
		return errors.New("every section failed")
	}
	degraded := merged.Failed > 0
	if merged.Failed > 0 {
		r.Metadata["failed_sections"] = strconv.Itoa(merged.Failed)
	}

	if wantSummary {
		if err := a.Summarize(ctx, r); err != nil {
			a.logger.Warn("continuing without executive summary", zap.Error(err))
			degraded = true
		}
	}

	draft := Compose(r)
	document, err := a.Edit(ctx, r, draft)
	if err != nil {
		a.logger.Warn("using unedited draft", zap.Error(err))
		document = draft
		degraded = true
	}
	if refs := citation.RenderReferenceList(r.Citations, r.CitationStyle); refs != "" && !a.noRefs {
		document += "\n\n" + refs
	}

	if a.factCheck {
		fc := a.FactCheck(ctx, r, document)
		r.Metadata["fact_check_verified"] = strconv.FormatBool(fc.Verified)
		if len(fc.Issues) > 0 {
			r.Metadata["fact_check_issues"] = strings.Join(fc.Issues, "\n")
		}
	}

	r.Document = document
	status := types.StatusCompleted
	if degraded {
		status = types.StatusDegraded
	}
	if err := r.Transition(status); err != nil {
		return err
	}
	a.logger.Info("report assembled",
		zap.String("report", r.ID),
		zap.String("status", string(r.Status)),
		zap.Int("sections", len(r.Sections)),
		zap.Int("citations", len(r.Citations)),
		zap.Int("tokens", r.TotalTokensUsed),
	)
	return nil
}

func (a *Assembler) record(r *types.Report, kind types.StepKind, start time.Time, input, output string, tokens *int, err error) {
	step := types.AgentStep{
		Agent:         agentName,
		Kind:          kind,
		InputSummary:  input,
		OutputSummary: output,
		Duration:      a.now().Sub(start),
		TokensUsed:    tokens,
		Timestamp:     a.now().UTC(),
	}
	if err != nil {
		step.Error = err.Error()
	}
	r.AddAgentStep(step)
}

func sectionBodies(r *types.Report) string {
	parts := make([]string, len(r.Sections))
	for i, s := range r.Sections {
		parts[i] = "## " + s.Title + "\n\n" + s.Content
	}
	return strings.Join(parts, "\n\n")
}

// truncateChars cuts s to at most n bytes without splitting a rune.
func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// editMaxTokens sizes the edit completion to roughly the input length with
// headroom.
func editMaxTokens(draft string) int {
	n := rag.MaxTokensForWords(len(strings.Fields(draft)))
	if n < 256 {
		n = 256
	}
	return n
}

func tokensOf(resp llm.Response) int {
	if resp.TokensUsed > 0 {
		return resp.TokensUsed
	}
	return rag.EstimateTokens(resp.Text)
}
