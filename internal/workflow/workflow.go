// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow runs one content request end to end: plan, research and
// draft every section, assemble, and report a structured result.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdiddy/contentforge/internal/pipeline"
	"github.com/pdiddy/contentforge/internal/plan"
	"github.com/pdiddy/contentforge/internal/publish"
	"github.com/pdiddy/contentforge/internal/report"
	"github.com/pdiddy/contentforge/pkg/types"
)

// Request limits.
const (
	MinPromptChars  = 10
	MaxPromptChars  = 2000
	MinWords        = 100
	MaxWords        = 10000
	DefaultMaxWords = 2000
	MaxTags         = 10
)

const failureMessage = "Content generation failed. Please try again."

// Request is a content generation request.
type Request struct {
	Prompt        string              `json:"prompt"`
	ContentType   types.ContentType   `json:"content_type,omitempty"`
	CitationStyle types.CitationStyle `json:"citation_format,omitempty"`

	// MaxWords is the target length. Zero uses DefaultMaxWords.
	MaxWords int `json:"max_words,omitempty"`

	// IncludeCitations appends the reference list. Nil means true.
	IncludeCitations *bool `json:"include_citations,omitempty"`

	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Normalize fills defaults and checks limits.
func (r *Request) Normalize() error {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if n := utf8.RuneCountInString(r.Prompt); n < MinPromptChars || n > MaxPromptChars {
		return &types.ValidationError{Field: "prompt", Constraint: fmt.Sprintf("must be %d to %d characters, got %d", MinPromptChars, MaxPromptChars, n)}
	}
	if r.ContentType == "" {
		r.ContentType = types.ContentReport
	}
	ct, err := types.ParseContentType(string(r.ContentType))
	if err != nil {
		return err
	}
	r.ContentType = ct
	if r.CitationStyle == "" {
		r.CitationStyle = types.StyleAPA
	}
	style, err := types.ParseCitationStyle(string(r.CitationStyle))
	if err != nil {
		return err
	}
	r.CitationStyle = style
	if r.MaxWords == 0 {
		r.MaxWords = DefaultMaxWords
	}
	if r.MaxWords < MinWords || r.MaxWords > MaxWords {
		return &types.ValidationError{Field: "max_words", Constraint: fmt.Sprintf("must be %d to %d, got %d", MinWords, MaxWords, r.MaxWords)}
	}
	if len(r.Tags) > MaxTags {
		return &types.ValidationError{Field: "tags", Constraint: fmt.Sprintf("at most %d allowed, got %d", MaxTags, len(r.Tags))}
	}
	return nil
}

func (r Request) citations() bool { return r.IncludeCitations == nil || *r.IncludeCitations }

// Result is what callers always receive. Report is nil when Success is false.
type Result struct {
	Success bool          `json:"success"`
	Report  *types.Report `json:"report,omitempty"`
	Error   string        `json:"error,omitempty"`
	Message string        `json:"message"`
}

// Planner produces a validated plan. plan.Planner implements it.
type Planner interface {
	Plan(ctx context.Context, topic string, ct types.ContentType, maxWords int) (plan.Result, error)
}

// Runner drafts planned sections. pipeline.Runner implements it.
type Runner interface {
	RunAll(ctx context.Context, jobs []pipeline.Job) []pipeline.Outcome
}

// Observer is told how every request ended.
type Observer interface {
	RequestFinished(status types.ContentStatus, d time.Duration, tokens int)
}

// Service wires the stages together. Collaborators are injected; it holds
// no per-request state.
type Service struct {
	planner   Planner
	runner    Runner
	assembler *report.Assembler
	cfg       types.GenerationConfig
	publisher publish.Publisher
	logger    *zap.Logger
	observer  Observer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// WithPublisher enables Publish.
func WithPublisher(p publish.Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithObserver registers an Observer.
func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }

// NewService creates a Service.
func NewService(planner Planner, runner Runner, assembler *report.Assembler, cfg types.GenerationConfig, opts ...Option) *Service {
	s := &Service{planner: planner, runner: runner, assembler: assembler, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs the full workflow. It never returns an error: failures are
// described in the Result.
func (s *Service) Generate(ctx context.Context, req Request) Result {
	start := time.Now()
	if err := req.Normalize(); err != nil {
		s.finish(types.StatusFailed, start, 0)
		return Result{Error: err.Error(), Message: "Invalid request."}
	}
	log := s.logger.With(zap.String("content_type", string(req.ContentType)), zap.Int("max_words", req.MaxWords))
	log.Info("content generation request received", zap.String("prompt", truncate(req.Prompt, 100)))

	r := types.NewReport("", req.ContentType, req.Prompt, req.CitationStyle)
	r.Tags = append([]string(nil), req.Tags...)
	for k, v := range req.Metadata {
		r.Metadata[k] = v
	}
	r.SectionWordLimit = s.cfg.MaxSectionWords
	if err := r.Transition(types.StatusGenerating); err != nil {
		return Result{Error: err.Error(), Message: failureMessage}
	}

	planStart := time.Now()
	planned, err := s.planner.Plan(ctx, req.Prompt, req.ContentType, req.MaxWords)
	step := types.AgentStep{
		Agent:        "planner",
		Kind:         types.StepPlanning,
		InputSummary: truncate(req.Prompt, 100),
		Duration:     time.Since(planStart),
	}
	if planned.TokensUsed > 0 {
		step.TokensUsed = &planned.TokensUsed
	}
	if err != nil {
		step.Error = err.Error()
		r.AddAgentStep(step)
		_ = r.Transition(types.StatusFailed)
		log.Error("planning failed", zap.Error(err))
		s.finish(r.Status, start, r.TotalTokensUsed)
		return Result{Error: fmt.Sprintf("planning failed: %v", err), Message: failureMessage}
	}
	step.OutputSummary = fmt.Sprintf("%q with %d sections", planned.Plan.Title, len(planned.Plan.Sections))
	r.AddAgentStep(step)
	r.Title = planned.Plan.Title
	if planned.Plan.OverallStrategy != "" {
		r.Metadata["overall_strategy"] = planned.Plan.OverallStrategy
	}
	if len(planned.Plan.KeyPoints) > 0 {
		r.Metadata["key_points"] = strings.Join(planned.Plan.KeyPoints, "; ")
	}

	outcomes := s.runner.RunAll(ctx, pipeline.Jobs(planned.Plan, req.ContentType, req.Prompt))
	if pipeline.AllFailed(outcomes) {
		errs := make([]error, 0, len(outcomes))
		for _, o := range outcomes {
			errs = append(errs, o.Err)
		}
		err := errors.Join(errs...)
		for _, o := range outcomes {
			for _, st := range o.Steps {
				r.AddAgentStep(st)
			}
		}
		_ = r.Transition(types.StatusFailed)
		log.Error("every section failed", zap.Error(err))
		s.finish(r.Status, start, r.TotalTokensUsed)
		return Result{Error: fmt.Sprintf("every section failed: %v", err), Message: failureMessage}
	}

	assembler := s.assembler
	if !req.citations() {
		assembler = assembler.WithoutReferences()
	}
	if err := assembler.Assemble(ctx, r, planned.Plan.ExecutiveSummaryNeeded, outcomes); err != nil {
		log.Error("assembly failed", zap.Error(err))
		s.finish(r.Status, start, r.TotalTokensUsed)
		return Result{Error: err.Error(), Message: failureMessage}
	}
	r.GenerationTime = time.Since(start)

	msg := fmt.Sprintf("Successfully generated %d sections with %d citations", len(r.Sections), len(r.Citations))
	if r.Status == types.StatusDegraded {
		msg = fmt.Sprintf("Generated %d of %d sections with %d citations; %d steps failed",
			len(r.Sections), len(outcomes), len(r.Citations), len(r.FailedSteps()))
	}
	log.Info("content generation finished",
		zap.String("report", r.ID),
		zap.String("status", string(r.Status)),
		zap.Int("sections", len(r.Sections)),
		zap.Int("citations", len(r.Citations)),
		zap.Int("tokens", r.TotalTokensUsed),
		zap.Duration("elapsed", r.GenerationTime),
	)
	s.finish(r.Status, start, r.TotalTokensUsed)
	return Result{Success: true, Report: r, Message: msg}
}

func (s *Service) finish(status types.ContentStatus, start time.Time, tokens int) {
	if s.observer != nil {
		s.observer.RequestFinished(status, time.Since(start), tokens)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// ErrNoPublisher is returned by Publish when no publisher is configured.
var ErrNoPublisher = errors.New("no publisher configured")

// Publish delivers a finished report to dest.
func (s *Service) Publish(ctx context.Context, r *types.Report, dest publish.Destination) error {
	if s.publisher == nil {
		return ErrNoPublisher
	}
	if err := publish.Report(ctx, s.publisher, r, dest); err != nil {
		s.logger.Error("publishing failed", zap.String("report", r.ID), zap.Error(err))
		return err
	}
	s.logger.Info("report published",
		zap.String("report", r.ID),
		zap.String("document", r.SharePointURL),
		zap.String("message", r.TeamsMessageURL),
	)
	return nil
}
