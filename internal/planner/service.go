// Package planner turns requirements into a PlanningSession by prompting
// the generator, repairing its output and pinning dependency versions.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
	"github.com/HendryAvila/gemini-planner/internal/logging"
	"github.com/HendryAvila/gemini-planner/internal/plan"
	"github.com/HendryAvila/gemini-planner/internal/repair"
)

// DefaultModel is recorded on sessions when no model is configured.
const DefaultModel = "gemini-pro"

// DefaultReasoning fills a plan response that gives no reasoning.
const DefaultReasoning = "Plan generated using Gemini CLI"

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// Generator runs one prompt through the external model.
type Generator interface {
	Invoke(ctx context.Context, prompt string, env map[string]string) (string, error)
}

// VersionResolver pins dependency versions for one plan.
type VersionResolver interface {
	ResolveLatestVersions(ctx context.Context, deps []plan.Dependency) []plan.Dependency
}

// ParseError means no JSON object could be recovered from the generator
// output. Raw is the complete output.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse generator response as a plan: %v\nraw response:\n%s", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Service generates plans. It never persists them.
type Service struct {
	gen      Generator
	versions func() VersionResolver
	model    string
	logger   *slog.Logger
}

// Options configures a Service.
type Options struct {
	// Versions returns a resolver per plan. Nil disables version pinning.
	Versions func() VersionResolver
	// Model is recorded on each session; DefaultModel when empty.
	Model  string
	Logger *slog.Logger
}

// New creates a Service.
func New(gen Generator, opts Options) *Service {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Service{
		gen:      gen,
		versions: opts.Versions,
		model:    model,
		logger:   logging.OrDefault(opts.Logger),
	}
}

// GeneratePlan prompts the generator and returns the resulting session.
// prior, when non-nil, supplies the previous attempts and feedback.
func (s *Service) GeneratePlan(ctx context.Context, contextID, requirements, constraints string, prior *contexts.PlanningContext) (contexts.PlanningSession, error) {
	prompt := BuildPrompt(requirements, constraints, prior)

	s.logger.Info("generating plan", "context", contextID, "model", s.model)
	out, err := s.gen.Invoke(ctx, prompt, nil)
	if err != nil {
		return contexts.PlanningSession{}, fmt.Errorf("generating plan: %w", err)
	}

	p, extras, err := ParseResponse(out)
	if err != nil {
		return contexts.PlanningSession{}, err
	}

	if g := plan.AnalyzeSteps(p.ImplementationSteps); !g.Clean() {
		s.logger.Warn("plan step graph has anomalies",
			"context", contextID,
			"missing", len(g.Missing),
			"duplicates", g.Duplicates,
			"cycles", len(g.Cycles))
	}

	if len(p.Dependencies) > 0 && s.versions != nil {
		p.Dependencies = s.versions().ResolveLatestVersions(ctx, p.Dependencies)
	}

	now := timeNow().UTC()
	session := contexts.PlanningSession{
		ID:        fmt.Sprintf("gemini-plan-%d", now.UnixMilli()),
		Timestamp: now,
		Model:     s.model,
		Input: contexts.SessionInput{
			Requirements: requirements,
			Constraints:  constraints,
		},
		Output: contexts.SessionOutput{
			Plan:         p,
			Reasoning:    extras.Reasoning,
			Alternatives: extras.Alternatives,
			Risks:        extras.Risks,
		},
	}
	if prior != nil {
		session.Input.PreviousFeedback = prior.UnresolvedPlanningFeedback()
	}
	if session.Output.Reasoning == "" {
		session.Output.Reasoning = DefaultReasoning
	}
	if session.Output.Alternatives == nil {
		session.Output.Alternatives = []string{}
	}
	if session.Output.Risks == nil {
		session.Output.Risks = []plan.Risk{}
	}
	return session, nil
}

// ParseResponse recovers a plan from raw generator output: direct parse,
// then a fenced block, then the outermost brace-delimited substring.
func ParseResponse(raw string) (plan.DetailedPlan, plan.Extras, error) {
	doc, err := repair.ParseObject(raw)
	if err != nil {
		return plan.DetailedPlan{}, plan.Extras{}, &ParseError{Raw: raw, Err: err}
	}
	p, extras, err := plan.DecodeObject(doc)
	if err != nil {
		return plan.DetailedPlan{}, plan.Extras{}, &ParseError{Raw: raw, Err: err}
	}
	p.Normalize()
	return p, extras, nil
}
