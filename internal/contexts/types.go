// Package contexts persists the planning context of each project: its
// requirements, the append-only histories of planning and execution
// sessions, and feedback.
//
// The package is split by responsibility:
//   - types.go: the persisted data model
//   - state.go: the phase state machine
//   - store.go: cached, serialized access plus change notification
//   - file.go / sqlite.go: durable backends
//   - watch.go: cache invalidation from on-disk changes
package contexts

import (
	"time"

	"github.com/HendryAvila/gemini-planner/internal/plan"
)

// Phase is where a project stands in its planning journey.
type Phase string

const (
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseReviewing Phase = "reviewing"
	PhaseComplete  Phase = "complete"
)

// PlanningContext is the root record for one project.
type PlanningContext struct {
	ID               string             `json:"id"`
	ProjectName      string             `json:"projectName"`
	Requirements     string             `json:"requirements"`
	Constraints      string             `json:"constraints,omitempty"`
	CurrentPhase     Phase              `json:"currentPhase"`
	PlanningHistory  []PlanningSession  `json:"planningHistory"`
	ExecutionHistory []ExecutionSession `json:"executionHistory"`
	Feedback         []FeedbackItem     `json:"feedback"`
	Artifacts        []CodeArtifact     `json:"artifacts"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// PlanningSession records one planning attempt. It is never modified after
// being appended.
type PlanningSession struct {
	ID           string        `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Model        string        `json:"model"`
	Input        SessionInput  `json:"input"`
	Output       SessionOutput `json:"output"`
	QualityScore *float64      `json:"quality_score,omitempty"`
}

// SessionInput snapshots what the prompt was built from.
type SessionInput struct {
	Requirements     string   `json:"requirements"`
	Constraints      string   `json:"constraints"`
	PreviousFeedback []string `json:"previousFeedback,omitempty"`
}

// SessionOutput is the generator's answer.
type SessionOutput struct {
	Plan         plan.DetailedPlan `json:"plan"`
	Reasoning    string            `json:"reasoning"`
	Alternatives []string          `json:"alternatives"`
	Risks        []plan.Risk       `json:"risks"`
}

// Completion statuses reported for an execution session.
const (
	CompletionComplete = "complete"
	CompletionPartial  = "partial"
	CompletionFailed   = "failed"
)

// ExecutionSession records one attempt at carrying out a plan.
type ExecutionSession struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	PlanID           string    `json:"plan_id"`
	ClaudeCodeOutput string    `json:"claude_code_output"`
	FilesCreated     []string  `json:"files_created"`
	FilesModified    []string  `json:"files_modified"`
	Issues           []Issue   `json:"issues"`
	// SuccessRate is a fraction in [0, 1].
	SuccessRate      float64 `json:"success_rate"`
	CompletionStatus string  `json:"completion_status"`
}

// Issue is a problem found while executing a plan.
type Issue struct {
	Description string `json:"description"`
	Severity    string `json:"severity"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line,omitempty"`
}

// Feedback sources, types and phases.
const (
	SourceClaude  = "claude"
	SourcePlanner = "planner"
	SourceUser    = "user"
	SourceSystem  = "system"

	FeedbackImprovement = "improvement"
	FeedbackIssue       = "issue"
	FeedbackSuggestion  = "suggestion"
	FeedbackValidation  = "validation"

	FeedbackPhasePlanning  = "planning"
	FeedbackPhaseExecution = "execution"
)

// FeedbackItem is a note attached to a context. Resolved is owned by
// external collaborators; this package only reads it.
type FeedbackItem struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Type      string    `json:"type"`
	Phase     string    `json:"phase"`
	Content   string    `json:"content"`
	Priority  string    `json:"priority"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}

// CodeArtifact is stored and returned but never interpreted.
type CodeArtifact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the listing view of a context.
type Summary struct {
	ID           string    `json:"id"`
	ProjectName  string    `json:"projectName"`
	CurrentPhase Phase     `json:"currentPhase"`
	Plans        int       `json:"plans"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Summarize returns the listing view of c.
func (c *PlanningContext) Summarize() Summary {
	return Summary{
		ID:           c.ID,
		ProjectName:  c.ProjectName,
		CurrentPhase: c.CurrentPhase,
		Plans:        len(c.PlanningHistory),
		UpdatedAt:    c.UpdatedAt,
	}
}

// UnresolvedPlanningFeedback returns the content of unresolved feedback
// tagged for the planning phase, in insertion order.
func (c *PlanningContext) UnresolvedPlanningFeedback() []string {
	var out []string
	for _, f := range c.Feedback {
		if !f.Resolved && f.Phase == FeedbackPhasePlanning {
			out = append(out, f.Content)
		}
	}
	return out
}

// normalize replaces nil histories with empty ones so records always
// serialize with [] rather than null.
func (c *PlanningContext) normalize() {
	if c.PlanningHistory == nil {
		c.PlanningHistory = []PlanningSession{}
	}
	if c.ExecutionHistory == nil {
		c.ExecutionHistory = []ExecutionSession{}
	}
	if c.Feedback == nil {
		c.Feedback = []FeedbackItem{}
	}
	if c.Artifacts == nil {
		c.Artifacts = []CodeArtifact{}
	}
}
