package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
)

var (
	validSources    = []string{contexts.SourceClaude, contexts.SourcePlanner, contexts.SourceUser, contexts.SourceSystem}
	validTypes      = []string{contexts.FeedbackImprovement, contexts.FeedbackIssue, contexts.FeedbackSuggestion, contexts.FeedbackValidation}
	validPhases     = []string{contexts.FeedbackPhasePlanning, contexts.FeedbackPhaseExecution}
	validPriorities = []string{"low", "medium", "high"}
)

// AddFeedbackTool handles add_feedback.
type AddFeedbackTool struct {
	store ContextStore
}

// NewAddFeedbackTool creates an AddFeedbackTool.
func NewAddFeedbackTool(store ContextStore) *AddFeedbackTool {
	return &AddFeedbackTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *AddFeedbackTool) Definition() mcp.Tool {
	return mcp.NewTool("add_feedback",
		mcp.WithDescription(
			"Attach feedback to a project context. Unresolved planning feedback "+
				"is included in the next generate_plan_with_gemini prompt.",
		),
		mcp.WithString("contextId",
			mcp.Required(),
			mcp.Description("Project context ID"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The feedback text"),
		),
		mcp.WithString("source",
			mcp.Description("Who gave the feedback"),
			mcp.Enum(validSources...),
		),
		mcp.WithString("type",
			mcp.Description("Kind of feedback"),
			mcp.Enum(validTypes...),
		),
		mcp.WithString("phase",
			mcp.Description("Phase the feedback applies to"),
			mcp.Enum(validPhases...),
		),
		mcp.WithString("priority",
			mcp.Description("Feedback priority"),
			mcp.Enum(validPriorities...),
		),
	)
}

type feedbackResult struct {
	Success    bool   `json:"success"`
	ContextID  string `json:"contextId"`
	FeedbackID string `json:"feedbackId"`
}

// Handle appends the feedback item.
func (t *AddFeedbackTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := argString(req, "contextId")
	content := argString(req, "content")
	if id == "" {
		return errorResult("'contextId' is required"), nil
	}
	if content == "" {
		return errorResult("'content' is required"), nil
	}

	item := contexts.FeedbackItem{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedAt: timeNow().UTC(),
	}
	var err error
	if item.Source, err = oneOf(req, "source", contexts.SourceUser, validSources); err != nil {
		return errorResult(err.Error()), nil
	}
	if item.Type, err = oneOf(req, "type", contexts.FeedbackSuggestion, validTypes); err != nil {
		return errorResult(err.Error()), nil
	}
	if item.Phase, err = oneOf(req, "phase", contexts.FeedbackPhasePlanning, validPhases); err != nil {
		return errorResult(err.Error()), nil
	}
	if item.Priority, err = oneOf(req, "priority", "medium", validPriorities); err != nil {
		return errorResult(err.Error()), nil
	}

	if _, err := t.store.AddFeedback(ctx, id, item); err != nil {
		if errors.Is(err, contexts.ErrNotFound) {
			return errorResultf("Context %s not found", id), nil
		}
		return errorResultf("adding feedback: %v", err), nil
	}
	return jsonResult(feedbackResult{Success: true, ContextID: id, FeedbackID: item.ID})
}

// oneOf returns the named argument, def when absent, or an error when the
// value is not in allowed.
func oneOf(req mcp.CallToolRequest, name, def string, allowed []string) (string, error) {
	v := argString(req, name)
	if v == "" {
		return def, nil
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q: must be one of %v", name, v, allowed)
}
