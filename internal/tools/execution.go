package tools

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
)

// RecordExecutionTool handles record_execution_session.
type RecordExecutionTool struct {
	store ContextStore
}

// NewRecordExecutionTool creates a RecordExecutionTool.
func NewRecordExecutionTool(store ContextStore) *RecordExecutionTool {
	return &RecordExecutionTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *RecordExecutionTool) Definition() mcp.Tool {
	return mcp.NewTool("record_execution_session",
		mcp.WithDescription(
			"Record the outcome of carrying out a plan. A success rate above 0.8 "+
				"marks the context complete; anything else moves it to reviewing.",
		),
		mcp.WithString("contextId",
			mcp.Required(),
			mcp.Description("Project context ID"),
		),
		mcp.WithString("planId",
			mcp.Required(),
			mcp.Description("ID of the planning session that was executed"),
		),
		mcp.WithString("output",
			mcp.Description("Raw output of the executing agent"),
		),
		mcp.WithArray("filesCreated",
			mcp.Description("Paths created"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("filesModified",
			mcp.Description("Paths modified"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("successRate",
			mcp.Required(),
			mcp.Description("Fraction of the plan completed, between 0 and 1"),
			mcp.Min(0),
			mcp.Max(1),
		),
		mcp.WithString("completionStatus",
			mcp.Description("complete, partial or failed"),
			mcp.Enum(contexts.CompletionComplete, contexts.CompletionPartial, contexts.CompletionFailed),
		),
		mcp.WithArray("issues",
			mcp.Description("Problems found: objects with description, severity, file and line"),
		),
	)
}

type executionResult struct {
	Success      bool           `json:"success"`
	ContextID    string         `json:"contextId"`
	SessionID    string         `json:"sessionId"`
	CurrentPhase contexts.Phase `json:"currentPhase"`
}

// Handle appends the execution session.
func (t *RecordExecutionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := argString(req, "contextId")
	planID := argString(req, "planId")
	if id == "" {
		return errorResult("'contextId' is required"), nil
	}
	if planID == "" {
		return errorResult("'planId' is required"), nil
	}

	raw, ok := req.GetArguments()["successRate"]
	if !ok || raw == nil {
		return errorResult("'successRate' is required"), nil
	}
	rate, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(rate) || rate < 0 || rate > 1 {
		return errorResultf("'successRate' must be a number between 0 and 1, got %v", raw), nil
	}

	status, err := oneOf(req, "completionStatus", defaultCompletion(rate),
		[]string{contexts.CompletionComplete, contexts.CompletionPartial, contexts.CompletionFailed})
	if err != nil {
		return errorResult(err.Error()), nil
	}

	session := contexts.ExecutionSession{
		ID:               uuid.NewString(),
		Timestamp:        timeNow().UTC(),
		PlanID:           planID,
		ClaudeCodeOutput: argString(req, "output"),
		FilesCreated:     argStrings(req, "filesCreated"),
		FilesModified:    argStrings(req, "filesModified"),
		Issues:           decodeIssues(argList(req, "issues")),
		SuccessRate:      rate,
		CompletionStatus: status,
	}

	c, err := t.store.AddExecutionSession(ctx, id, session)
	if err != nil {
		if errors.Is(err, contexts.ErrNotFound) {
			return errorResultf("Context %s not found", id), nil
		}
		return errorResultf("recording execution session: %v", err), nil
	}
	return jsonResult(executionResult{
		Success:      true,
		ContextID:    id,
		SessionID:    session.ID,
		CurrentPhase: c.CurrentPhase,
	})
}

func defaultCompletion(rate float64) string {
	switch {
	case rate >= 1:
		return contexts.CompletionComplete
	case rate <= 0:
		return contexts.CompletionFailed
	default:
		return contexts.CompletionPartial
	}
}

func decodeIssues(items []any) []contexts.Issue {
	out := make([]contexts.Issue, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		issue := contexts.Issue{
			Description: cast.ToString(m["description"]),
			Severity:    cast.ToString(m["severity"]),
			File:        cast.ToString(m["file"]),
			Line:        cast.ToInt(m["line"]),
		}
		if issue.Description == "" {
			continue
		}
		if issue.Severity == "" {
			issue.Severity = "medium"
		}
		out = append(out, issue)
	}
	return out
}
