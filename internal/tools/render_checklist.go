package tools

import (
	"context"
	"errors"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
	"github.com/HendryAvila/gemini-planner/internal/plan"
)

// RenderChecklistTool handles render_plan_checklist.
type RenderChecklistTool struct {
	store ContextStore
}

// NewRenderChecklistTool creates a RenderChecklistTool.
func NewRenderChecklistTool(store ContextStore) *RenderChecklistTool {
	return &RenderChecklistTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *RenderChecklistTool) Definition() mcp.Tool {
	return mcp.NewTool("render_plan_checklist",
		mcp.WithDescription(
			"Render a stored plan as a plain-text checklist. "+
				"Defaults to the most recent planning session.",
		),
		mcp.WithString("contextId",
			mcp.Required(),
			mcp.Description("Project context ID"),
		),
		mcp.WithNumber("planIndex",
			mcp.Description("Zero-based planning session index. Defaults to the latest."),
		),
	)
}

// Handle renders the selected plan.
func (t *RenderChecklistTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := argString(req, "contextId")
	if id == "" {
		return errorResult("'contextId' is required"), nil
	}

	c, err := t.store.Get(ctx, id)
	if errors.Is(err, contexts.ErrNotFound) {
		return errorResultf("Context %s not found", id), nil
	}
	if err != nil {
		return errorResultf("loading context %s: %v", id, err), nil
	}

	if len(c.PlanningHistory) == 0 {
		return errorResultf("Context %s has no planning sessions", id), nil
	}

	index := len(c.PlanningHistory) - 1
	if raw, ok := req.GetArguments()["planIndex"]; ok && raw != nil {
		n, err := cast.ToFloat64E(raw)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return errorResultf("'planIndex' must be an integer, got %v", raw), nil
		}
		index = int(n)
	}
	if index < 0 || index >= len(c.PlanningHistory) {
		return errorResultf("Planning session %d not found in context %s", index, id), nil
	}

	return mcp.NewToolResultText(plan.RenderChecklist(c.PlanningHistory[index].Output.Plan)), nil
}
