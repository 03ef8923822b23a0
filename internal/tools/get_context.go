package tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
)

// GetContextTool handles get_project_context.
type GetContextTool struct {
	store ContextStore
}

// NewGetContextTool creates a GetContextTool.
func NewGetContextTool(store ContextStore) *GetContextTool {
	return &GetContextTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *GetContextTool) Definition() mcp.Tool {
	return mcp.NewTool("get_project_context",
		mcp.WithDescription("Return the full stored planning context, including every planning and execution session"),
		mcp.WithString("contextId",
			mcp.Required(),
			mcp.Description("Project context ID"),
		),
	)
}

// Handle returns the context as JSON.
func (t *GetContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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
	return jsonResult(c)
}

// ListContextsTool handles list_project_contexts.
type ListContextsTool struct {
	store ContextStore
}

// NewListContextsTool creates a ListContextsTool.
func NewListContextsTool(store ContextStore) *ListContextsTool {
	return &ListContextsTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *ListContextsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_project_contexts",
		mcp.WithDescription("List stored project contexts, most recently updated first"),
	)
}

type listResult struct {
	Success  bool               `json:"success"`
	Contexts []contexts.Summary `json:"contexts"`
}

// Handle lists summaries.
func (t *ListContextsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := t.store.List(ctx)
	if err != nil {
		return errorResultf("listing contexts: %v", err), nil
	}
	if list == nil {
		list = []contexts.Summary{}
	}
	return jsonResult(listResult{Success: true, Contexts: list})
}
