package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// CreateContextTool handles create_project_context.
type CreateContextTool struct {
	store ContextStore
}

// NewCreateContextTool creates a CreateContextTool.
func NewCreateContextTool(store ContextStore) *CreateContextTool {
	return &CreateContextTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *CreateContextTool) Definition() mcp.Tool {
	return mcp.NewTool("create_project_context",
		mcp.WithDescription("Create a new project planning context"),
		mcp.WithString("projectName",
			mcp.Required(),
			mcp.Description("Name of the project"),
		),
		mcp.WithString("requirements",
			mcp.Required(),
			mcp.Description("Project requirements"),
		),
		mcp.WithString("constraints",
			mcp.Description("Any constraints"),
		),
	)
}

type createResult struct {
	Success     bool   `json:"success"`
	ContextID   string `json:"contextId"`
	Message     string `json:"message"`
	ProjectName string `json:"projectName"`
}

// Handle creates the context.
func (t *CreateContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := argString(req, "projectName")
	requirements := argString(req, "requirements")
	constraints := argString(req, "constraints")

	if name == "" {
		return errorResult("'projectName' is required"), nil
	}
	if requirements == "" {
		return errorResult("'requirements' is required"), nil
	}

	c, err := t.store.Create(ctx, name, requirements, constraints)
	if err != nil {
		return errorResultf("creating context: %v", err), nil
	}
	return jsonResult(createResult{
		Success:     true,
		ContextID:   c.ID,
		Message:     fmt.Sprintf("Created project context: %s", c.ID),
		ProjectName: c.ProjectName,
	})
}
