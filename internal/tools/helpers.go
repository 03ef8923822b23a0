// Package tools implements the MCP tool handlers of the planning server.
//
// Each tool is a struct holding its dependencies, with a Definition for
// registration and a Handle method matching mcp-go's handler signature.
// One file per tool. Every handler reports failure as a result flagged
// IsError whose text is {"success": false, "error": "..."}; handlers
// never return a Go error for a failed call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
	"github.com/HendryAvila/gemini-planner/internal/libraries"
)

// ContextStore is the subset of *contexts.Store the tools use.
type ContextStore interface {
	Create(ctx context.Context, projectName, requirements, constraints string) (*contexts.PlanningContext, error)
	Get(ctx context.Context, id string) (*contexts.PlanningContext, error)
	Update(ctx context.Context, id string, patch contexts.Patch) (*contexts.PlanningContext, error)
	AddPlanningSession(ctx context.Context, id string, session contexts.PlanningSession) (*contexts.PlanningContext, error)
	AddExecutionSession(ctx context.Context, id string, session contexts.ExecutionSession) (*contexts.PlanningContext, error)
	AddFeedback(ctx context.Context, id string, item contexts.FeedbackItem) (*contexts.PlanningContext, error)
	List(ctx context.Context) ([]contexts.Summary, error)
}

// Planner produces a planning session without persisting it.
type Planner interface {
	GeneratePlan(ctx context.Context, contextID, requirements, constraints string, prior *contexts.PlanningContext) (contexts.PlanningSession, error)
}

// DocsClient is the documentation service surface the tools use.
type DocsClient interface {
	ResolveLibraryID(ctx context.Context, name string) (string, error)
	GetLibraryDocs(ctx context.Context, id, topic string, tokens int) (string, error)
	ListTools(ctx context.Context) (*mcp.ListToolsResult, error)
}

// LibraryResolver extracts library specs from free-form text.
type LibraryResolver interface {
	ResolveFromPrompt(ctx context.Context, text string) ([]libraries.Spec, error)
}

// ConnectionTester describes and tests the generator.
type ConnectionTester interface {
	TestConnection(ctx context.Context) bool
	Model() string
	CLIPath() string
	HasAPIKey() bool
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// errorResult is the failure envelope every tool returns.
func errorResult(msg string) *mcp.CallToolResult {
	data, err := json.MarshalIndent(failure{Error: msg}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(msg)
	}
	return mcp.NewToolResultError(string(data))
}

func errorResultf(format string, args ...any) *mcp.CallToolResult {
	return errorResult(fmt.Sprintf(format, args...))
}

// argString returns a trimmed string argument, coercing scalars.
func argString(req mcp.CallToolRequest, name string) string {
	v, ok := req.GetArguments()[name]
	if !ok || v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// argList returns an array argument, or nil when absent or not an array.
func argList(req mcp.CallToolRequest, name string) []any {
	items, _ := req.GetArguments()[name].([]any)
	return items
}

// argStrings returns the string elements of an array argument.
func argStrings(req mcp.CallToolRequest, name string) []string {
	items := argList(req, name)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, err := cast.ToStringE(item); err == nil && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
