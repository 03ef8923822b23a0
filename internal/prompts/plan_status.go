package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// PlanStatusPrompt handles the plan-status prompt.
type PlanStatusPrompt struct{}

// NewPlanStatusPrompt creates a PlanStatusPrompt.
func NewPlanStatusPrompt() *PlanStatusPrompt {
	return &PlanStatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlanStatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("plan-status",
		mcp.WithPromptDescription(
			"Show where each planned project stands: phase, number of plans "+
				"and open planning feedback.",
		),
	)
}

// Handle processes the plan-status prompt request.
func (p *PlanStatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Planning status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `list_project_contexts` to see my planned projects.\n\n" +
						"Then:\n" +
						"1. Show each project with its phase and number of plans\n" +
						"2. For the most recent one, call `get_project_context` and list any unresolved planning feedback\n" +
						"3. Tell me what to do next: generate a plan, execute it, or record the execution result",
				),
			},
		},
	}, nil
}
