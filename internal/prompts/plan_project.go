// Package prompts implements the MCP prompts of the planning server.
//
// Prompts are user-triggered workflows that tell the assistant which tools
// to call and in what order. The assistant calls tools on its own; a
// prompt is started by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// PlanProjectPrompt handles the plan-project prompt: create a context,
// generate a plan and render it.
type PlanProjectPrompt struct{}

// NewPlanProjectPrompt creates a PlanProjectPrompt.
func NewPlanProjectPrompt() *PlanProjectPrompt {
	return &PlanProjectPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlanProjectPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("plan-project",
		mcp.WithPromptDescription(
			"Plan a new project with Gemini: capture requirements, pull library docs, "+
				"generate a structured implementation plan and show it as a checklist.",
		),
		mcp.WithArgument("project_name",
			mcp.ArgumentDescription("Name of your project"),
		),
	)
}

// Handle processes the plan-project prompt request.
func (p *PlanProjectPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectName := "my-project"
	if name, ok := req.Params.Arguments["project_name"]; ok && name != "" {
		projectName = name
	}

	text := fmt.Sprintf(
		"I want to plan a new project called %q.\n\n"+
			"1. Ask me for the requirements and any constraints, then call `create_project_context`.\n"+
			"2. Ask which libraries or frameworks I want to use. Pass them as `libraries`, "+
			"or pass my description as `librariesPrompt`.\n"+
			"3. Call `generate_plan_with_gemini` with the new contextId.\n"+
			"4. Call `render_plan_checklist` and show me the checklist.\n"+
			"5. Summarize the main risks and alternatives from the plan and ask whether "+
			"I want to refine it. Record my answers with `add_feedback` (phase: planning) "+
			"before generating again.",
		projectName,
	)

	return &mcp.GetPromptResult{
		Description: "Plan project " + projectName,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}
