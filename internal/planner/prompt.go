package planner

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
)

const planSchema = `

Please provide a detailed implementation plan in the following JSON format:

{
  "overview": "High-level project description and chosen approach",
  "architecture": [
    {
      "component": "component name",
      "purpose": "what this component does",
      "technologies": ["tech1", "tech2"],
      "interfaces": ["API endpoints", "data flows"],
      "dependencies": ["other components this depends on"]
    }
  ],
  "implementation_steps": [
    {
      "id": "step-1",
      "phase": "setup|foundation|core|features|integration|testing|deployment",
      "description": "Detailed description of what to implement",
      "files_to_create": ["src/components/App.js", "src/api/auth.js"],
      "files_to_modify": ["package.json", "README.md"],
      "dependencies": ["step-0"],
      "estimated_complexity": "low|medium|high",
      "estimated_time": "2 hours",
      "validation_criteria": ["tests pass", "feature works as expected"],
      "potential_issues": ["common problems that might arise"]
    }
  ],
  "file_structure": {
    "src/": {
      "components/": {},
      "services/": {},
      "utils/": {}
    },
    "tests/": {},
    "docs/": {}
  },
  "dependencies": [
    {
      "name": "react",
      "version": "^18.2.0",
      "purpose": "Frontend framework",
      "type": "runtime"
    }
  ],
  "testing_strategy": "Detailed testing approach",
  "deployment_notes": "How to deploy this application",
  "reasoning": "Why you chose this approach",
  "alternatives": ["Alternative approach 1", "Alternative approach 2"],
  "risks": [
    {
      "risk": "description of potential risk",
      "probability": "low|medium|high",
      "impact": "low|medium|high",
      "mitigation": "how to prevent or handle this risk"
    }
  ]
}

IMPORTANT: Respond ONLY with valid JSON. No markdown formatting.`

// BuildPrompt assembles the planning prompt. requirements and constraints
// are embedded verbatim. When prior has planning history each attempt is
// recapped with its model, overview, step count and the unresolved
// planning feedback.
func BuildPrompt(requirements, constraints string, prior *contexts.PlanningContext) string {
	var b strings.Builder
	b.WriteString("Create a comprehensive software implementation plan for the following project.\n\n")
	b.WriteString("PROJECT REQUIREMENTS:\n")
	b.WriteString(requirements)
	b.WriteString("\n\n")
	if constraints != "" {
		b.WriteString("CONSTRAINTS:\n")
		b.WriteString(constraints)
		b.WriteString("\n")
	}

	if prior != nil && len(prior.PlanningHistory) > 0 {
		feedback := strings.Join(prior.UnresolvedPlanningFeedback(), ", ")
		attempts := make([]string, 0, len(prior.PlanningHistory))
		for i, s := range prior.PlanningHistory {
			attempts = append(attempts, fmt.Sprintf("\nAttempt %d (%s):\nOverview: %s\nSteps: %d\nIssues from feedback: %s\n",
				i+1, s.Model, s.Output.Plan.Overview, len(s.Output.Plan.ImplementationSteps), feedback))
		}
		b.WriteString("\nPREVIOUS PLANNING ATTEMPTS:\n")
		b.WriteString(strings.Join(attempts, "\n"))
	}

	b.WriteString(planSchema)
	return b.String()
}
