package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
	"github.com/HendryAvila/gemini-planner/internal/libraries"
	"github.com/HendryAvila/gemini-planner/internal/logging"
	"github.com/HendryAvila/gemini-planner/internal/plan"
)

// GeneratePlanTool handles generate_plan_with_gemini: it gathers library
// documentation, folds it into the context's constraints and asks the
// planner for a new plan, which is appended to the context.
type GeneratePlanTool struct {
	store    ContextStore
	planner  Planner
	docs     DocsClient
	resolver LibraryResolver
	logger   *slog.Logger
}

// NewGeneratePlanTool creates a GeneratePlanTool.
func NewGeneratePlanTool(store ContextStore, planner Planner, docs DocsClient, resolver LibraryResolver, logger *slog.Logger) *GeneratePlanTool {
	return &GeneratePlanTool{
		store:    store,
		planner:  planner,
		docs:     docs,
		resolver: resolver,
		logger:   logging.OrDefault(logger),
	}
}

// Definition returns the MCP tool definition for registration.
func (t *GeneratePlanTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_plan_with_gemini",
		mcp.WithDescription(
			"Generate a detailed implementation plan using Gemini CLI. "+
				"Pass contextId for an existing project, or projectName and requirements to start one. "+
				"Reference documentation is fetched for the given libraries, or for libraries "+
				"extracted from librariesPrompt, and added to the context's constraints.",
		),
		mcp.WithString("contextId",
			mcp.Description("Existing project context ID"),
		),
		mcp.WithString("projectName",
			mcp.Description("Name for a new project (with requirements, instead of contextId)"),
		),
		mcp.WithString("requirements",
			mcp.Description("Requirements for a new project (with projectName, instead of contextId)"),
		),
		mcp.WithString("constraints",
			mcp.Description("Additional constraints, appended to any existing ones"),
		),
		mcp.WithArray("libraries",
			mcp.Description("Libraries to fetch reference documentation for"),
			mcp.Items(librarySchema()),
		),
		mcp.WithString("librariesPrompt",
			mcp.Description("Free-form description of the technologies to use, when libraries is not given"),
		),
	)
}

// librarySchema reflects the JSON schema of one libraries element.
func librarySchema() map[string]any {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	data, err := json.Marshal(r.Reflect(&libraries.Spec{}))
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	return schema
}

type generateResult struct {
	Success      bool              `json:"success"`
	ContextID    string            `json:"contextId"`
	Plan         plan.DetailedPlan `json:"plan"`
	Reasoning    string            `json:"reasoning"`
	Alternatives []string          `json:"alternatives"`
	Risks        []plan.Risk       `json:"risks"`
	Model        string            `json:"model"`
	Message      string            `json:"message"`
}

// Handle runs the planning flow. Argument problems are reported before any
// external call is made.
func (t *GeneratePlanTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contextID := argString(req, "contextId")
	projectName := argString(req, "projectName")
	requirements := argString(req, "requirements")
	constraints := argString(req, "constraints")
	specs := libraries.Normalize(argList(req, "libraries"))
	librariesPrompt := argString(req, "librariesPrompt")

	switch {
	case contextID != "" && projectName != "" && requirements != "":
		return errorResult("provide either 'contextId' or 'projectName' and 'requirements', not both"), nil
	case contextID == "" && (projectName == "" || requirements == ""):
		return errorResult("provide 'contextId', or both 'projectName' and 'requirements'"), nil
	}
	if len(specs) == 0 && librariesPrompt == "" {
		return errorResult("provide a non-empty 'libraries' array or a 'librariesPrompt'"), nil
	}

	// The generator enforces its own timeout; a caller disconnect does not
	// abort a plan mid-flight.
	ctx = context.WithoutCancel(ctx)

	var existing *contexts.PlanningContext
	if contextID != "" {
		c, err := t.store.Get(ctx, contextID)
		if errors.Is(err, contexts.ErrNotFound) {
			return errorResultf("Context %s not found", contextID), nil
		}
		if err != nil {
			return errorResultf("loading context %s: %v", contextID, err), nil
		}
		existing = c
	}

	if len(specs) == 0 {
		resolved, err := t.resolver.ResolveFromPrompt(ctx, librariesPrompt)
		if err != nil {
			return errorResultf("resolving libraries: %v", err), nil
		}
		specs = resolved
	}

	reference, err := t.fetchDocs(ctx, specs)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	if existing == nil {
		c, err := t.store.Create(ctx, projectName, requirements, "")
		if err != nil {
			return errorResultf("creating context: %v", err), nil
		}
		existing = c
	}

	effective := joinBlocks(existing.Constraints, constraints, reference)
	updated, err := t.store.Update(ctx, existing.ID, contexts.Patch{Constraints: &effective})
	if err != nil {
		return errorResultf("updating constraints: %v", err), nil
	}

	session, err := t.planner.GeneratePlan(ctx, updated.ID, updated.Requirements, effective, updated)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if _, err := t.store.AddPlanningSession(ctx, updated.ID, session); err != nil {
		return errorResultf("saving planning session: %v", err), nil
	}

	return jsonResult(generateResult{
		Success:      true,
		ContextID:    updated.ID,
		Plan:         session.Output.Plan,
		Reasoning:    session.Output.Reasoning,
		Alternatives: session.Output.Alternatives,
		Risks:        session.Output.Risks,
		Model:        session.Model,
		Message:      "Plan generated successfully with Gemini CLI",
	})
}

// fetchDocs resolves and fetches documentation for each library in order
// and returns the REFERENCE DOCS block, or "" when nothing was fetched.
func (t *GeneratePlanTool) fetchDocs(ctx context.Context, specs []libraries.Spec) (string, error) {
	blocks := make([]string, 0, len(specs))
	for _, s := range specs {
		id, err := t.docs.ResolveLibraryID(ctx, s.Name)
		if err != nil {
			return "", fmt.Errorf("resolving library %s: %w", s.Name, err)
		}
		text, err := t.docs.GetLibraryDocs(ctx, id, s.Topic, s.Tokens)
		if err != nil {
			return "", fmt.Errorf("fetching docs for %s: %w", s.Name, err)
		}
		t.logger.Debug("fetched library docs", "library", s.Name, "id", id, "bytes", len(text))
		blocks = append(blocks, docsHeading(s)+"\n"+strings.TrimSpace(text))
	}
	if len(blocks) == 0 {
		return "", nil
	}
	return "REFERENCE DOCS:\n" + strings.Join(blocks, "\n\n"), nil
}

func docsHeading(s libraries.Spec) string {
	if s.Topic != "" {
		return fmt.Sprintf("### %s (%s)", s.Name, s.Topic)
	}
	return "### " + s.Name
}

// joinBlocks joins the non-blank parts with a blank line.
func joinBlocks(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
