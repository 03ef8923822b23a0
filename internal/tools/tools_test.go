package tools

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
	"github.com/HendryAvila/gemini-planner/internal/libraries"
	"github.com/HendryAvila/gemini-planner/internal/plan"
)

func init() {
	// Freeze time for deterministic tests.
	timeNow = func() time.Time { return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC) }
}

// --- Test helpers ---

// isErrorResult checks if a CallToolResult represents an error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// decodeResult unmarshals the JSON text of a result into v.
func decodeResult(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(getResultText(result)), v); err != nil {
		t.Fatalf("result is not JSON: %v: %s", err, getResultText(result))
	}
}

// errorMessage returns the error field of a failure envelope.
func errorMessage(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if !isErrorResult(result) {
		t.Fatalf("expected error result, got: %s", getResultText(result))
	}
	var f struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	decodeResult(t, result, &f)
	if f.Success {
		t.Errorf("failure envelope has success=true")
	}
	return f.Error
}

func newRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func newStore(t *testing.T) *contexts.Store {
	t.Helper()
	fb, err := contexts.NewFileBackend(filepath.Join(t.TempDir(), "contexts"))
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	s := contexts.NewStore(fb, nil, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// --- Fakes ---

type fakeTester struct{ ok bool }

func (f fakeTester) TestConnection(context.Context) bool { return f.ok }
func (f fakeTester) Model() string                       { return "gemini-test" }
func (f fakeTester) CLIPath() string                     { return "/usr/bin/gemini" }
func (f fakeTester) HasAPIKey() bool                     { return true }

type fakeDocs struct {
	mu       sync.Mutex
	calls    []string
	docs     map[string]string
	failFor  string
	listErr  error
	toolList []string
}

func (f *fakeDocs) ResolveLibraryID(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "resolve:"+name)
	if name == f.failFor {
		return "", errors.New("documentation service returned HTTP 500")
	}
	return "/org/" + name, nil
}

func (f *fakeDocs) GetLibraryDocs(_ context.Context, id, topic string, tokens int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "docs:"+id)
	if d, ok := f.docs[id]; ok {
		return d, nil
	}
	return "docs for " + id, nil
}

func (f *fakeDocs) ListTools(context.Context) (*mcp.ListToolsResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := &mcp.ListToolsResult{}
	for _, name := range f.toolList {
		out.Tools = append(out.Tools, mcp.Tool{Name: name})
	}
	return out, nil
}

type fakeResolver struct {
	specs []libraries.Spec
	err   error
	calls int
}

func (f *fakeResolver) ResolveFromPrompt(context.Context, string) ([]libraries.Spec, error) {
	f.calls++
	return f.specs, f.err
}

type fakePlanner struct {
	err         error
	calls       int
	constraints string
	prior       *contexts.PlanningContext
}

func (f *fakePlanner) GeneratePlan(_ context.Context, contextID, requirements, constraints string, prior *contexts.PlanningContext) (contexts.PlanningSession, error) {
	f.calls++
	f.constraints = constraints
	f.prior = prior
	if f.err != nil {
		return contexts.PlanningSession{}, f.err
	}
	return contexts.PlanningSession{
		ID:        "gemini-plan-1",
		Timestamp: timeNow(),
		Model:     "gemini-test",
		Input:     contexts.SessionInput{Requirements: requirements, Constraints: constraints},
		Output: contexts.SessionOutput{
			Plan: plan.DetailedPlan{
				Overview:            "simple todo",
				ImplementationSteps: []plan.ImplementationStep{{ID: "step-1", Phase: "setup", Description: "init", FilesToCreate: []string{"main.go"}}},
				FileStructure:       json.RawMessage(`{}`),
			},
			Reasoning:    "because",
			Alternatives: []string{},
			Risks:        []plan.Risk{},
		},
	}, nil
}

// --- Definitions ---

func TestDefinitions(t *testing.T) {
	store := newStore(t)
	defs := map[string]mcp.Tool{
		"test_gemini_connection":    NewGeneratorConnectionTool(fakeTester{}).Definition(),
		"test_context7_connection":  NewDocsConnectionTool(&fakeDocs{}, "").Definition(),
		"create_project_context":    NewCreateContextTool(store).Definition(),
		"render_plan_checklist":     NewRenderChecklistTool(store).Definition(),
		"generate_plan_with_gemini": NewGeneratePlanTool(store, &fakePlanner{}, &fakeDocs{}, &fakeResolver{}, nil).Definition(),
		"get_project_context":       NewGetContextTool(store).Definition(),
		"list_project_contexts":     NewListContextsTool(store).Definition(),
		"add_feedback":              NewAddFeedbackTool(store).Definition(),
		"record_execution_session":  NewRecordExecutionTool(store).Definition(),
	}
	for want, def := range defs {
		if def.Name != want {
			t.Errorf("name = %q, want %q", def.Name, want)
		}
	}
}

func TestLibrarySchema(t *testing.T) {
	schema := librarySchema()
	if schema["type"] != "object" {
		t.Errorf("type = %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("no properties: %v", schema)
	}
	for _, name := range []string{"name", "topic", "tokens"} {
		if _, ok := props[name]; !ok {
			t.Errorf("missing property %q", name)
		}
	}
	required, _ := schema["required"].([]any)
	if len(required) != 1 || required[0] != "name" {
		t.Errorf("required = %v", schema["required"])
	}
}

// --- Connection tools ---

func TestGeneratorConnectionTool(t *testing.T) {
	for _, ok := range []bool{true, false} {
		result, err := NewGeneratorConnectionTool(fakeTester{ok: ok}).Handle(context.Background(), newRequest(nil))
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		var got generatorStatus
		decodeResult(t, result, &got)
		if got.Success != ok {
			t.Errorf("success = %v, want %v", got.Success, ok)
		}
		if ok && got.Message != "Gemini CLI connection successful" {
			t.Errorf("message = %q", got.Message)
		}
		if !ok && got.Message != "Gemini CLI connection failed" {
			t.Errorf("message = %q", got.Message)
		}
		if got.Config.Model != "gemini-test" || got.Config.CLIPath != "/usr/bin/gemini" || !got.Config.HasAPIKey {
			t.Errorf("config = %+v", got.Config)
		}
	}
}

func TestDocsConnectionTool(t *testing.T) {
	docs := &fakeDocs{toolList: []string{"resolve-library-id", "get-library-docs"}}
	result, err := NewDocsConnectionTool(docs, "https://docs.example/mcp").Handle(context.Background(), newRequest(nil))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var got docsStatus
	decodeResult(t, result, &got)
	if !got.Success || got.URL != "https://docs.example/mcp" || len(got.Tools) != 2 {
		t.Errorf("unexpected result: %+v", got)
	}

	docs.listErr = errors.New("documentation service returned HTTP 503")
	result, _ = NewDocsConnectionTool(docs, "").Handle(context.Background(), newRequest(nil))
	if msg := errorMessage(t, result); !strings.Contains(msg, "503") {
		t.Errorf("error = %q", msg)
	}
}

// --- create_project_context ---

func TestCreateContextTool(t *testing.T) {
	store := newStore(t)
	tool := NewCreateContextTool(store)

	result, err := tool.Handle(context.Background(), newRequest(map[string]any{
		"projectName":  "Demo",
		"requirements": "Build a todo app",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var got createResult
	decodeResult(t, result, &got)
	if !got.Success || got.ProjectName != "Demo" {
		t.Errorf("unexpected result: %+v", got)
	}
	if !strings.HasPrefix(got.ContextID, "demo-") {
		t.Errorf("contextId = %q", got.ContextID)
	}
	if got.Message != "Created project context: "+got.ContextID {
		t.Errorf("message = %q", got.Message)
	}

	c, err := store.Get(context.Background(), got.ContextID)
	if err != nil {
		t.Fatalf("context not persisted: %v", err)
	}
	if c.CurrentPhase != contexts.PhasePlanning {
		t.Errorf("phase = %s", c.CurrentPhase)
	}
}

func TestCreateContextTool_MissingArgs(t *testing.T) {
	tool := NewCreateContextTool(newStore(t))
	for _, args := range []map[string]any{
		{"requirements": "r"},
		{"projectName": "Demo"},
		{"projectName": "  ", "requirements": "r"},
	} {
		result, _ := tool.Handle(context.Background(), newRequest(args))
		if msg := errorMessage(t, result); !strings.Contains(msg, "required") {
			t.Errorf("args %v: error = %q", args, msg)
		}
	}
}

// --- render_plan_checklist ---

func seedPlans(t *testing.T, store *contexts.Store, overviews ...string) string {
	t.Helper()
	ctx := context.Background()
	c, err := store.Create(ctx, "Demo", "r", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i, o := range overviews {
		_, err := store.AddPlanningSession(ctx, c.ID, contexts.PlanningSession{
			ID:     "p" + string(rune('0'+i)),
			Output: contexts.SessionOutput{Plan: plan.DetailedPlan{Overview: o}},
		})
		if err != nil {
			t.Fatalf("AddPlanningSession: %v", err)
		}
	}
	return c.ID
}

func TestRenderChecklistTool(t *testing.T) {
	store := newStore(t)
	id := seedPlans(t, store, "first plan", "second plan")
	tool := NewRenderChecklistTool(store)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"default latest", map[string]any{"contextId": id}, "Overview: second plan"},
		{"explicit index", map[string]any{"contextId": id, "planIndex": float64(0)}, "Overview: first plan"},
		{"string index", map[string]any{"contextId": id, "planIndex": "1"}, "Overview: second plan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Handle(context.Background(), newRequest(tt.args))
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if isErrorResult(result) {
				t.Fatalf("unexpected error: %s", getResultText(result))
			}
			if got := getResultText(result); !strings.HasPrefix(got, tt.want) {
				t.Errorf("text = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestRenderChecklistTool_NotFound(t *testing.T) {
	store := newStore(t)
	id := seedPlans(t, store, "only")
	empty := seedPlans(t, store)
	tool := NewRenderChecklistTool(store)

	tests := []struct {
		args map[string]any
		want string
	}{
		{map[string]any{"contextId": "ghost-1"}, "ghost-1 not found"},
		{map[string]any{"contextId": id, "planIndex": float64(5)}, "Planning session 5 not found"},
		{map[string]any{"contextId": id, "planIndex": float64(-1)}, "Planning session -1 not found"},
		{map[string]any{"contextId": id, "planIndex": 0.7}, "'planIndex' must be an integer"},
		{map[string]any{"contextId": id, "planIndex": "0.5"}, "'planIndex' must be an integer"},
		{map[string]any{"contextId": id, "planIndex": "first"}, "'planIndex' must be an integer"},
		{map[string]any{"contextId": empty}, "no planning sessions"},
		{map[string]any{}, "'contextId' is required"},
	}
	for _, tt := range tests {
		result, _ := tool.Handle(context.Background(), newRequest(tt.args))
		if msg := errorMessage(t, result); !strings.Contains(msg, tt.want) {
			t.Errorf("args %v: error = %q, want %q", tt.args, msg, tt.want)
		}
	}
}

// --- get / list ---

func TestGetAndListContextTools(t *testing.T) {
	store := newStore(t)
	id := seedPlans(t, store, "one")

	result, err := NewGetContextTool(store).Handle(context.Background(), newRequest(map[string]any{"contextId": id}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var c contexts.PlanningContext
	decodeResult(t, result, &c)
	if c.ID != id || len(c.PlanningHistory) != 1 || c.CurrentPhase != contexts.PhaseExecuting {
		t.Errorf("unexpected context: %+v", c)
	}

	result, _ = NewGetContextTool(store).Handle(context.Background(), newRequest(map[string]any{"contextId": "ghost-1"}))
	if msg := errorMessage(t, result); !strings.Contains(msg, "ghost-1") {
		t.Errorf("error = %q", msg)
	}

	result, err = NewListContextsTool(store).Handle(context.Background(), newRequest(nil))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var list listResult
	decodeResult(t, result, &list)
	if !list.Success || len(list.Contexts) != 1 || list.Contexts[0].Plans != 1 {
		t.Errorf("unexpected listing: %+v", list)
	}
}

func TestListContextsTool_Empty(t *testing.T) {
	result, err := NewListContextsTool(newStore(t)).Handle(context.Background(), newRequest(nil))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(getResultText(result), `"contexts": []`) {
		t.Errorf("empty listing should be []: %s", getResultText(result))
	}
}

// --- add_feedback ---

func TestAddFeedbackTool(t *testing.T) {
	store := newStore(t)
	id := seedPlans(t, store)
	tool := NewAddFeedbackTool(store)

	result, err := tool.Handle(context.Background(), newRequest(map[string]any{
		"contextId": id,
		"content":   "steps are too coarse",
		"type":      "issue",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var got feedbackResult
	decodeResult(t, result, &got)
	if !got.Success || got.FeedbackID == "" {
		t.Errorf("unexpected result: %+v", got)
	}

	c, _ := store.Get(context.Background(), id)
	if len(c.Feedback) != 1 {
		t.Fatalf("feedback count = %d", len(c.Feedback))
	}
	f := c.Feedback[0]
	if f.ID != got.FeedbackID || f.Source != "user" || f.Type != "issue" || f.Phase != "planning" || f.Priority != "medium" || f.Resolved {
		t.Errorf("unexpected item: %+v", f)
	}
	if !f.CreatedAt.Equal(timeNow()) {
		t.Errorf("created_at = %v", f.CreatedAt)
	}
}

func TestAddFeedbackTool_Invalid(t *testing.T) {
	store := newStore(t)
	id := seedPlans(t, store)
	tool := NewAddFeedbackTool(store)

	tests := []struct {
		args map[string]any
		want string
	}{
		{map[string]any{"content": "x"}, "'contextId' is required"},
		{map[string]any{"contextId": id}, "'content' is required"},
		{map[string]any{"contextId": id, "content": "x", "priority": "urgent"}, "invalid priority"},
		{map[string]any{"contextId": "ghost-1", "content": "x"}, "ghost-1 not found"},
	}
	for _, tt := range tests {
		result, _ := tool.Handle(context.Background(), newRequest(tt.args))
		if msg := errorMessage(t, result); !strings.Contains(msg, tt.want) {
			t.Errorf("args %v: error = %q, want %q", tt.args, msg, tt.want)
		}
	}
}

// --- record_execution_session ---

func TestRecordExecutionTool(t *testing.T) {
	store := newStore(t)
	id := seedPlans(t, store, "plan")
	tool := NewRecordExecutionTool(store)

	tests := []struct {
		rate      any
		wantPhase contexts.Phase
	}{
		{0.5, contexts.PhaseReviewing},
		{0.8, contexts.PhaseReviewing},
		{"0.95", contexts.PhaseComplete},
	}
	for _, tt := range tests {
		result, err := tool.Handle(context.Background(), newRequest(map[string]any{
			"contextId":    id,
			"planId":       "p0",
			"successRate":  tt.rate,
			"filesCreated": []any{"main.go", ""},
			"issues":       []any{map[string]any{"description": "flaky test", "line": float64(12)}, "junk"},
		}))
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		var got executionResult
		decodeResult(t, result, &got)
		if got.CurrentPhase != tt.wantPhase {
			t.Errorf("rate %v: phase = %s, want %s", tt.rate, got.CurrentPhase, tt.wantPhase)
		}
	}

	c, _ := store.Get(context.Background(), id)
	if len(c.ExecutionHistory) != 3 {
		t.Fatalf("execution history = %d", len(c.ExecutionHistory))
	}
	s := c.ExecutionHistory[0]
	if s.PlanID != "p0" || s.CompletionStatus != "partial" || len(s.FilesCreated) != 1 {
		t.Errorf("unexpected session: %+v", s)
	}
	if len(s.Issues) != 1 || s.Issues[0].Line != 12 || s.Issues[0].Severity != "medium" {
		t.Errorf("issues = %+v", s.Issues)
	}
}

func TestRecordExecutionTool_Invalid(t *testing.T) {
	store := newStore(t)
	id := seedPlans(t, store, "plan")
	tool := NewRecordExecutionTool(store)

	tests := []struct {
		args map[string]any
		want string
	}{
		{map[string]any{"planId": "p", "successRate": 0.5}, "'contextId' is required"},
		{map[string]any{"contextId": id, "successRate": 0.5}, "'planId' is required"},
		{map[string]any{"contextId": id, "planId": "p"}, "'successRate' is required"},
		{map[string]any{"contextId": id, "planId": "p", "successRate": 1.5}, "between 0 and 1"},
		{map[string]any{"contextId": id, "planId": "p", "successRate": "NaN"}, "between 0 and 1"},
		{map[string]any{"contextId": id, "planId": "p", "successRate": math.NaN()}, "between 0 and 1"},
		{map[string]any{"contextId": "ghost-1", "planId": "p", "successRate": 0.5}, "ghost-1 not found"},
	}
	for _, tt := range tests {
		result, _ := tool.Handle(context.Background(), newRequest(tt.args))
		if msg := errorMessage(t, result); !strings.Contains(msg, tt.want) {
			t.Errorf("args %v: error = %q, want %q", tt.args, msg, tt.want)
		}
	}

	c, _ := store.Get(context.Background(), id)
	if len(c.ExecutionHistory) != 0 {
		t.Errorf("invalid calls recorded %d execution sessions", len(c.ExecutionHistory))
	}
}
