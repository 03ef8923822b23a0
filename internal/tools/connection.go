package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// GeneratorConnectionTool handles test_gemini_connection.
type GeneratorConnectionTool struct {
	gen ConnectionTester
}

// NewGeneratorConnectionTool creates a GeneratorConnectionTool.
func NewGeneratorConnectionTool(gen ConnectionTester) *GeneratorConnectionTool {
	return &GeneratorConnectionTool{gen: gen}
}

// Definition returns the MCP tool definition for registration.
func (t *GeneratorConnectionTool) Definition() mcp.Tool {
	return mcp.NewTool("test_gemini_connection",
		mcp.WithDescription("Test connection to Gemini CLI"),
	)
}

type generatorStatus struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Config  generatorConfig `json:"config"`
}

type generatorConfig struct {
	Model     string `json:"model"`
	CLIPath   string `json:"cliPath"`
	HasAPIKey bool   `json:"hasApiKey"`
}

// Handle runs the canary prompt. A failed canary is reported with
// success=false, not as an error result.
func (t *GeneratorConnectionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ok := t.gen.TestConnection(ctx)
	msg := "Gemini CLI connection successful"
	if !ok {
		msg = "Gemini CLI connection failed"
	}
	return jsonResult(generatorStatus{
		Success: ok,
		Message: msg,
		Config: generatorConfig{
			Model:     t.gen.Model(),
			CLIPath:   t.gen.CLIPath(),
			HasAPIKey: t.gen.HasAPIKey(),
		},
	})
}

// DocsConnectionTool handles test_context7_connection.
type DocsConnectionTool struct {
	docs DocsClient
	url  string
}

// NewDocsConnectionTool creates a DocsConnectionTool. url is echoed in the
// result when non-empty.
func NewDocsConnectionTool(docs DocsClient, url string) *DocsConnectionTool {
	return &DocsConnectionTool{docs: docs, url: url}
}

// Definition returns the MCP tool definition for registration.
func (t *DocsConnectionTool) Definition() mcp.Tool {
	return mcp.NewTool("test_context7_connection",
		mcp.WithDescription("Test connection to the Context7 documentation service and list its tools"),
	)
}

type docsStatus struct {
	Success bool     `json:"success"`
	URL     string   `json:"url,omitempty"`
	Tools   []string `json:"tools"`
}

// Handle lists the remote tools.
func (t *DocsConnectionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	listing, err := t.docs.ListTools(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	names := make([]string, 0, len(listing.Tools))
	for _, tool := range listing.Tools {
		names = append(names, tool.Name)
	}
	return jsonResult(docsStatus{Success: true, URL: t.url, Tools: names})
}
