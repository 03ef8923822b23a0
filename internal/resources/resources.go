// Package resources exposes stored planning contexts as read-only MCP
// resources under planner://contexts.
package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
)

const (
	ContextsURI        = "planner://contexts"
	contextURIPrefix   = ContextsURI + "/"
	ContextURITemplate = ContextsURI + "/{contextId}"
)

// Store is the read side of the context store.
type Store interface {
	Get(ctx context.Context, id string) (*contexts.PlanningContext, error)
	List(ctx context.Context) ([]contexts.Summary, error)
}

// Handler serves context resources.
type Handler struct {
	store Store
}

// NewHandler creates a resource Handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// ContextsResource is the listing resource definition.
func (h *Handler) ContextsResource() mcp.Resource {
	return mcp.NewResource(
		ContextsURI,
		"Planning contexts",
		mcp.WithResourceDescription("Every stored project context with its phase and plan count, newest first"),
		mcp.WithMIMEType("application/json"),
	)
}

// ContextTemplate is the per-context resource template.
func (h *Handler) ContextTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		ContextURITemplate,
		"Planning context",
		mcp.WithTemplateDescription("Full planning context: requirements, plans, executions and feedback"),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// HandleContexts returns the listing as JSON.
func (h *Handler) HandleContexts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list, err := h.store.List(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	if list == nil {
		list = []contexts.Summary{}
	}
	return jsonResource(req.Params.URI, list)
}

// HandleContext returns one context as JSON.
func (h *Handler) HandleContext(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id := strings.TrimPrefix(req.Params.URI, contextURIPrefix)
	if id == "" || id == req.Params.URI {
		return errorResource(req.Params.URI, "missing context id"), nil
	}
	c, err := h.store.Get(ctx, id)
	if errors.Is(err, contexts.ErrNotFound) {
		return errorResource(req.Params.URI, fmt.Sprintf("context %s not found", id)), nil
	}
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, c)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
