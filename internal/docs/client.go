// Package docs is a JSON-RPC client for the remote documentation lookup
// service. The service speaks MCP over streamable HTTP, so a response body
// is either a single JSON document or an SSE stream whose last data line
// carries the JSON-RPC envelope.
package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/gemini-planner/internal/metrics"
)

// DefaultURL is the public documentation service endpoint.
const DefaultURL = "https://mcp.context7.com/mcp"

// Remote tool names.
const (
	ToolResolveLibraryID = "resolve-library-id"
	ToolGetLibraryDocs   = "get-library-docs"
)

const libraryIDLabel = "Context7-compatible library ID:"

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  *json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorBody    `json:"error,omitempty"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Client calls the documentation service.
type Client struct {
	URL     string
	HTTP    *http.Client
	Metrics *metrics.Metrics
}

// New returns a client for url (DefaultURL when empty) with a bounded HTTP timeout.
func New(url string, timeout time.Duration, m *metrics.Metrics) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{URL: url, HTTP: &http.Client{Timeout: timeout}, Metrics: m}
}

// ResolveLibraryID maps a library name to the service's library id.
func (c *Client) ResolveLibraryID(ctx context.Context, name string) (string, error) {
	text, err := c.callTool(ctx, ToolResolveLibraryID, map[string]any{"libraryName": name})
	if err != nil {
		return "", err
	}
	return extractLibraryID(text), nil
}

// GetLibraryDocs fetches documentation text for id. topic and tokens are
// omitted from the request when empty or zero.
func (c *Client) GetLibraryDocs(ctx context.Context, id, topic string, tokens int) (string, error) {
	args := map[string]any{"context7CompatibleLibraryID": id}
	if topic != "" {
		args["topic"] = topic
	}
	if tokens > 0 {
		args["tokens"] = tokens
	}
	return c.callTool(ctx, ToolGetLibraryDocs, args)
}

// ListTools returns the service's tool listing.
func (c *Client) ListTools(ctx context.Context) (*mcp.ListToolsResult, error) {
	method := string(mcp.MethodToolsList)
	raw, err := c.call(ctx, method, nil)
	if err != nil {
		c.Metrics.ObserveDocs(method, err)
		return nil, err
	}
	var out mcp.ListToolsResult
	if err := json.Unmarshal(*raw, &out); err != nil {
		err = &ParseError{Body: string(*raw), Err: err}
		c.Metrics.ObserveDocs(method, err)
		return nil, err
	}
	c.Metrics.ObserveDocs(method, nil)
	return &out, nil
}

func (c *Client) callTool(ctx context.Context, name string, args map[string]any) (text string, err error) {
	defer func() { c.Metrics.ObserveDocs(name, err) }()

	raw, err := c.call(ctx, string(mcp.MethodToolsCall), callParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	var envelope struct {
		IsError bool              `json:"isError"`
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(*raw, &envelope); err != nil {
		return "", &ParseError{Body: string(*raw), Err: err}
	}
	if len(envelope.Content) == 0 {
		if envelope.IsError {
			return "", &RPCError{Message: name + " reported an error without details"}
		}
		return "", ErrEmptyResult
	}
	result, err := mcp.ParseCallToolResult(raw)
	if err != nil {
		return "", &ParseError{Body: string(*raw), Err: err}
	}
	text = firstText(result.Content)
	if result.IsError {
		return "", &RPCError{Message: text}
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

// call performs one JSON-RPC round trip and returns the raw result.
func (c *Client) call(ctx context.Context, method string, params any) (*json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	env, err := decodeEnvelope(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, &RPCError{Code: env.Error.Code, Message: env.Error.Message}
	}
	if env.Result == nil {
		return nil, ErrEmptyResult
	}
	return env.Result, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// decodeEnvelope picks the SSE or plain-JSON path and decodes the envelope.
func decodeEnvelope(body []byte, contentType string) (*rpcResponse, error) {
	payload := body
	if isSSE(body, contentType) {
		data, ok := lastDataLine(body)
		if !ok {
			return nil, &ParseError{Body: string(body), Err: fmt.Errorf("event stream carried no data line")}
		}
		payload = data
	}
	var env rpcResponse
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &ParseError{Body: string(body), Err: err}
	}
	return &env, nil
}

func isSSE(body []byte, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "text/event-stream") {
		return true
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("event:")) ||
		bytes.HasPrefix(trimmed, []byte("data:")) ||
		bytes.Contains(body, []byte("\nevent:")) ||
		bytes.Contains(body, []byte("\ndata:"))
}

func lastDataLine(body []byte) ([]byte, bool) {
	var last []byte
	found := false
	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(line[len("data:"):])
		if len(data) == 0 {
			continue
		}
		last, found = data, true
	}
	return last, found
}

func firstText(content []mcp.Content) string {
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// extractLibraryID returns the first id named on a "Context7-compatible
// library ID:" line, or the trimmed text when no such line exists.
func extractLibraryID(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		if rest, ok := strings.CutPrefix(line, libraryIDLabel); ok {
			if id := strings.TrimSpace(rest); id != "" {
				return id
			}
		}
	}
	return strings.TrimSpace(text)
}
