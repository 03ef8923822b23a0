package docs

import (
	"errors"
	"fmt"
)

// ErrEmptyResult means the service answered but returned no text content.
var ErrEmptyResult = errors.New("documentation service returned empty content")

// HTTPError is a non-2xx response. Body is the raw response body.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("documentation service HTTP %d: %s", e.Status, e.Body)
}

// RPCError is a JSON-RPC error object, or a tool result flagged as an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("documentation service error %d: %s", e.Code, e.Message)
}

// ParseError means the body was neither JSON nor SSE-framed JSON.
type ParseError struct {
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing documentation service response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransportError wraps a failure to reach the service or read its answer.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("documentation service %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
