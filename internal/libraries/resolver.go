// Package libraries turns a free-form description of desired technologies
// into a list of library identifiers by asking the generator.
package libraries

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/HendryAvila/gemini-planner/internal/repair"
)

// Spec names one library to fetch documentation for. It lives only for the
// duration of a single tool call.
type Spec struct {
	Name   string `json:"name" jsonschema:"required,description=Canonical package name or owner/repo"`
	Topic  string `json:"topic,omitempty" jsonschema:"description=Optional focus area such as routing or auth"`
	Tokens int    `json:"tokens,omitempty" jsonschema:"minimum=1,description=Optional documentation token budget"`
}

// Generator is the subset of the generator invoker the resolver needs.
type Generator interface {
	Invoke(ctx context.Context, prompt string, env map[string]string) (string, error)
}

// ExtractionError means no JSON array could be recovered from the generator.
type ExtractionError struct {
	Raw string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting libraries from prompt: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Resolver drives the generator with an extraction prompt.
type Resolver struct {
	gen Generator
}

// NewResolver creates a Resolver.
func NewResolver(gen Generator) *Resolver {
	return &Resolver{gen: gen}
}

// ResolveFromPrompt asks the generator which libraries text refers to.
// Generator failures are returned as-is; unparseable output becomes an
// *ExtractionError.
func (r *Resolver) ResolveFromPrompt(ctx context.Context, text string) ([]Spec, error) {
	out, err := r.gen.Invoke(ctx, ExtractionPrompt(text), nil)
	if err != nil {
		return nil, err
	}
	doc, err := repair.ParseArray(out)
	if err != nil {
		return nil, &ExtractionError{Raw: out, Err: err}
	}
	var items []any
	if err := json.Unmarshal(doc, &items); err != nil {
		return nil, &ExtractionError{Raw: out, Err: err}
	}
	return Normalize(items), nil
}

// Normalize converts loosely typed array elements into Specs: names are
// trimmed and entries without one dropped, tokens kept only when numeric,
// topics kept only when non-empty.
func Normalize(items []any) []Spec {
	specs := make([]Spec, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(cast.ToString(m["name"]))
		if name == "" {
			continue
		}
		spec := Spec{Name: name}
		if topic, err := cast.ToStringE(m["topic"]); err == nil {
			spec.Topic = strings.TrimSpace(topic)
		}
		spec.Tokens = coerceTokens(m["tokens"])
		specs = append(specs, spec)
	}
	return specs
}

func coerceTokens(v any) int {
	switch t := v.(type) {
	case nil, bool:
		return 0
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0
		}
		n, err := cast.ToIntE(t)
		if err != nil || n < 0 {
			return 0
		}
		return n
	default:
		n, err := cast.ToIntE(t)
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
}

// ExtractionPrompt builds the instruction sent to the generator.
func ExtractionPrompt(userPrompt string) string {
	return `Extract a minimal list of libraries relevant to this task. Respond ONLY with a JSON array of objects using this schema:
[
  { "name": "string", "topic": "string?", "tokens":  number? }
]

Rules:
- name must be canonical and resolvable by developers, e.g. "react", "next.js", "supabase/supabase", "tanstack/query".
- Prefer npm names; if not applicable, use GitHub owner/repo form.
- Include topic only if the user intent suggests a focus (e.g. "auth", "routing", "storage").
- tokens is optional; include only when the task is complex and needs more context.

User prompt:
` + userPrompt
}
