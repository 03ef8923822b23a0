package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Decode builds a plan from a parsed JSON object. Every field defaults
// independently: a missing or mistyped field becomes its zero value, and a
// malformed list element is dropped without affecting its siblings.
func Decode(fields map[string]json.RawMessage) (DetailedPlan, Extras) {
	p := DetailedPlan{
		Overview:            decodeText(fields["overview"]),
		Architecture:        decodeList[ArchitecturalDecision](fields["architecture"]),
		ImplementationSteps: decodeList[ImplementationStep](fields["implementation_steps"]),
		FileStructure:       decodeTree(fields["file_structure"]),
		Dependencies:        decodeList[Dependency](fields["dependencies"]),
		TestingStrategy:     decodeText(fields["testing_strategy"]),
		DeploymentNotes:     decodeText(fields["deployment_notes"]),
		DataModels:          decodeList[DataModel](fields["data_models"]),
		Routes:              decodeList[RouteSpec](fields["routes"]),
		Components:          decodeList[ComponentSpec](fields["components"]),
		ContentTypes:        decodeList[ContentTypeSpec](fields["content_types"]),
	}
	extras := Extras{
		Reasoning:    decodeText(fields["reasoning"]),
		Alternatives: decodeStrings(fields["alternatives"]),
		Risks:        decodeList[Risk](fields["risks"]),
	}
	return p, extras
}

// DecodeObject parses doc as a JSON object and decodes it.
func DecodeObject(doc []byte) (DetailedPlan, Extras, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return DetailedPlan{}, Extras{}, fmt.Errorf("decoding plan object: %w", err)
	}
	p, extras := Decode(fields)
	return p, extras, nil
}

// Normalize fills nil collections with empty ones so the plan serializes
// with [] and {} instead of null.
func (p *DetailedPlan) Normalize() {
	if p.Architecture == nil {
		p.Architecture = []ArchitecturalDecision{}
	}
	if p.ImplementationSteps == nil {
		p.ImplementationSteps = []ImplementationStep{}
	}
	if len(p.FileStructure) == 0 {
		p.FileStructure = emptyObject
	}
	if p.Dependencies == nil {
		p.Dependencies = []Dependency{}
	}
}

func decodeList[T any](raw json.RawMessage) []T {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []T{}
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// decodeText accepts a string, a scalar, or a list of scalars (joined by
// newlines). Anything else yields "".
func decodeText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, err := cast.ToStringE(item); err == nil && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		s, err := cast.ToStringE(t)
		if err != nil {
			return ""
		}
		return s
	}
}

func decodeStrings(raw json.RawMessage) []string {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, err := cast.ToStringE(item); err == nil && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// decodeTree keeps objects and arrays verbatim and replaces anything else
// with an empty object.
func decodeTree(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') || !json.Valid(trimmed) {
		return emptyObject
	}
	out := make(json.RawMessage, len(trimmed))
	copy(out, trimmed)
	return out
}
