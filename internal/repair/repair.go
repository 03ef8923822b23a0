// Package repair recovers a JSON document from free-form generator text.
//
// Recovery is an ordered chain of strategies, each a pure function from
// text to a candidate document. The first strategy that yields valid JSON
// of the expected root kind wins; later strategies are not consulted.
package repair

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\n?(.*?)```")

// errNoCandidate marks a strategy that found nothing to try.
var errNoCandidate = errors.New("no candidate")

// Root is the JSON kind a chain must produce.
type Root byte

const (
	Object Root = '{'
	Array  Root = '['
)

func (r Root) String() string {
	if r == Array {
		return "array"
	}
	return "object"
}

// Strategy tries to recover a document of kind root from text.
type Strategy struct {
	Name string
	Try  func(text string, root Root) (json.RawMessage, error)
}

// Chain is an ordered list of strategies.
type Chain []Strategy

// Error reports that no strategy succeeded. Raw carries the full input.
type Error struct {
	Root     Root
	Raw      string
	Attempts map[string]error
}

func (e *Error) Error() string {
	return fmt.Sprintf("no valid JSON %s recoverable from generator output", e.Root)
}

// Direct parses the whole text.
var Direct = Strategy{Name: "direct", Try: func(text string, root Root) (json.RawMessage, error) {
	return decode(text, root)
}}

// Fenced parses the interior of each fenced code block in order.
var Fenced = Strategy{Name: "fenced", Try: func(text string, root Root) (json.RawMessage, error) {
	matches := fencedBlock.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, errNoCandidate
	}
	var firstErr error
	for _, m := range matches {
		doc, err := decodeLenient(m[1], root)
		if err == nil {
			return doc, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}}

// Substring parses the span from the first opening delimiter of root to the
// last closing one.
var Substring = Strategy{Name: "substring", Try: func(text string, root Root) (json.RawMessage, error) {
	open, closing := "{", "}"
	if root == Array {
		open, closing = "[", "]"
	}
	start := strings.Index(text, open)
	end := strings.LastIndex(text, closing)
	if start < 0 || end <= start {
		return nil, errNoCandidate
	}
	return decodeLenient(text[start:end+1], root)
}}

// Default is direct parse, then fenced block, then delimited substring.
var Default = Chain{Direct, Fenced, Substring}

// Parse runs the chain and returns the first recovered document.
func (c Chain) Parse(text string, root Root) (json.RawMessage, error) {
	attempts := make(map[string]error, len(c))
	for _, s := range c {
		doc, err := s.Try(text, root)
		if err == nil {
			return doc, nil
		}
		attempts[s.Name] = err
	}
	return nil, &Error{Root: root, Raw: text, Attempts: attempts}
}

// ParseObject recovers a JSON object using the default chain.
func ParseObject(text string) (json.RawMessage, error) {
	return Default.Parse(text, Object)
}

// ParseArray recovers a JSON array using the default chain.
func ParseArray(text string) (json.RawMessage, error) {
	return Default.Parse(text, Array)
}

func decode(text string, root Root) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 {
		return nil, errNoCandidate
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("invalid JSON")
	}
	if trimmed[0] != byte(root) {
		return nil, fmt.Errorf("root is not a JSON %s", root)
	}
	return json.RawMessage(trimmed), nil
}

// decodeLenient retries once with comments and trailing commas removed.
func decodeLenient(text string, root Root) (json.RawMessage, error) {
	doc, err := decode(text, root)
	if err == nil {
		return doc, nil
	}
	if cleaned := Clean(text); cleaned != text {
		if doc, cerr := decode(cleaned, root); cerr == nil {
			return doc, nil
		}
	}
	return nil, err
}

// Clean strips // comments outside string literals and trailing commas
// before a closing bracket or brace.
func Clean(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return stripTrailingCommas(strings.Join(lines, "\n"))
}

// stripTrailingCommas drops a comma, and the whitespace after it, when the
// next token closes an object or array. Commas inside string literals stay.
func stripTrailingCommas(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == ',':
			j := i + 1
			for j < len(text) && strings.IndexByte(" \t\r\n", text[j]) >= 0 {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				i = j - 1
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
