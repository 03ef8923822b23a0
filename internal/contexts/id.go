package contexts

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	unsafeID   = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)
)

// Slug lowercases name, turns whitespace runs into hyphens and replaces
// every other character outside letters, digits, '_' and '-' (dots
// included) with a hyphen, so NewID always satisfies ValidID.
func Slug(name string) string {
	s := whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = unsafeID.ReplaceAllString(s, "-")
	if s == "" {
		return "project"
	}
	return s
}

// NewID derives a context id from the project name and a millisecond stamp.
func NewID(name string, millis int64) string {
	return Slug(name) + "-" + strconv.FormatInt(millis, 10)
}

// ValidID reports whether id can name a record without escaping the
// storage directory.
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..") && !strings.ContainsRune(id, 0)
}
