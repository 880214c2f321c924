// Package ignore implements the narrow exclude-pattern matcher the sync
// engine applies to the local vault scan: "*" matches one path segment,
// "**" matches any prefix including slashes, and literal characters are
// matched verbatim with "." escaped, anchored at the start of the path.
//
// This is deliberately a strict subset of gitignore syntax (no negation,
// no directory-only markers, no mid-pattern "!"). github.com/sabhiram/
// go-gitignore implements the common cases identically, so patterns are
// compiled through it; the anchoring and segment semantics required here
// are narrower than full gitignore, so each pattern is first translated
// into an explicitly anchored form before compilation rather than relying
// on gitignore's own (broader) implicit-anchoring rules.
package ignore

import (
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// List matches vault-relative paths against a set of exclude patterns.
type List struct {
	compiled *gitignore.GitIgnore
	patterns []string
}

// NewList compiles a set of exclude patterns. An empty pattern list
// matches nothing.
func NewList(patterns []string) *List {
	anchored := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		anchored = append(anchored, anchor(p))
	}

	var compiled *gitignore.GitIgnore
	if len(anchored) > 0 {
		compiled = gitignore.CompileIgnoreLines(anchored...)
	}

	return &List{compiled: compiled, patterns: patterns}
}

// Match reports whether path is excluded by any configured pattern.
func (l *List) Match(path string) bool {
	if l.compiled == nil {
		return false
	}
	return l.compiled.MatchesPath(path)
}

// Patterns returns the original, uncompiled pattern list.
func (l *List) Patterns() []string {
	return l.patterns
}

// anchor rewrites a pattern into gitignore's anchored form ("/pattern")
// so a literal segment only matches at the start of the path, matching
// this spec's "anchored at path start" rule rather than gitignore's
// default of matching at any directory level.
func anchor(pattern string) string {
	if strings.HasPrefix(pattern, "/") || strings.HasPrefix(pattern, "**/") {
		return pattern
	}
	return "/" + pattern
}
