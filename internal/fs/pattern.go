package fs

import (
	"path/filepath"
	"strings"
)

// pattern is a parsed filename pattern with its matching strategy.
type pattern struct {
	glob      string
	matchPath bool // true = match against relative path; false = match against basename only
}

// PatternMatcher selects archive files by glob.
// Patterns without '/' match against the file's basename only.
// Patterns with '/' match against the full relative path from the vault root.
type PatternMatcher struct {
	patterns []pattern
}

// NewPatternMatcher creates a PatternMatcher from raw pattern strings.
// Blank entries are skipped.
func NewPatternMatcher(rawPatterns []string) *PatternMatcher {
	var patterns []pattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		patterns = append(patterns, pattern{
			glob:      filepath.ToSlash(raw),
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &PatternMatcher{patterns: patterns}
}

// Empty reports whether the matcher has no patterns.
func (m *PatternMatcher) Empty() bool {
	return len(m.patterns) == 0
}

// Match reports whether relativePath matches any pattern. An empty matcher
// matches everything.
func (m *PatternMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 {
		return true
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		var matched bool
		var err error
		if p.matchPath {
			matched, err = filepath.Match(p.glob, normalized)
		} else {
			matched, err = filepath.Match(p.glob, basename)
		}
		if err != nil {
			// Bad pattern: skip rather than fail the export.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
