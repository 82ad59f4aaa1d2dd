// Package globset matches repo-relative file paths against the glob
// patterns used by environment configuration (head filters, propagated
// file patterns, the ignore list). No third-party glob-pattern library
// appears anywhere in the retrieved corpus, so matching is built on
// path/filepath the way _examples/distr1-distri matches package paths.
package globset

import (
	"path/filepath"
	"strings"
)

// Set is a compiled list of glob patterns.
type Set []string

// Matches reports whether path matches any pattern in the set.
func (s Set) Matches(path string) bool {
	for _, pattern := range s {
		if Match(pattern, path) {
			return true
		}
	}
	return false
}

// Match reports whether path matches pattern. A "**" path segment means
// "zero or more directories", since filepath.Match alone has no recursive
// wildcard concept; every other segment is matched with filepath.Match.
func Match(pattern, path string) bool {
	return matchSegments(splitSegments(pattern), splitSegments(path))
}

func splitSegments(p string) []string {
	p = strings.Trim(filepath.ToSlash(p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], path) {
			return true
		}
		if len(path) == 0 {
			return false
		}
		return matchSegments(pattern, path[1:])
	}
	if len(path) == 0 {
		return false
	}
	ok, err := filepath.Match(pattern[0], path[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], path[1:])
}
