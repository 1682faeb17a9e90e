// Package pathfilter implements the exclusion rules of §4.2: static-asset
// extensions and bot/scanner path prefixes are dropped before analytics
// writes happen.
package pathfilter

import "strings"

// Filter is a pure function of a configured exclusion list pair.
type Filter struct {
	extensions []string
	prefixes   []string
}

// New builds a Filter from the configured EXCLUDED_EXTENSIONS and
// EXCLUDED_PATHS lists. Both are matched case-insensitively against the
// lowercased path; an empty list excludes nothing.
func New(excludedExtensions, excludedPaths []string) Filter {
	exts := make([]string, len(excludedExtensions))
	for i, e := range excludedExtensions {
		exts[i] = strings.ToLower(e)
	}
	prefixes := make([]string, len(excludedPaths))
	for i, p := range excludedPaths {
		prefixes[i] = strings.ToLower(p)
	}
	return Filter{extensions: exts, prefixes: prefixes}
}

// Exclude reports whether path should be dropped from analytics.
func (f Filter) Exclude(path string) bool {
	lower := strings.ToLower(path)

	for _, ext := range f.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
