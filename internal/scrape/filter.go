package scrape

import (
	"path/filepath"
	"strings"
)

// Match reports whether the relative path rel passes the include and
// exclude patterns.
//
// Logic:
//  1. If include patterns are set, the file must match at least one.
//  2. If the file matches any exclude pattern, it is excluded.
//  3. Otherwise, the file is included.
func Match(rel string, include, exclude []string) bool {
	// Normalize separators to forward slash for matching consistency.
	rel = filepath.ToSlash(rel)

	if len(include) > 0 {
		matched := false
		for _, pattern := range include {
			if matchGlob(pattern, rel) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range exclude {
		if matchGlob(pattern, rel) {
			return false
		}
	}

	return true
}

// matchGlob matches a path against a glob pattern. It supports
// both simple glob syntax (filepath.Match) and double-star
// suffix patterns like "vendor/**", which also match the directory
// at any depth ("a/vendor/b.go").
func matchGlob(pattern, rel string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return rel == prefix ||
			strings.HasPrefix(rel, prefix+"/") ||
			strings.Contains(rel, "/"+prefix+"/")
	}

	matched, err := filepath.Match(pattern, rel)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without separators also match the base name.
	if !strings.Contains(pattern, "/") {
		matched, err = filepath.Match(pattern, filepath.Base(rel))
		return err == nil && matched
	}

	return false
}
