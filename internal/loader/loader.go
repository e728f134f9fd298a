// Package loader wraps go/packages to enumerate the test files of Go
// packages matching a set of patterns.
package loader

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// LoadMode is the minimum set of flags needed to list test files.
const LoadMode = packages.NeedName |
	packages.NeedFiles

// TestFile is one _test.go file together with the package it
// belongs to.
type TestFile struct {
	// Path is the absolute path of the file.
	Path string

	// Dir is the package directory, where the test binary runs.
	Dir string

	// PkgPath is the import path of the package under test.
	PkgPath string
}

// TestFiles loads the packages matching patterns, relative to dir,
// and returns their _test.go files sorted by path. An empty dir
// means the current directory.
func TestFiles(dir string, patterns ...string) ([]TestFile, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	cfg := &packages.Config{
		Mode:  LoadMode,
		Dir:   dir,
		Tests: true,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages %q: %w", patterns, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for patterns %q", patterns)
	}

	// Check for package-level errors (listing, syntax, etc.).
	var errs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, e.Error())
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("packages %q have errors:\n  %s",
			patterns, strings.Join(errs, "\n  "))
	}

	// With Tests set, go/packages reports each test file under the
	// in-package or external test variant; dedupe by path.
	seen := make(map[string]bool)
	var files []TestFile
	for _, pkg := range pkgs {
		for _, f := range pkg.GoFiles {
			if !strings.HasSuffix(f, "_test.go") || seen[f] {
				continue
			}
			seen[f] = true
			files = append(files, TestFile{
				Path:    f,
				Dir:     filepath.Dir(f),
				PkgPath: strings.TrimSuffix(pkg.PkgPath, "_test"),
			})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
