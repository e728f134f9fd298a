// Package scrape discovers numeric bound assertions in Go test files
// and turns them into assertion specs.
package scrape

import (
	"fmt"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"

	"github.com/fzipp/gocyclo"

	"github.com/unbound-force/boundfit/internal/loader"
	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// Options configures Scan.
type Options struct {
	// Include, when non-empty, restricts scanning to test files
	// whose path relative to the module directory matches one of
	// the patterns.
	Include []string

	// Exclude skips test files matching any pattern.
	Exclude []string
}

// Scan loads the packages matching patterns under dir and returns the
// bound assertions of their test files.
func Scan(dir string, patterns []string, opts Options) ([]taxonomy.AssertionSpec, error) {
	files, err := loader.TestFiles(dir, patterns...)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	var specs []taxonomy.AssertionSpec
	for _, tf := range files {
		rel, err := filepath.Rel(root, tf.Path)
		if err != nil {
			rel = tf.Path
		}
		if !Match(rel, opts.Include, opts.Exclude) {
			continue
		}
		found, err := ScanFile(tf.Path)
		if err != nil {
			return nil, err
		}
		specs = append(specs, found...)
	}
	return specs, nil
}

// ScanFile parses one test file and returns its bound assertions in
// source order.
func ScanFile(path string) ([]taxonomy.AssertionSpec, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, abs, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", abs, err)
	}

	complexity := make(map[string]int)
	var specs []taxonomy.AssertionSpec
	for _, site := range DetectSites(f) {
		test := site.Func.Name.Name
		if _, ok := complexity[test]; !ok {
			complexity[test] = gocyclo.Complexity(site.Func)
		}
		line := fset.Position(site.Stmt.Pos()).Line
		literal := exprString(site.Literal)
		specs = append(specs, taxonomy.AssertionSpec{
			ID:         taxonomy.GenerateID(abs, test, line, literal),
			Dir:        filepath.Dir(abs),
			Package:    f.Name.Name,
			File:       abs,
			Test:       test,
			Line:       line,
			Kind:       site.Kind,
			Direction:  site.Direction,
			Reverse:    site.Reverse,
			Operands:   [2]string{exprString(site.Operands[0]), exprString(site.Operands[1])},
			Literal:    literal,
			Complexity: complexity[test],
		})
	}
	return specs, nil
}

// Filter narrows a spec list. Zero-valued fields match everything.
type Filter struct {
	// Package matches the declared package name.
	Package string

	// Test matches the test function name exactly.
	Test string

	// File matches the file's base name, or a path suffix when it
	// contains a separator.
	File string

	// Line matches the assertion line.
	Line int
}

// Apply returns the specs accepted by f, preserving order.
func (f Filter) Apply(specs []taxonomy.AssertionSpec) []taxonomy.AssertionSpec {
	var out []taxonomy.AssertionSpec
	for _, s := range specs {
		if f.Package != "" && s.Package != f.Package {
			continue
		}
		if f.Test != "" && s.Test != f.Test {
			continue
		}
		if f.File != "" && !fileMatches(s.File, f.File) {
			continue
		}
		if f.Line > 0 && s.Line != f.Line {
			continue
		}
		out = append(out, s)
	}
	return out
}

func fileMatches(path, want string) bool {
	path = filepath.ToSlash(path)
	want = filepath.ToSlash(want)
	if strings.Contains(want, "/") {
		return strings.HasSuffix(path, want)
	}
	return filepath.Base(path) == want
}
