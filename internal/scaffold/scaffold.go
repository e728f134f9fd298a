// Package scaffold writes a default boundfit configuration file into
// a target project directory.
package scaffold

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/unbound-force/boundfit/internal/config"
)

// Options configures the scaffold operation.
type Options struct {
	// TargetDir is the root directory to scaffold into.
	// Defaults to the current working directory.
	TargetDir string

	// Force overwrites an existing config file when true.
	Force bool

	// Version is the boundfit version string embedded in the
	// marker comment. Defaults to "dev".
	Version string

	// Stdout is the writer for summary output.
	// Defaults to os.Stdout.
	Stdout io.Writer
}

// Result reports what the scaffold operation did.
type Result struct {
	// Created lists files that were written for the first time.
	Created []string

	// Skipped lists files that already existed and were not
	// overwritten (Force was false).
	Skipped []string

	// Overwritten lists files that existed and were replaced
	// (Force was true).
	Overwritten []string
}

// versionMarker returns the comment prepended to the scaffolded file.
func versionMarker(version string) string {
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("# scaffolded by boundfit %s\n", version)
}

// Run writes config.DefaultFileName into the target directory with
// every setting at its built-in default:
//
//	# scaffolded by boundfit vX.Y.Z
//	sampling:
//	  default_iterations: 50
//	  ...
//
// An existing file is skipped unless opts.Force is set.
func Run(opts Options) (*Result, error) {
	if opts.TargetDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		opts.TargetDir = cwd
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	// Check for go.mod and warn if absent.
	if _, err := os.Stat(filepath.Join(opts.TargetDir, "go.mod")); os.IsNotExist(err) {
		fmt.Fprintln(opts.Stdout, "Warning: no go.mod found in current directory.")
		fmt.Fprintln(opts.Stdout, "boundfit works best in a Go module root.")
		fmt.Fprintln(opts.Stdout)
	}

	result := &Result{}
	rel := config.DefaultFileName
	outPath := filepath.Join(opts.TargetDir, rel)

	_, statErr := os.Stat(outPath)
	exists := statErr == nil

	if exists && !opts.Force {
		result.Skipped = append(result.Skipped, rel)
		printSummary(opts.Stdout, result)
		return result, nil
	}

	content, err := config.DefaultConfig().Marshal()
	if err != nil {
		return nil, fmt.Errorf("rendering default config: %w", err)
	}
	out := append([]byte(versionMarker(opts.Version)), content...)
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return nil, fmt.Errorf("creating %s: %w", rel, err)
	}

	if exists {
		result.Overwritten = append(result.Overwritten, rel)
	} else {
		result.Created = append(result.Created, rel)
	}

	printSummary(opts.Stdout, result)
	return result, nil
}

// printSummary writes a human-readable summary of the scaffold
// operation to w.
func printSummary(w io.Writer, r *Result) {
	fmt.Fprintln(w, "boundfit configuration initialized:")

	for _, f := range r.Created {
		fmt.Fprintf(w, "  created: %s\n", f)
	}
	for _, f := range r.Skipped {
		fmt.Fprintf(w, "  skipped: %s (already exists)\n", f)
	}
	for _, f := range r.Overwritten {
		fmt.Fprintf(w, "  overwritten: %s\n", f)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run boundfit fit --config .boundfit.yaml to use it.")

	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "%d file(s) skipped (use --force to overwrite).\n", len(r.Skipped))
	}
}
