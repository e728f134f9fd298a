// Package pipeline drives one run end to end: for every assertion it
// instruments the test, samples and fits, restores the file,
// classifies the bound, and writes the patch artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/boundfit/internal/classify"
	"github.com/unbound-force/boundfit/internal/config"
	"github.com/unbound-force/boundfit/internal/instrument"
	"github.com/unbound-force/boundfit/internal/patch"
	"github.com/unbound-force/boundfit/internal/sampling"
	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// ErrNoAssertions is returned when no bound assertion is left to
// process. Nothing is written in that case.
var ErrNoAssertions = errors.New("no eligible bound assertions")

// Runner processes a list of specs one at a time.
type Runner struct {
	// Config is the immutable configuration bundle for the run.
	Config config.Config

	// Executor runs the instrumented tests. Defaults to a
	// GoTestExecutor built from Config.Execution.
	Executor sampling.Executor

	// Logger receives progress. Defaults to a discard logger.
	Logger *log.Logger

	// LogsDir is the parent of the run directory.
	LogsDir string

	// Name labels the run directory, typically the module name.
	Name string

	// Version is recorded in the run metadata.
	Version string
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.New(io.Discard)
}

func (r *Runner) executor() sampling.Executor {
	if r.Executor != nil {
		return r.Executor
	}
	return sampling.GoTestExecutor{
		Toolchain: r.Config.Execution.Toolchain,
		Tags:      r.Config.Execution.Tags,
	}
}

// Run processes specs in order. Equality assertions are recorded as
// skipped and never sampled. A fault in one spec is recorded on its
// result and never stops the run. The returned stats are non-nil
// whenever the run directory was created.
func (r *Runner) Run(ctx context.Context, specs []taxonomy.AssertionSpec) (*taxonomy.RunStats, error) {
	eligible := 0
	for _, s := range specs {
		if s.Sampled() {
			eligible++
		}
	}
	if eligible == 0 {
		return nil, ErrNoAssertions
	}

	start := time.Now()
	name := r.Name
	if name == "" {
		name = "run"
	}
	runDir := filepath.Join(r.LogsDir, fmt.Sprintf("bounds_%s_%s", start.Format("20060102-150405"), name))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	r.logger().Info("starting run", "assertions", eligible, "dir", runDir)

	stats := &taxonomy.RunStats{
		RunDir: runDir,
		Metadata: taxonomy.Metadata{
			BoundfitVersion: r.Version,
			GoVersion:       runtime.Version(),
			Timestamp:       start,
			Warnings:        []string{},
		},
	}

	var runErr error
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if !spec.Sampled() {
			r.logger().Debug("skipping equality assertion", "spec", spec.ID, "at", spec.Location())
			stats.Results = append(stats.Results, taxonomy.SpecResult{Spec: spec, Skipped: true})
			continue
		}

		res := r.processSpec(ctx, i+1, spec, runDir)
		tally(&stats.Counters, res)
		if w := warning(res); w != "" {
			stats.Metadata.Warnings = append(stats.Metadata.Warnings, w)
		}
		stats.Results = append(stats.Results, res)
	}

	stats.Metadata.Duration = time.Since(start)
	c := stats.Counters
	r.logger().Info("run complete",
		"fixed", fmt.Sprintf("%d/%d", c.Fixed, c.Total),
		"tightened", c.Tightened,
		"loosened", c.Loosened,
		"failed", c.Failed,
		"degenerate", c.Degenerate,
		"not_converged", c.NotConverged,
		"borderline", c.Borderline,
		"faults", c.Faults,
		"duration", stats.Metadata.Duration.Round(time.Millisecond),
	)
	return stats, runErr
}

// processSpec runs the full per-spec sequence. Any error or panic is
// recorded as a fault; the test file is restored on every path.
func (r *Runner) processSpec(ctx context.Context, n int, spec taxonomy.AssertionSpec, runDir string) (res taxonomy.SpecResult) {
	start := time.Now()
	res.Spec = spec
	logdir := filepath.Join(runDir, fmt.Sprintf("%03d_%s_%d", n, spec.Basename(), spec.Line))
	logger := r.logger().With("spec", spec.ID)
	logger.Info("processing assertion", "at", spec.Location(), "test", spec.Test, "direction", spec.Direction)

	defer func() {
		if p := recover(); p != nil {
			res.Fault = fmt.Sprintf("panic: %v", p)
			logger.Error("assertion faulted", "error", res.Fault)
		}
		res.Duration = time.Since(start)
		logger.Info("assertion done", "time", res.Duration.Round(time.Millisecond))
	}()

	execCfg := r.Config.Execution
	opts := instrument.Options{Tag: execCfg.LogTag, Emitter: execCfg.Emitter, Imports: execCfg.Imports}
	engine := &sampling.Engine{Config: r.Config, Executor: r.executor(), Logger: logger}

	var run *sampling.RunResult
	err := instrument.Session(spec, logdir, opts, func() error {
		var err error
		run, err = engine.Run(ctx, spec, logdir)
		return err
	})
	if run != nil {
		res.Iterations = len(run.Samples)
		res.ParseErrors = run.Samples.ParseErrors()
		res.Estimates = run.Estimates
		res.Converged = run.Converged
		res.Degenerate = run.Degenerate
	}
	if err != nil {
		res.Fault = err.Error()
		logger.Error("assertion faulted", "error", err)
		return res
	}

	c := classify.Classify(classify.Input{
		Direction: spec.Direction,
		Reverse:   spec.Reverse,
		Estimate:  run.Bound(),
		Samples:   run.Samples,
	})
	res.Classification = &c
	logger.Info("classified", "outcome", c.Outcome, "label", c.Label, "observed", c.Observed, "bound", c.Bound)

	if c.Outcome != taxonomy.OutcomeOK {
		return res
	}
	gen := patch.Generator{
		OutDir:     logdir,
		Fractional: patch.Fractional(run.Samples.Actuals(spec.Reverse)),
	}
	art, err := gen.Generate(spec, c.Bound, c.Label, run.Converged)
	if errors.Is(err, patch.ErrUnchanged) {
		logger.Warn("bound renders as the existing literal, no patch", "bound", c.Bound)
		return res
	}
	if err != nil {
		res.Fault = err.Error()
		logger.Error("patch failed", "error", err)
		return res
	}
	res.Patch = art
	logger.Info("patch written", "diff", art.DiffPath, "literal", art.Literal)
	return res
}

// tally folds one result into the counters.
func tally(c *taxonomy.Counters, res taxonomy.SpecResult) {
	if res.Skipped {
		return
	}
	c.Total++
	if res.Degenerate {
		c.Degenerate++
	}
	for _, e := range res.Estimates {
		if !e.Inconclusive && e.Defined() {
			c.Estimated++
			break
		}
	}
	if res.Fault != "" {
		c.Faults++
		return
	}
	if !res.Converged && !res.Degenerate {
		c.NotConverged++
	}
	if res.Classification == nil {
		return
	}
	switch res.Classification.Outcome {
	case taxonomy.OutcomeError:
		c.Failed++
	case taxonomy.OutcomeBorderline:
		c.Borderline++
	case taxonomy.OutcomeOK:
		if res.Patch == nil {
			return
		}
		c.Fixed++
		if res.Classification.Label == taxonomy.LabelSlackPresent {
			c.Loosened++
		} else {
			c.Tightened++
		}
	}
}

func warning(res taxonomy.SpecResult) string {
	switch {
	case res.Fault != "":
		return fmt.Sprintf("%s: %s", res.Spec.Location(), res.Fault)
	case res.Degenerate:
		return fmt.Sprintf("%s: constant sample set, no bound", res.Spec.Location())
	case !res.Converged:
		return fmt.Sprintf("%s: not converged after %d iterations", res.Spec.Location(), res.Iterations)
	case res.Patch == nil && res.Classification != nil && res.Classification.Outcome == taxonomy.OutcomeOK:
		return fmt.Sprintf("%s: fitted bound %g renders as the existing literal, no patch",
			res.Spec.Location(), res.Classification.Bound)
	}
	return ""
}
