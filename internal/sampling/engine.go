// Package sampling drives repeated executions of an instrumented test,
// accumulates the emitted values, and escalates the iteration count
// until the fitted bound estimate is stable or the ceiling is hit.
package sampling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/unbound-force/boundfit/internal/config"
	"github.com/unbound-force/boundfit/internal/fit"
	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// RunResult is the outcome of sampling one spec.
type RunResult struct {
	// Samples holds one record per executed invocation, in batch
	// order.
	Samples taxonomy.SampleSet

	// Estimates holds one entry per completed batch.
	Estimates []taxonomy.DistributionEstimate

	// Converged is set once two consecutive fitted estimates agree.
	Converged bool

	// Degenerate is set when the sample set had (near-)zero
	// variance. No bound is defined in that case.
	Degenerate bool
}

// Bound returns the last fitted raw bound, or +Inf when no batch
// produced one or the sample set was degenerate.
func (r *RunResult) Bound() float64 {
	if r.Degenerate {
		return math.Inf(1)
	}
	for i := len(r.Estimates) - 1; i >= 0; i-- {
		if e := r.Estimates[i]; !e.Inconclusive && e.Defined() {
			return e.Bound
		}
	}
	return math.Inf(1)
}

// Estimated reports whether at least one bound was fitted.
func (r *RunResult) Estimated() bool {
	return !math.IsInf(r.Bound(), 1)
}

// Engine samples and fits one spec at a time. The Config is read but
// never modified.
type Engine struct {
	Config   config.Config
	Executor Executor
	Logger   *log.Logger
}

func (e *Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.New(io.Discard)
}

// Run executes the batch protocol for spec. The test file must
// already be instrumented. logdir receives the build artifacts.
// Invocation failures never abort the run; only a failure to prepare
// the executor or cancellation of ctx is returned as an error.
func (e *Engine) Run(ctx context.Context, spec taxonomy.AssertionSpec, logdir string) (*RunResult, error) {
	if !spec.Sampled() {
		return nil, fmt.Errorf("spec %s has direction %s and is never sampled", spec.ID, spec.Direction)
	}
	inv, err := e.Executor.Prepare(ctx, spec, logdir)
	if err != nil {
		return nil, fmt.Errorf("preparing %s: %w", spec.Location(), err)
	}

	cfg := e.Config.Sampling
	res := &RunResult{}
	prev := math.Inf(1)
	batch := cfg.DefaultIterations

	for {
		if remaining := cfg.MaxIterations - len(res.Samples); batch > remaining {
			batch = remaining
		}
		if batch <= 0 {
			break
		}

		res.Samples = append(res.Samples, e.runBatch(ctx, inv, spec, len(res.Samples), batch)...)
		if err := ctx.Err(); err != nil {
			return res, err
		}

		est := e.estimate(spec, res.Samples)
		if est.Family == taxonomy.FamilyDegenerate {
			res.Degenerate = true
			res.Estimates = append(res.Estimates, est)
			e.logger().Warn("degenerate sample set", "spec", spec.ID, "iterations", est.Iterations)
			break
		}
		if !est.Inconclusive && fit.Converged(prev, est.Bound, cfg.BoundsDelta) {
			est.Converged = true
			res.Converged = true
		}
		res.Estimates = append(res.Estimates, est)
		e.logger().Info("batch complete",
			"spec", spec.ID,
			"iterations", est.Iterations,
			"parse_errors", res.Samples.ParseErrors(),
			"bound", est.Bound,
			"family", est.Family,
			"converged", est.Converged,
		)
		if res.Converged {
			break
		}
		if !est.Inconclusive {
			prev = est.Bound
		}
		batch = cfg.SubsequentIterations
	}

	if !res.Converged && !res.Degenerate {
		e.logger().Warn("not converged", "spec", spec.ID, "iterations", len(res.Samples))
	}
	return res, nil
}

// estimate fits the tail model to every parsed actual value so far.
func (e *Engine) estimate(spec taxonomy.AssertionSpec, samples taxonomy.SampleSet) taxonomy.DistributionEstimate {
	cfg := e.Config.Sampling
	est := taxonomy.DistributionEstimate{Iterations: len(samples), Bound: math.Inf(1)}

	actuals := samples.Actuals(spec.Reverse)
	n := len(actuals)
	if n >= cfg.MinTailValues && fit.IsDegenerate(actuals) {
		est.Family = taxonomy.FamilyDegenerate
		return est
	}
	if n < cfg.MinFitValues() {
		est.Inconclusive = true
		return est
	}

	r, err := fit.Fit(fit.Normalize(actuals, spec.Direction), fit.Options{
		Percentile: cfg.BoundsMaxPercentile,
		BoxCox:     cfg.UseBoxCox,
	})
	switch {
	case errors.Is(err, fit.ErrDegenerate):
		est.Family = taxonomy.FamilyDegenerate
	case err != nil:
		est.Inconclusive = true
	default:
		est.Bound = r.Bound
		est.Family = r.Family
		est.Lambda = r.Lambda
	}
	return est
}

// runBatch executes n invocations on a bounded pool. Each worker
// writes only its own slot; the caller folds the slots after Wait.
func (e *Engine) runBatch(ctx context.Context, inv Invoker, spec taxonomy.AssertionSpec, start, n int) taxonomy.SampleSet {
	records := make(taxonomy.SampleSet, n)

	var g errgroup.Group
	g.SetLimit(max(1, e.Config.Sampling.ThreadCount))
	for i := range n {
		g.Go(func() error {
			records[i] = e.invoke(ctx, inv, spec, start+i)
			return nil
		})
	}
	_ = g.Wait() // invocation errors are folded into the records

	return records
}

// invoke runs one invocation under its own timeout and converts any
// failure into a parse-error record.
func (e *Engine) invoke(ctx context.Context, inv Invoker, spec taxonomy.AssertionSpec, i int) taxonomy.SampleRecord {
	timeout := e.Config.Execution.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Second
	}
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := inv.Invoke(ictx, i)
	if errors.Is(ictx.Err(), context.DeadlineExceeded) {
		return taxonomy.SampleRecord{ParseError: true, Err: fmt.Sprintf("timed out after %s", timeout)}
	}

	rec := ParseOutput(out, e.Config.Execution.LogTag, spec.Direction, spec.Reverse)
	if rec.ParseError && err != nil {
		rec.Err = fmt.Sprintf("%s: %v", rec.Err, err)
	}
	if rec.ParseError {
		e.logger().Debug("invocation yielded no sample", "spec", spec.ID, "run", i, "reason", rec.Err)
	}
	return rec
}
