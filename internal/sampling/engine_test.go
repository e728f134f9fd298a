package sampling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/unbound-force/boundfit/internal/config"
	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// fakeExecutor hands out a fakeInvoker that emits whatever value
// returns for invocation i.
type fakeExecutor struct {
	value      func(i int) float64
	invoke     func(ctx context.Context, i int) ([]byte, error)
	prepareErr error
	calls      atomic.Int64
}

func (f *fakeExecutor) Prepare(context.Context, taxonomy.AssertionSpec, string) (Invoker, error) {
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return f, nil
}

func (f *fakeExecutor) Invoke(ctx context.Context, i int) ([]byte, error) {
	f.calls.Add(1)
	if f.invoke != nil {
		return f.invoke(ctx, i)
	}
	return []byte(fmt.Sprintf("=== RUN   TestX\nlog>>> %v 1000\n--- PASS: TestX (0.00s)\n", f.value(i))), nil
}

func maxSpec() taxonomy.AssertionSpec {
	return taxonomy.AssertionSpec{
		ID:        "as-test",
		File:      "x_test.go",
		Test:      "TestX",
		Line:      10,
		Direction: taxonomy.DirectionMax,
	}
}

func testConfig(mutate func(*config.SamplingConfig)) config.Config {
	cfg := *config.DefaultConfig()
	cfg.Sampling.ThreadCount = 4
	if mutate != nil {
		mutate(&cfg.Sampling)
	}
	return cfg
}

// normalCycle returns the k-th of 50 evenly spaced normal quantiles
// around 100, repeating every 50 invocations.
func normalCycle(i int) float64 {
	k := i % 50
	return 100 + distuv.UnitNormal.Quantile((float64(k)+0.5)/50)
}

func TestRun_DegenerateStopsAfterFirstBatch(t *testing.T) {
	x := &fakeExecutor{value: func(int) float64 { return 5 }}
	e := &Engine{Config: testConfig(nil), Executor: x}

	res, err := e.Run(context.Background(), maxSpec(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Degenerate {
		t.Error("constant samples should be degenerate")
	}
	if len(res.Samples) != 50 || x.calls.Load() != 50 {
		t.Errorf("expected one batch of 50, got %d samples and %d calls", len(res.Samples), x.calls.Load())
	}
	if !math.IsInf(res.Bound(), 1) {
		t.Errorf("degenerate bound = %v, want +Inf", res.Bound())
	}
	if res.Converged {
		t.Error("degenerate run must not be reported as converged")
	}
	if got := res.Estimates[len(res.Estimates)-1].Family; got != taxonomy.FamilyDegenerate {
		t.Errorf("family = %s, want degenerate", got)
	}
}

func TestRun_StopsOnceConverged(t *testing.T) {
	x := &fakeExecutor{value: normalCycle}
	e := &Engine{Config: testConfig(nil), Executor: x}

	res, err := e.Run(context.Background(), maxSpec(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Converged {
		t.Fatalf("expected convergence, estimates: %+v", res.Estimates)
	}
	// Batch 1 is gated by the failure-rate target, batch 2 gives the
	// first estimate, batch 3 agrees with it.
	if len(res.Samples) != 150 || x.calls.Load() != 150 {
		t.Errorf("expected 150 invocations, got %d samples and %d calls", len(res.Samples), x.calls.Load())
	}
	for i, est := range res.Estimates[:len(res.Estimates)-1] {
		if est.Converged {
			t.Errorf("estimate %d converged before the last one", i)
		}
	}
	if !res.Estimates[0].Inconclusive {
		t.Error("first batch should be inconclusive")
	}
	if b := res.Bound(); b <= 102.5 || b > 110 {
		t.Errorf("bound = %v, want a tail value above the sample max", b)
	}
}

func TestRun_LengthBoundedAndBatchAligned(t *testing.T) {
	x := &fakeExecutor{value: func(i int) float64 {
		return rand.New(rand.NewSource(int64(i))).NormFloat64()*10 + 50
	}}
	e := &Engine{Config: testConfig(func(s *config.SamplingConfig) {
		s.DefaultIterations = 50
		s.SubsequentIterations = 60
		s.MaxIterations = 200
		s.BoundsDelta = 0
	}), Executor: x}

	res, err := e.Run(context.Background(), maxSpec(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Converged {
		t.Fatal("a zero delta should never converge on random data")
	}
	if len(res.Samples) != 200 {
		t.Errorf("samples = %d, want the 200 ceiling", len(res.Samples))
	}
	var got []int
	for _, est := range res.Estimates {
		got = append(got, est.Iterations)
	}
	want := []int{50, 110, 170, 200}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("batch boundaries = %v, want %v", got, want)
	}
}

func TestRun_MinDirectionFitsNegatedValues(t *testing.T) {
	x := &fakeExecutor{value: normalCycle}
	spec := maxSpec()
	spec.Direction = taxonomy.DirectionMin
	e := &Engine{Config: testConfig(nil), Executor: x}

	res, err := e.Run(context.Background(), spec, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	lo := math.Inf(1)
	for _, v := range res.Samples.Actuals(false) {
		lo = math.Min(lo, v)
	}
	if raw := res.Bound(); raw <= -lo {
		t.Errorf("raw bound %v should lie beyond the negated minimum %v", raw, -lo)
	}
}

func TestRun_FailuresBecomeParseErrors(t *testing.T) {
	x := &fakeExecutor{}
	x.invoke = func(ctx context.Context, i int) ([]byte, error) {
		switch i % 10 {
		case 0:
			<-ctx.Done()
			return nil, ctx.Err()
		case 1:
			return []byte("panic: boom\n"), errors.New("exit status 2")
		case 2:
			return []byte("log>>> 1.5s 10\n"), nil
		}
		return []byte(fmt.Sprintf("log>>> %v 10\n", normalCycle(i))), nil
	}
	cfg := testConfig(func(s *config.SamplingConfig) {
		s.MaxIterations = 50
		s.ThreadCount = 10
	})
	cfg.Execution.Timeout = 20 * time.Millisecond
	e := &Engine{Config: cfg, Executor: x}

	res, err := e.Run(context.Background(), maxSpec(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Samples) != 50 {
		t.Fatalf("a failing invocation must not abort the batch: %d samples", len(res.Samples))
	}
	if got := res.Samples.ParseErrors(); got != 15 {
		t.Errorf("parse errors = %d, want 15", got)
	}
	if rec := res.Samples[0]; !rec.ParseError || rec.Err == "" {
		t.Errorf("timed-out record = %+v, want parse error with reason", rec)
	}
}

func TestRun_PrepareError(t *testing.T) {
	e := &Engine{Config: testConfig(nil), Executor: &fakeExecutor{prepareErr: errors.New("build failed")}}
	if _, err := e.Run(context.Background(), maxSpec(), t.TempDir()); err == nil {
		t.Error("expected prepare error to be returned")
	}
}

func TestRun_EqualityIsNeverSampled(t *testing.T) {
	x := &fakeExecutor{value: normalCycle}
	spec := maxSpec()
	spec.Direction = taxonomy.DirectionEquality
	e := &Engine{Config: testConfig(nil), Executor: x}

	if _, err := e.Run(context.Background(), spec, t.TempDir()); err == nil {
		t.Error("expected an error for an equality spec")
	}
	if x.calls.Load() != 0 {
		t.Errorf("equality spec was invoked %d times", x.calls.Load())
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	x := &fakeExecutor{value: normalCycle}
	x.invoke = func(_ context.Context, i int) ([]byte, error) {
		cancel()
		return []byte(fmt.Sprintf("log>>> %v 10\n", normalCycle(i))), nil
	}
	e := &Engine{Config: testConfig(nil), Executor: x}

	res, err := e.Run(ctx, maxSpec(), t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if res == nil || len(res.Samples) != 50 {
		t.Error("the completed batch should still be returned")
	}
}

func TestRun_FirstBatchFittedWhenFailureRateAllows(t *testing.T) {
	x := &fakeExecutor{value: normalCycle}
	e := &Engine{Config: testConfig(func(s *config.SamplingConfig) {
		s.ProbabilityOfFailure = 0.02
	}), Executor: x}

	res, err := e.Run(context.Background(), maxSpec(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	first := res.Estimates[0]
	if first.Iterations != 50 || first.Inconclusive || !first.Defined() {
		t.Errorf("first estimate = %+v, want a fitted bound after 50 runs", first)
	}
	if len(res.Estimates) > 1 && res.Estimates[1].Inconclusive {
		t.Errorf("second estimate should be fitted, got %+v", res.Estimates[1])
	}
}
