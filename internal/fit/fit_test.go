package fit

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// quantileSample returns n evenly spaced quantiles of m, a
// deterministic stand-in for a random draw.
func quantileSample(m model, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = m.Quantile((float64(i) + 0.5) / float64(n))
	}
	return out
}

func TestFit_DegenerateSample(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5, 5}
	res, err := Fit(values, Options{Percentile: 0.9999})
	if !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate, got %v", err)
	}
	if res.Family != taxonomy.FamilyDegenerate {
		t.Errorf("family = %q, want degenerate", res.Family)
	}
	if !math.IsInf(res.Bound, 1) {
		t.Errorf("bound = %v, want +Inf", res.Bound)
	}
}

func TestFit_TooFewValues(t *testing.T) {
	if _, err := Fit([]float64{1}, Options{Percentile: 0.99}); !errors.Is(err, ErrTooFewValues) {
		t.Errorf("expected ErrTooFewValues, got %v", err)
	}
}

func TestFit_NormalSample(t *testing.T) {
	values := quantileSample(distuv.Normal{Mu: 10, Sigma: 1}, 500)

	res, err := Fit(values, Options{Percentile: 0.9999})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Family != taxonomy.FamilyNormal {
		t.Errorf("family = %q, want norm", res.Family)
	}
	if res.Bound < 13 || res.Bound > 14.5 {
		t.Errorf("bound = %v, want about 13.7", res.Bound)
	}
	if res.Bound <= floats.Max(values) {
		t.Errorf("bound %v should extrapolate past the sample max %v", res.Bound, floats.Max(values))
	}
	if res.Lambda != nil {
		t.Error("lambda should be nil without Box-Cox")
	}
}

func TestFit_GumbelSample(t *testing.T) {
	values := quantileSample(distuv.GumbelRight{Mu: 0, Beta: 1}, 500)

	res, err := Fit(values, Options{Percentile: 0.999})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Family != taxonomy.FamilyGumbel {
		t.Errorf("family = %q, want gumbel_r", res.Family)
	}
	// True 0.999 quantile of the standard Gumbel is -ln(-ln 0.999) ≈ 6.91.
	if math.Abs(res.Bound-6.91) > 0.5 {
		t.Errorf("bound = %v, want about 6.91", res.Bound)
	}
}

func TestFit_BoxCoxOnLogNormalSample(t *testing.T) {
	values := quantileSample(distuv.LogNormal{Mu: 0, Sigma: 0.5}, 400)

	res, err := Fit(values, Options{Percentile: 0.9999, BoxCox: true})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Lambda == nil {
		t.Fatal("expected lambda with Box-Cox enabled")
	}
	if math.Abs(*res.Lambda) > 0.15 {
		t.Errorf("lambda = %v, want close to 0 for log-normal data", *res.Lambda)
	}
	if math.IsInf(res.Bound, 0) || res.Bound <= floats.Max(values) {
		t.Errorf("bound = %v, want a finite value past the sample max", res.Bound)
	}
}

func TestBoxCox_RoundTrip(t *testing.T) {
	x := []float64{-3, -1, 0, 2, 5, 11}
	b := newBoxCox(x)
	y := b.apply(x)
	for i, v := range y {
		if got := b.invert(v); math.Abs(got-x[i]) > 1e-9 {
			t.Errorf("invert(apply(%v)) = %v", x[i], got)
		}
	}
	if b.shift != 4 {
		t.Errorf("shift = %v, want 4 so the minimum maps to 1", b.shift)
	}
}

func TestNormalize(t *testing.T) {
	in := []float64{1, -2, 3}
	hi := Normalize(in, taxonomy.DirectionMax)
	lo := Normalize(in, taxonomy.DirectionMin)
	for i := range in {
		if hi[i] != in[i] {
			t.Errorf("max-normalized[%d] = %v, want %v", i, hi[i], in[i])
		}
		if lo[i] != -in[i] {
			t.Errorf("min-normalized[%d] = %v, want %v", i, lo[i], -in[i])
		}
	}
}

func TestIsDegenerate(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   bool
	}{
		{"constant", []float64{2, 2, 2}, true},
		{"single", []float64{7}, true},
		{"empty", nil, false},
		{"float noise", []float64{1e6, 1e6 + 1e-7, 1e6}, true},
		{"spread", []float64{1, 2, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDegenerate(tt.values); got != tt.want {
				t.Errorf("IsDegenerate(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestConverged(t *testing.T) {
	tests := []struct {
		prev, next, delta float64
		want              bool
	}{
		{100, 100.5, 1, true},
		{100, 102, 1, false},
		{-50, -50.4, 1, true},
		{0, 0, 1, true},
		{math.Inf(1), 10, 1, false},
		{10, math.NaN(), 1, false},
	}
	for _, tt := range tests {
		if got := Converged(tt.prev, tt.next, tt.delta); got != tt.want {
			t.Errorf("Converged(%v, %v, %v) = %v, want %v", tt.prev, tt.next, tt.delta, got, tt.want)
		}
	}
}
