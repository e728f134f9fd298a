// Package fit estimates an extreme percentile of a sample by fitting
// candidate distribution families and keeping the one closest to the
// empirical distribution.
package fit

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// eulerGamma is the Euler–Mascheroni constant, the mean of a standard
// Gumbel distribution.
const eulerGamma = 0.5772156649015329

// degenerateTolerance is the relative standard deviation below which
// a sample is treated as constant.
const degenerateTolerance = 1e-9

var (
	// ErrTooFewValues is returned when fewer than two values are given.
	ErrTooFewValues = errors.New("fit: need at least two values")

	// ErrDegenerate is returned for a sample with (near-)zero variance.
	ErrDegenerate = errors.New("fit: degenerate sample")
)

// Options configures Fit.
type Options struct {
	// Percentile is the probability at which the fitted model is
	// evaluated, e.g. 0.9999.
	Percentile float64

	// BoxCox applies a Box-Cox power transform before fitting.
	BoxCox bool
}

// Result is a fitted tail estimate.
type Result struct {
	// Bound is the value at Options.Percentile, in the units of the
	// input sample. +Inf when the model cannot be mapped back.
	Bound float64

	// Family is the selected distribution family.
	Family taxonomy.Family

	// Lambda is the Box-Cox parameter when a transform was applied.
	Lambda *float64

	// KS is the Kolmogorov–Smirnov distance of the selected model.
	KS float64
}

// model is a fitted candidate distribution.
type model interface {
	CDF(x float64) float64
	Quantile(p float64) float64
}

type candidate struct {
	family taxonomy.Family
	dist   model
}

// Normalize maps values onto the quantity whose upper tail is fitted:
// the identity for MAX_BOUND and negation for MIN_BOUND.
func Normalize(values []float64, d taxonomy.Direction) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if d == taxonomy.DirectionMin {
			out[i] = -v
		} else {
			out[i] = v
		}
	}
	return out
}

// IsDegenerate reports whether values have effectively zero variance.
func IsDegenerate(values []float64) bool {
	if len(values) < 2 {
		return len(values) == 1
	}
	mean, std := stat.MeanStdDev(values, nil)
	return std <= degenerateTolerance*math.Max(1, math.Abs(mean))
}

// Fit fits the candidate families to values and returns the bound at
// opts.Percentile of the best-fitting one.
func Fit(values []float64, opts Options) (Result, error) {
	if len(values) < 2 {
		return Result{}, ErrTooFewValues
	}
	if IsDegenerate(values) {
		return Result{Bound: math.Inf(1), Family: taxonomy.FamilyDegenerate}, ErrDegenerate
	}

	x := append([]float64(nil), values...)
	var tr *boxCox
	if opts.BoxCox {
		tr = newBoxCox(x)
		x = tr.apply(x)
		if IsDegenerate(x) {
			return Result{Bound: math.Inf(1), Family: taxonomy.FamilyDegenerate}, ErrDegenerate
		}
	}
	sort.Float64s(x)

	best, ks := selectModel(x, candidates(x))
	bound := best.dist.Quantile(opts.Percentile)
	res := Result{Family: best.family, KS: ks}
	if tr != nil {
		bound = tr.invert(bound)
		lambda := tr.lambda
		res.Lambda = &lambda
	}
	if math.IsNaN(bound) {
		bound = math.Inf(1)
	}
	res.Bound = bound
	return res, nil
}

// candidates fits every applicable family to the sorted sample x.
func candidates(x []float64) []candidate {
	mean, std := stat.MeanStdDev(x, nil)

	beta := std * math.Sqrt(6) / math.Pi
	cs := []candidate{
		{taxonomy.FamilyGumbel, distuv.GumbelRight{Mu: mean - eulerGamma*beta, Beta: beta}},
		{taxonomy.FamilyNormal, distuv.Normal{Mu: mean, Sigma: std}},
	}

	if floats.Min(x) > 0 {
		logs := make([]float64, len(x))
		for i, v := range x {
			logs[i] = math.Log(v)
		}
		lmean, lstd := stat.MeanStdDev(logs, nil)
		if lstd > 0 {
			cs = append(cs, candidate{taxonomy.FamilyLogNormal, distuv.LogNormal{Mu: lmean, Sigma: lstd}})
		}
	}
	return cs
}

// selectModel returns the candidate with the smallest KS distance.
// Ties keep the earlier candidate.
func selectModel(sorted []float64, cs []candidate) (candidate, float64) {
	best := cs[0]
	bestKS := ksDistance(sorted, best.dist)
	for _, c := range cs[1:] {
		if d := ksDistance(sorted, c.dist); d < bestKS {
			best, bestKS = c, d
		}
	}
	return best, bestKS
}

// ksDistance is the one-sample Kolmogorov–Smirnov statistic of the
// sorted sample against m.
func ksDistance(sorted []float64, m model) float64 {
	n := float64(len(sorted))
	var d float64
	for i, v := range sorted {
		f := m.CDF(v)
		d = math.Max(d, math.Max(float64(i+1)/n-f, f-float64(i)/n))
	}
	return d
}

// Converged reports whether next is within deltaPercent of prev.
func Converged(prev, next, deltaPercent float64) bool {
	if math.IsInf(prev, 0) || math.IsInf(next, 0) || math.IsNaN(prev) || math.IsNaN(next) {
		return false
	}
	scale := math.Max(math.Abs(prev), math.SmallestNonzeroFloat64)
	return math.Abs(next-prev) <= deltaPercent/100*scale
}
