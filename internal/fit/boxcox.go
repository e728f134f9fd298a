package fit

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Lambda search grid for the Box-Cox profile likelihood.
const (
	lambdaMin  = -2.0
	lambdaMax  = 2.0
	lambdaStep = 0.01
)

// boxCox is a fitted Box-Cox transform. Inputs are shifted so the
// smallest value is 1 before transforming.
type boxCox struct {
	lambda float64
	shift  float64
}

// newBoxCox picks lambda by maximizing the profile log-likelihood.
func newBoxCox(x []float64) *boxCox {
	shift := 0.0
	if m := floats.Min(x); m <= 0 {
		shift = 1 - m
	}
	shifted := make([]float64, len(x))
	var sumLog float64
	for i, v := range x {
		shifted[i] = v + shift
		sumLog += math.Log(shifted[i])
	}

	best := &boxCox{lambda: 1, shift: shift}
	bestLL := math.Inf(-1)
	steps := int(math.Round((lambdaMax - lambdaMin) / lambdaStep))
	y := make([]float64, len(x))
	for i := 0; i <= steps; i++ {
		lambda := lambdaMin + float64(i)*lambdaStep
		for j, v := range shifted {
			y[j] = transform(v, lambda)
		}
		variance := stat.PopVariance(y, nil)
		if variance <= 0 || math.IsNaN(variance) || math.IsInf(variance, 0) {
			continue
		}
		ll := -float64(len(y))/2*math.Log(variance) + (lambda-1)*sumLog
		if ll > bestLL {
			bestLL = ll
			best.lambda = lambda
		}
	}
	return best
}

func transform(v, lambda float64) float64 {
	if math.Abs(lambda) < 1e-12 {
		return math.Log(v)
	}
	return (math.Pow(v, lambda) - 1) / lambda
}

func (b *boxCox) apply(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = transform(v+b.shift, b.lambda)
	}
	return out
}

// invert maps a transformed value back to the original units. Values
// outside the transform's range map to +Inf.
func (b *boxCox) invert(y float64) float64 {
	var v float64
	if math.Abs(b.lambda) < 1e-12 {
		v = math.Exp(y)
	} else {
		base := b.lambda*y + 1
		if base <= 0 {
			return math.Inf(1)
		}
		v = math.Pow(base, 1/b.lambda)
	}
	return v - b.shift
}
