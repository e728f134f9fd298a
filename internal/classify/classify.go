// Package classify compares the observed extreme of a sample set
// against a fitted bound and labels the tightness of the original
// assertion. The result is purely descriptive: it never changes
// which bound is patched in.
package classify

import (
	"fmt"
	"math"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// Error reasons.
const (
	ReasonUndefinedBound   = "undefined bound"
	ReasonMissingDirection = "missing direction"
	ReasonEqualToBound     = "observed extreme equals bound"
)

// Input is everything the classifier looks at.
type Input struct {
	// Direction is the assertion's bound direction.
	Direction taxonomy.Direction

	// Reverse selects which operand of each sample is the actual
	// value.
	Reverse bool

	// Estimate is the final raw fitted percentile on the
	// direction-normalized quantity. +Inf when undefined.
	Estimate float64

	// Samples is the complete sample set.
	Samples taxonomy.SampleSet
}

// SignedBound converts a raw fitted percentile back into the units of
// the asserted quantity: unchanged for MAX_BOUND and negated for
// MIN_BOUND, since the tail model is fit on the negated values.
func SignedBound(d taxonomy.Direction, raw float64) float64 {
	if d == taxonomy.DirectionMin {
		return -raw
	}
	return raw
}

// Observed returns the extreme actual value for the direction: the
// maximum for MAX_BOUND and the minimum for MIN_BOUND. ok is false
// when no sample parsed.
func Observed(d taxonomy.Direction, actuals []float64) (v float64, ok bool) {
	if len(actuals) == 0 {
		return 0, false
	}
	v = actuals[0]
	for _, a := range actuals[1:] {
		if d == taxonomy.DirectionMin {
			v = math.Min(v, a)
		} else {
			v = math.Max(v, a)
		}
	}
	return v, true
}

// Classify assigns an outcome and tightness label.
func Classify(in Input) taxonomy.Classification {
	if !in.Direction.IsBound() {
		return taxonomy.Classification{
			Outcome:  taxonomy.OutcomeError,
			Reason:   ReasonMissingDirection,
			Observed: math.NaN(),
			Bound:    math.Inf(1),
		}
	}

	bound := SignedBound(in.Direction, in.Estimate)
	observed, ok := Observed(in.Direction, in.Samples.Actuals(in.Reverse))
	if !ok || math.IsInf(bound, 0) || math.IsNaN(bound) {
		if !ok {
			observed = math.NaN()
		}
		return taxonomy.Classification{
			Outcome:  taxonomy.OutcomeError,
			Reason:   ReasonUndefinedBound,
			Observed: observed,
			Bound:    bound,
		}
	}

	c := taxonomy.Classification{Observed: observed, Bound: bound}
	if observed == bound {
		c.Outcome = taxonomy.OutcomeBorderline
		c.Reason = ReasonEqualToBound
		return c
	}

	slack, resolved := hasSlack(in.Direction, observed, bound)
	if !resolved {
		c.Outcome = taxonomy.OutcomeError
		c.Reason = ReasonMissingDirection
		return c
	}

	c.Outcome = taxonomy.OutcomeOK
	if slack {
		c.Label = taxonomy.LabelSlackPresent
		c.Reason = fmt.Sprintf("observed %g inside bound %g", observed, bound)
	} else {
		c.Label = taxonomy.LabelMarginNarrow
		c.Reason = fmt.Sprintf("observed %g beyond bound %g", observed, bound)
	}
	return c
}

// hasSlack reports whether the observed extreme sits strictly inside
// the bound. resolved is false when neither branch applies, which
// happens for NaN observations.
func hasSlack(d taxonomy.Direction, observed, bound float64) (slack, resolved bool) {
	switch d {
	case taxonomy.DirectionMax:
		return observed < bound, observed < bound || observed > bound
	case taxonomy.DirectionMin:
		return observed > bound, observed > bound || observed < bound
	default:
		return false, false
	}
}
