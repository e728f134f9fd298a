// Package taxonomy defines the assertion and sampling type system,
// core data structures, and stable ID generation shared by every
// boundfit stage.
package taxonomy

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"time"
)

// AssertionKind enumerates the syntactic assertion forms that carry
// a numeric bound.
type AssertionKind string

// Assertion kind constants.
const (
	// KindStdlibComparison is an if-based failure branch
	// (e.g., "if got > 10 { t.Errorf(...) }").
	KindStdlibComparison AssertionKind = "stdlib_comparison"

	// KindTestifyCompare is a testify ordering call
	// (e.g., assert.Less(t, got, 10)).
	KindTestifyCompare AssertionKind = "testify_compare"

	// KindTestifyEqual is a testify equality call against a numeric
	// literal (e.g., require.InDelta(t, 3.2, got, 0.1)).
	KindTestifyEqual AssertionKind = "testify_equal"
)

// AssertionSpec identifies one bound assertion occurrence. It is
// immutable once discovered.
type AssertionSpec struct {
	// ID is a stable identifier generated from file, test and line.
	ID string `json:"id"`

	// Dir is the directory of the package that owns the test.
	Dir string `json:"dir"`

	// Package is the package name declared by the test file.
	Package string `json:"package"`

	// File is the absolute path of the test file.
	File string `json:"file"`

	// Test is the name of the enclosing top-level test function.
	Test string `json:"test"`

	// Line is the line of the assertion statement.
	Line int `json:"line"`

	// Kind is the syntactic form of the assertion.
	Kind AssertionKind `json:"kind"`

	// Direction is the bound direction.
	Direction Direction `json:"direction"`

	// Reverse is true when the literal is the first operand.
	Reverse bool `json:"reverse"`

	// Operands holds the source text of both compared operands in
	// the order they are written.
	Operands [2]string `json:"operands"`

	// Literal is the source text of the literal operand, without a
	// surrounding conversion or sign.
	Literal string `json:"literal"`

	// Complexity is the cyclomatic complexity of the enclosing test.
	Complexity int `json:"complexity"`
}

// Location returns the "file:line" position of the assertion.
func (s AssertionSpec) Location() string {
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// Basename returns the base name of the test file.
func (s AssertionSpec) Basename() string {
	return filepath.Base(s.File)
}

// ActualIndex returns the operand index holding the computed value.
func (s AssertionSpec) ActualIndex() int {
	if s.Reverse {
		return 1
	}
	return 0
}

// LiteralIndex returns the operand index holding the literal.
func (s AssertionSpec) LiteralIndex() int {
	return 1 - s.ActualIndex()
}

// Sampled reports whether the spec takes part in sampling. Equality
// assertions never do.
func (s AssertionSpec) Sampled() bool {
	return s.Direction.IsBound()
}

// SampleRecord is the observation from one executed invocation.
type SampleRecord struct {
	// Values holds the emitted operand values in source order.
	Values []float64 `json:"values,omitempty"`

	// ParseError is set when no value could be extracted from the
	// invocation, including timeouts and crashes.
	ParseError bool `json:"parse_error"`

	// Err carries the reason for a parse error.
	Err string `json:"error,omitempty"`
}

// value returns Values[i] when the record parsed cleanly.
func (r SampleRecord) value(i int) (float64, bool) {
	if r.ParseError || i >= len(r.Values) {
		return 0, false
	}
	return r.Values[i], true
}

// Actual returns the computed operand of the record.
func (r SampleRecord) Actual(reverse bool) (float64, bool) {
	if reverse {
		return r.value(1)
	}
	return r.value(0)
}

// Expected returns the literal operand of the record.
func (r SampleRecord) Expected(reverse bool) (float64, bool) {
	if reverse {
		return r.value(0)
	}
	return r.value(1)
}

// SampleSet is the ordered sequence of records for one spec, in
// execution order.
type SampleSet []SampleRecord

// Actuals returns the computed operand of every cleanly parsed record.
func (s SampleSet) Actuals(reverse bool) []float64 {
	out := make([]float64, 0, len(s))
	for _, r := range s {
		if v, ok := r.Actual(reverse); ok {
			out = append(out, v)
		}
	}
	return out
}

// ParseErrors counts records flagged as parse errors.
func (s SampleSet) ParseErrors() int {
	n := 0
	for _, r := range s {
		if r.ParseError {
			n++
		}
	}
	return n
}

// Family tags the fitted distribution family.
type Family string

// Family constants. FamilyDegenerate marks a sample set with
// (near-)zero variance for which no model is fit.
const (
	FamilyGumbel     Family = "gumbel_r"
	FamilyNormal     Family = "norm"
	FamilyLogNormal  Family = "lognorm"
	FamilyDegenerate Family = "degenerate"
)

// DistributionEstimate is the state recorded after one sampling block.
type DistributionEstimate struct {
	// Iterations is the number of invocations executed so far.
	Iterations int `json:"iterations"`

	// Bound is the fitted percentile on the direction-normalized
	// quantity. +Inf when undefined.
	Bound float64 `json:"-"`

	// Converged is set once the estimate is stable.
	Converged bool `json:"converged"`

	// Family is the selected distribution family.
	Family Family `json:"family,omitempty"`

	// Lambda is the Box-Cox parameter, when a transform was applied.
	Lambda *float64 `json:"lambda,omitempty"`

	// Inconclusive marks a block without enough tail values to fit.
	Inconclusive bool `json:"inconclusive,omitempty"`
}

// Defined reports whether the estimate carries a finite bound.
func (e DistributionEstimate) Defined() bool {
	return !math.IsInf(e.Bound, 0) && !math.IsNaN(e.Bound)
}

// MarshalJSON encodes an undefined bound as null.
func (e DistributionEstimate) MarshalJSON() ([]byte, error) {
	type Alias DistributionEstimate
	return json.Marshal(&struct {
		Alias
		Bound *float64 `json:"bound"`
	}{
		Alias: Alias(e),
		Bound: finite(e.Bound),
	})
}

// Outcome is the classifier verdict.
type Outcome string

// Outcome constants.
const (
	OutcomeOK         Outcome = "OK"
	OutcomeBorderline Outcome = "BORDERLINE"
	OutcomeError      Outcome = "ERROR"
)

// TightnessLabel describes how the observed extreme sits against the
// fitted bound. It never changes which bound is patched in.
type TightnessLabel string

// Tightness labels.
const (
	LabelSlackPresent TightnessLabel = "slack-present"
	LabelMarginNarrow TightnessLabel = "margin-narrow"
)

// Classification is the derived classifier result.
type Classification struct {
	Outcome Outcome        `json:"outcome"`
	Label   TightnessLabel `json:"label,omitempty"`
	Reason  string         `json:"reason,omitempty"`

	// Observed is the extreme actual value (max for MAX_BOUND, min
	// for MIN_BOUND).
	Observed float64 `json:"-"`

	// Bound is the signed bound compared against Observed.
	Bound float64 `json:"-"`
}

// MarshalJSON encodes non-finite numbers as null.
func (c Classification) MarshalJSON() ([]byte, error) {
	type Alias Classification
	return json.Marshal(&struct {
		Alias
		Observed *float64 `json:"observed"`
		Bound    *float64 `json:"bound"`
	}{
		Alias:    Alias(c),
		Observed: finite(c.Observed),
		Bound:    finite(c.Bound),
	})
}

// PatchArtifact records the files written for one patched spec.
type PatchArtifact struct {
	Spec        AssertionSpec `json:"spec"`
	Bound       float64       `json:"bound"`
	Literal     string        `json:"literal"`
	Suffix      string        `json:"suffix"`
	Diff        string        `json:"-"`
	DiffPath    string        `json:"diff_path"`
	PatchedPath string        `json:"patched_path"`
}

// SpecResult is everything recorded for one processed spec.
type SpecResult struct {
	Spec           AssertionSpec          `json:"spec"`
	Skipped        bool                   `json:"skipped,omitempty"`
	Iterations     int                    `json:"iterations"`
	ParseErrors    int                    `json:"parse_errors"`
	Estimates      []DistributionEstimate `json:"estimates"`
	Converged      bool                   `json:"converged"`
	Degenerate     bool                   `json:"degenerate,omitempty"`
	Classification *Classification        `json:"classification,omitempty"`
	Patch          *PatchArtifact         `json:"patch,omitempty"`
	Fault          string                 `json:"fault,omitempty"`
	Duration       time.Duration          `json:"-"`
}

// MarshalJSON adds duration_ms.
func (r SpecResult) MarshalJSON() ([]byte, error) {
	type Alias SpecResult
	return json.Marshal(&struct {
		Alias
		DurationMS int64 `json:"duration_ms"`
	}{
		Alias:      Alias(r),
		DurationMS: r.Duration.Milliseconds(),
	})
}

// Counters are the aggregate numbers surfaced at the end of a run.
type Counters struct {
	Total        int `json:"total"`
	Fixed        int `json:"fixed"`
	Tightened    int `json:"tightened"`
	Loosened     int `json:"loosened"`
	Failed       int `json:"failed"`
	Degenerate   int `json:"degenerate"`
	NotConverged int `json:"not_converged"`
	Borderline   int `json:"borderline"`
	Faults       int `json:"faults"`
	Estimated    int `json:"estimated"`
}

// FixedRatio returns Fixed/Total, or 0 for an empty run.
func (c Counters) FixedRatio() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Fixed) / float64(c.Total)
}

// RunStats is the complete output of a run.
type RunStats struct {
	RunDir   string       `json:"run_dir"`
	Counters Counters     `json:"counters"`
	Results  []SpecResult `json:"results"`
	Metadata Metadata     `json:"metadata"`
}

// Metadata holds run metadata.
type Metadata struct {
	BoundfitVersion string        `json:"boundfit_version"`
	GoVersion       string        `json:"go_version"`
	Timestamp       time.Time     `json:"-"`
	Duration        time.Duration `json:"-"`
	Warnings        []string      `json:"warnings"`
}

// MarshalJSON customizes JSON encoding to use duration_ms and
// ISO 8601 timestamp.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type Alias Metadata
	ts := ""
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(&struct {
		Alias
		DurationMS int64  `json:"duration_ms"`
		Timestamp  string `json:"timestamp,omitempty"`
	}{
		Alias:      Alias(m),
		DurationMS: m.Duration.Milliseconds(),
		Timestamp:  ts,
	})
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// GenerateID produces a stable, deterministic ID for an assertion.
// The ID is a sha256 hash truncated to 8 hex characters, prefixed
// with "as-".
func GenerateID(file, test string, line int, literal string) string {
	input := fmt.Sprintf("%s:%s:%d:%s", file, test, line, literal)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("as-%x", hash[:4])
}
