package taxonomy

import (
	"encoding/json"
	"go/token"
	"math"
	"strings"
	"testing"
)

func TestGenerateID_Deterministic(t *testing.T) {
	id1 := GenerateID("/src/foo_test.go", "TestLatency", 10, "10.0")
	id2 := GenerateID("/src/foo_test.go", "TestLatency", 10, "10.0")

	if id1 != id2 {
		t.Errorf("GenerateID not deterministic: %q != %q", id1, id2)
	}
}

func TestGenerateID_Format(t *testing.T) {
	id := GenerateID("/src/foo_test.go", "TestLatency", 10, "10.0")

	if len(id) != 11 { // "as-" + 8 hex chars
		t.Errorf("expected ID length 11, got %d: %q", len(id), id)
	}
	if id[:3] != "as-" {
		t.Errorf("expected ID to start with 'as-', got %q", id)
	}
}

func TestGenerateID_UniqueForDifferentInputs(t *testing.T) {
	id1 := GenerateID("/src/foo_test.go", "TestLatency", 10, "10.0")
	id2 := GenerateID("/src/foo_test.go", "TestLatency", 11, "10.0")
	id3 := GenerateID("/src/foo_test.go", "TestThroughput", 10, "10.0")

	if id1 == id2 {
		t.Errorf("different lines should produce different IDs")
	}
	if id1 == id3 {
		t.Errorf("different tests should produce different IDs")
	}
}

func TestParseDirection(t *testing.T) {
	for _, d := range []Direction{DirectionMax, DirectionMin, DirectionEquality} {
		got, err := ParseDirection(d.String())
		if err != nil {
			t.Fatalf("ParseDirection(%q): %v", d, err)
		}
		if got != d {
			t.Errorf("ParseDirection(%q) = %v, want %v", d, got, d)
		}
	}
	if _, err := ParseDirection("SIDEWAYS"); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestDirection_ZeroValueInvalid(t *testing.T) {
	var d Direction
	if d.Valid() {
		t.Error("zero Direction should be invalid")
	}
	if d.IsBound() {
		t.Error("zero Direction should not be a bound")
	}
	if _, err := d.MarshalText(); err == nil {
		t.Error("marshaling an invalid direction should fail")
	}
}

func TestFailureConditionDirection(t *testing.T) {
	tests := []struct {
		op      token.Token
		reverse bool
		want    Direction
	}{
		{token.GTR, false, DirectionMax},
		{token.GEQ, false, DirectionMax},
		{token.LSS, false, DirectionMin},
		{token.LEQ, false, DirectionMin},
		{token.LSS, true, DirectionMax}, // if 10 < x { fail }
		{token.GTR, true, DirectionMin}, // if 10 > x { fail }
		{token.EQL, false, DirectionEquality},
		{token.NEQ, true, DirectionEquality},
	}
	for _, tt := range tests {
		got, ok := FailureConditionDirection(tt.op, tt.reverse)
		if !ok {
			t.Errorf("FailureConditionDirection(%s, %v) not ok", tt.op, tt.reverse)
			continue
		}
		if got != tt.want {
			t.Errorf("FailureConditionDirection(%s, %v) = %v, want %v",
				tt.op, tt.reverse, got, tt.want)
		}
	}
	if _, ok := FailureConditionDirection(token.ADD, false); ok {
		t.Error("ADD is not a comparison")
	}
}

func TestTestifyDirection(t *testing.T) {
	tests := []struct {
		method  string
		reverse bool
		want    Direction
	}{
		{"Less", false, DirectionMax},
		{"LessOrEqual", false, DirectionMax},
		{"Greater", false, DirectionMin},
		{"GreaterOrEqual", true, DirectionMax},
		{"Less", true, DirectionMin},
		{"InDelta", false, DirectionEquality},
	}
	for _, tt := range tests {
		got, ok := TestifyDirection(tt.method, tt.reverse)
		if !ok || got != tt.want {
			t.Errorf("TestifyDirection(%s, %v) = %v, %v; want %v",
				tt.method, tt.reverse, got, ok, tt.want)
		}
	}
	if _, ok := TestifyDirection("Contains", false); ok {
		t.Error("Contains carries no numeric bound")
	}
}

func TestSampleRecord_ReverseSelectsIndexes(t *testing.T) {
	r := SampleRecord{Values: []float64{9.5, 10}}

	if v, ok := r.Actual(false); !ok || v != 9.5 {
		t.Errorf("Actual(false) = %v, %v; want 9.5", v, ok)
	}
	if v, ok := r.Expected(false); !ok || v != 10 {
		t.Errorf("Expected(false) = %v, %v; want 10", v, ok)
	}
	if v, ok := r.Actual(true); !ok || v != 10 {
		t.Errorf("Actual(true) = %v, %v; want 10", v, ok)
	}

	bad := SampleRecord{ParseError: true, Values: []float64{1, 2}}
	if _, ok := bad.Actual(false); ok {
		t.Error("parse-error records must not yield values")
	}
}

func TestSampleSet_ActualsSkipsParseErrors(t *testing.T) {
	s := SampleSet{
		{Values: []float64{1, 10}},
		{ParseError: true, Err: "timeout"},
		{Values: []float64{3, 10}},
	}
	got := s.Actuals(false)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("Actuals = %v, want [1 3]", got)
	}
	if s.ParseErrors() != 1 {
		t.Errorf("ParseErrors = %d, want 1", s.ParseErrors())
	}
}

func TestDistributionEstimate_UndefinedBoundIsNull(t *testing.T) {
	e := DistributionEstimate{Iterations: 50, Bound: math.Inf(1), Family: FamilyDegenerate}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"bound":null`) {
		t.Errorf("expected null bound, got %s", data)
	}
	if e.Defined() {
		t.Error("infinite bound should not be defined")
	}
}

func TestAssertionSpec_Indexes(t *testing.T) {
	s := AssertionSpec{Reverse: false}
	if s.ActualIndex() != 0 || s.LiteralIndex() != 1 {
		t.Errorf("forward spec indexes = %d,%d; want 0,1", s.ActualIndex(), s.LiteralIndex())
	}
	s.Reverse = true
	if s.ActualIndex() != 1 || s.LiteralIndex() != 0 {
		t.Errorf("reverse spec indexes = %d,%d; want 1,0", s.ActualIndex(), s.LiteralIndex())
	}
}

func TestAssertionSpec_EqualityNotSampled(t *testing.T) {
	if (AssertionSpec{Direction: DirectionEquality}).Sampled() {
		t.Error("equality specs must never be sampled")
	}
	if !(AssertionSpec{Direction: DirectionMin}).Sampled() {
		t.Error("min-bound specs are sampled")
	}
}

func TestCounters_FixedRatio(t *testing.T) {
	if (Counters{}).FixedRatio() != 0 {
		t.Error("empty counters should have ratio 0")
	}
	c := Counters{Total: 4, Fixed: 1}
	if c.FixedRatio() != 0.25 {
		t.Errorf("FixedRatio = %v, want 0.25", c.FixedRatio())
	}
}
