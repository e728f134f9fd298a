package main

import (
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

func sampleRun() *taxonomy.RunStats {
	spec := taxonomy.AssertionSpec{
		File: "/src/latency_test.go", Test: "TestLatency", Line: 7,
		Direction: taxonomy.DirectionMax, Operands: [2]string{"got", "20.0"}, Literal: "20.0",
	}
	return &taxonomy.RunStats{
		Counters: taxonomy.Counters{Total: 2, Fixed: 1, Loosened: 1, Faults: 1},
		Results: []taxonomy.SpecResult{
			{
				Spec: spec,
				Estimates: []taxonomy.DistributionEstimate{
					{Iterations: 50, Bound: math.Inf(1), Inconclusive: true},
					{Iterations: 100, Bound: 14.25, Family: taxonomy.FamilyGumbel, Converged: true},
				},
				Classification: &taxonomy.Classification{
					Outcome: taxonomy.OutcomeOK, Label: taxonomy.LabelSlackPresent,
					Reason: "slack present", Observed: 12.3, Bound: 14.25,
				},
				Patch: &taxonomy.PatchArtifact{Literal: "14.2500", Suffix: "l", DiffPath: "/logs/latency_test.go.diff_l"},
			},
			{Spec: taxonomy.AssertionSpec{File: "/src/latency_test.go", Test: "TestBroken", Line: 20}, Fault: "build failed"},
			{Spec: taxonomy.AssertionSpec{File: "/src/latency_test.go", Test: "TestCount", Line: 10}, Skipped: true},
		},
	}
}

func TestRenderFitContent(t *testing.T) {
	output := renderFitContent(sampleRun())

	for _, want := range []string{
		"2 assertion(s), 1 fixed, 1 fault(s)",
		"latency_test.go:7 TestLatency",
		"OK: slack present",
		"20.0 -> 14.2500",
		"14.25", "inconclusive", "converged", "gumbel_r",
		"fault: build failed",
		"Equality assertion, not sampled.",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestRenderFitContent_Empty(t *testing.T) {
	output := renderFitContent(&taxonomy.RunStats{})
	if !strings.Contains(output, "0 assertion(s), 0 fixed, 0 fault(s)") {
		t.Errorf("unexpected empty output:\n%s", output)
	}
}

func TestFitModel_Lifecycle(t *testing.T) {
	m := newFitModel(sampleRun())
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View before sizing = %q", got)
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(fitModel)
	if !m.ready {
		t.Fatal("model should be ready after WindowSizeMsg")
	}
	if !strings.Contains(m.View(), "TestLatency") {
		t.Error("view should show run content")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	if !next.(fitModel).help.ShowAll {
		t.Error("? should toggle full help")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
