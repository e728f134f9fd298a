package report

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// Row outcomes that are not classifier verdicts.
const (
	outcomeFault   = "FAULT"
	outcomeSkipped = "SKIPPED"
)

// WriteText writes run results as human-readable styled text to the
// writer. Output uses lipgloss for color and formatting when the
// output is a TTY; degrades gracefully for pipes and CI.
func WriteText(w io.Writer, stats *taxonomy.RunStats) error {
	s := DefaultStyles()

	fmt.Fprintln(w, s.Header.Render("=== bound inference ==="))
	fmt.Fprintln(w, s.SubHeader.Render(fmt.Sprintf("    %s", stats.RunDir)))
	fmt.Fprintln(w)

	if len(stats.Results) == 0 {
		fmt.Fprintln(w, s.Muted.Render("    No assertions processed."))
	} else {
		fmt.Fprintln(w, resultsTable(stats.Results, s))
	}

	c := stats.Counters
	fmt.Fprintln(w)
	summary := []struct {
		label string
		value string
	}{
		{"Fixed", fmt.Sprintf("%d/%d (%.1f%%)", c.Fixed, c.Total, 100*c.FixedRatio())},
		{"Tightened", strconv.Itoa(c.Tightened)},
		{"Loosened", strconv.Itoa(c.Loosened)},
		{"Failed", strconv.Itoa(c.Failed)},
		{"Degenerate", strconv.Itoa(c.Degenerate)},
		{"Not converged", strconv.Itoa(c.NotConverged)},
		{"Borderline", strconv.Itoa(c.Borderline)},
		{"Faults", strconv.Itoa(c.Faults)},
		{"Estimated", strconv.Itoa(c.Estimated)},
		{"Duration", stats.Metadata.Duration.Round(time.Millisecond).String()},
	}
	for _, line := range summary {
		fmt.Fprintf(w, "%s %s\n", s.SummaryLabel.Render(line.label+":"), s.SummaryValue.Render(line.value))
	}

	if len(stats.Metadata.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warn := range stats.Metadata.Warnings {
			fmt.Fprintln(w, s.Warning.Render("warning: "+truncate(warn, 70)))
		}
	}
	return nil
}

// Budget: 80 cols total. Six columns with borders and padding leave
// about 58 columns of content.
func resultsTable(results []taxonomy.SpecResult, s Styles) *table.Table {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			truncate(fmt.Sprintf("%s:%d", filepath.Base(r.Spec.File), r.Spec.Line), 24),
			shortDirection(r.Spec.Direction),
			strconv.Itoa(r.Iterations),
			formatBound(r),
			rowOutcome(r),
			patchSuffix(r),
		})
	}

	return table.New().
		Width(76).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if row >= 0 && row < len(rows) {
				switch col {
				case 1:
					return s.Direction
				case 4:
					return s.OutcomeStyle(rows[row][4])
				}
			}
			return s.TableCell
		}).
		Headers("ASSERTION", "DIR", "RUNS", "BOUND", "OUTCOME", "PATCH").
		Rows(rows...)
}

// WriteSpecsText writes discovered assertions as a styled table.
func WriteSpecsText(w io.Writer, specs []taxonomy.AssertionSpec) error {
	s := DefaultStyles()

	if len(specs) == 0 {
		fmt.Fprintln(w, s.Muted.Render("No bound assertions found."))
		return nil
	}

	rows := make([][]string, 0, len(specs))
	eligible := 0
	for _, spec := range specs {
		if spec.Sampled() {
			eligible++
		}
		rows = append(rows, []string{
			truncate(fmt.Sprintf("%s:%d", filepath.Base(spec.File), spec.Line), 24),
			truncate(spec.Test, 22),
			shortDirection(spec.Direction),
			truncate(spec.Literal, 12),
		})
	}

	t := table.New().
		Width(76).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 2 {
				return s.Direction
			}
			return s.TableCell
		}).
		Headers("ASSERTION", "TEST", "DIR", "LITERAL").
		Rows(rows...)
	fmt.Fprintln(w, t)

	fmt.Fprintf(w, "\n%s\n", s.Header.Render(fmt.Sprintf(
		"%d assertion(s) found, %d eligible for bound inference", len(specs), eligible)))
	return nil
}

func shortDirection(d taxonomy.Direction) string {
	switch d {
	case taxonomy.DirectionMax:
		return "max"
	case taxonomy.DirectionMin:
		return "min"
	case taxonomy.DirectionEquality:
		return "eq"
	}
	return "?"
}

func rowOutcome(r taxonomy.SpecResult) string {
	switch {
	case r.Skipped:
		return outcomeSkipped
	case r.Fault != "":
		return outcomeFault
	case r.Classification != nil:
		return string(r.Classification.Outcome)
	}
	return "-"
}

func formatBound(r taxonomy.SpecResult) string {
	if r.Classification == nil {
		return "-"
	}
	b := r.Classification.Bound
	if math.IsInf(b, 0) || math.IsNaN(b) {
		return "inf"
	}
	return strconv.FormatFloat(b, 'g', 6, 64)
}

func patchSuffix(r taxonomy.SpecResult) string {
	if r.Patch == nil {
		return "-"
	}
	return r.Patch.Suffix
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
