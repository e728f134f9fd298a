package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// Styles defines the visual theme for terminal report output.
// Lipgloss automatically degrades to no-color when output is not a TTY.
type Styles struct {
	// Header is used for section headers.
	Header lipgloss.Style

	// SubHeader is used for secondary information lines.
	SubHeader lipgloss.Style

	// OutcomeOK, OutcomeBorderline and OutcomeError color-code the
	// classifier verdict.
	OutcomeOK         lipgloss.Style
	OutcomeBorderline lipgloss.Style
	OutcomeError      lipgloss.Style

	// Direction styles the MAX_BOUND/MIN_BOUND column.
	Direction lipgloss.Style

	// TableHeader styles the header row of tables.
	TableHeader lipgloss.Style

	// TableCell styles regular table cells.
	TableCell lipgloss.Style

	// SummaryLabel styles summary line labels.
	SummaryLabel lipgloss.Style

	// SummaryValue styles summary line values.
	SummaryValue lipgloss.Style

	// Warning styles run warnings.
	Warning lipgloss.Style

	// Border is used for table borders.
	Border lipgloss.Style

	// Muted is used for de-emphasized text.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme for terminal reports.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		SubHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		OutcomeOK:         lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true),
		OutcomeBorderline: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		OutcomeError:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),

		Direction: lipgloss.NewStyle().Foreground(lipgloss.Color("75")),

		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		TableCell:   lipgloss.NewStyle().PaddingRight(1),

		SummaryLabel: lipgloss.NewStyle().Bold(true).Width(16),
		SummaryValue: lipgloss.NewStyle(),

		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),

		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// OutcomeStyle returns the style for an outcome cell. Faults and
// skipped rows use the error and muted styles.
func (s Styles) OutcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case string(taxonomy.OutcomeOK):
		return s.OutcomeOK
	case string(taxonomy.OutcomeBorderline):
		return s.OutcomeBorderline
	case string(taxonomy.OutcomeError), outcomeFault:
		return s.OutcomeError
	default:
		return s.Muted
	}
}
