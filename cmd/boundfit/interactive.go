package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	tuiBorderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	convergedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	faultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// fitModel is the Bubble Tea model for browsing a fit run.
type fitModel struct {
	stats    *taxonomy.RunStats
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	ready    bool
	content  string
}

func newFitModel(stats *taxonomy.RunStats) fitModel {
	return fitModel{
		stats:   stats,
		help:    help.New(),
		keys:    defaultKeyMap,
		content: renderFitContent(stats),
	}
}

// renderFitContent lays out every processed assertion with its
// estimate history.
func renderFitContent(stats *taxonomy.RunStats) string {
	var sb strings.Builder

	c := stats.Counters
	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("boundfit: %d assertion(s), %d fixed, %d fault(s)",
			c.Total, c.Fixed, c.Faults)))
	sb.WriteString("\n\n")

	for _, r := range stats.Results {
		sb.WriteString(tuiHeaderStyle.Render(fmt.Sprintf("=== %s:%d %s ===",
			filepath.Base(r.Spec.File), r.Spec.Line, r.Spec.Test)))
		sb.WriteString("\n")
		sb.WriteString(statusStyle.Render(fmt.Sprintf("    %s %s %s",
			r.Spec.Direction, r.Spec.Operands[0], r.Spec.Operands[1])))
		sb.WriteString("\n")

		switch {
		case r.Skipped:
			sb.WriteString(statusStyle.Render("    Equality assertion, not sampled."))
			sb.WriteString("\n\n")
			continue
		case r.Fault != "":
			sb.WriteString(faultStyle.Render("    fault: " + r.Fault))
			sb.WriteString("\n\n")
			continue
		}

		if r.Classification != nil {
			line := fmt.Sprintf("    %s", r.Classification.Outcome)
			if r.Classification.Reason != "" {
				line += ": " + r.Classification.Reason
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		if r.Patch != nil {
			sb.WriteString(statusStyle.Render(fmt.Sprintf("    patch %s -> %s (%s)",
				r.Spec.Literal, r.Patch.Literal, r.Patch.DiffPath)))
			sb.WriteString("\n")
		}

		if len(r.Estimates) > 0 {
			sb.WriteString(estimatesTable(r.Estimates).String())
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func estimatesTable(estimates []taxonomy.DistributionEstimate) *table.Table {
	rows := make([][]string, 0, len(estimates))
	for _, e := range estimates {
		bound := "-"
		if e.Defined() {
			bound = fmt.Sprintf("%.6g", e.Bound)
		}
		state := "pending"
		switch {
		case e.Converged:
			state = "converged"
		case e.Inconclusive:
			state = "inconclusive"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.Iterations),
			string(e.Family),
			bound,
			state,
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tuiBorderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tuiHeaderStyle
			}
			if col == 3 && row >= 0 && row < len(rows) {
				if rows[row][3] == "converged" {
					return convergedStyle
				}
				return pendingStyle
			}
			return lipgloss.NewStyle()
		}).
		Headers("RUNS", "FAMILY", "BOUND", "STATE").
		Rows(rows...)
}

func (m fitModel) Init() tea.Cmd {
	return nil
}

func (m fitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		footerHeight := 2

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-footerHeight)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - footerHeight
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m fitModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveFit launches the Bubble Tea TUI for browsing a run.
func runInteractiveFit(stats *taxonomy.RunStats) error {
	p := tea.NewProgram(newFitModel(stats), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
