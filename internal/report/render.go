// Package report renders history series and goals as terminal tables.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dinamifin/internal/core"
	"dinamifin/internal/history"
	"dinamifin/internal/services"
)

var (
	colorBorder = lipgloss.Color("#575653")
	colorText   = lipgloss.Color("#FFFCF0")
	colorAccent = lipgloss.Color("#3AA99F")
	colorGreen  = lipgloss.Color("#879A39")
	colorRed    = lipgloss.Color("#D14D41")
	colorMuted  = lipgloss.Color("#6F6E69")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorText).Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	valueStyle  = lipgloss.NewStyle().Foreground(colorText)
	dimStyle    = lipgloss.NewStyle().Foreground(colorBorder)
	overStyle   = lipgloss.NewStyle().Foreground(colorRed)
	underStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
)

// Table is a bordered text table. The first column is left-aligned, the
// rest right-aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title in a rounded box.
func RenderTitle(title string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Width(48).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(titleStyle.Render(title))
}

func RenderTable(t Table) string {
	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < numCols && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  " + headerStyle.Render(t.Title) + "\n")
	}
	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right) + "\n")
	}
	line := func(cells []string, style lipgloss.Style) {
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if i == 0 {
				b.WriteString(" " + style.Render(cell) + pad + " ")
			} else {
				b.WriteString(" " + pad + style.Render(cell) + " ")
			}
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│") + "\n")
	}

	rule("╭", "┬", "╮")
	if len(t.Headers) > 0 {
		line(t.Headers, headerStyle)
		rule("├", "┼", "┤")
	}
	for _, row := range t.Rows {
		line(row, valueStyle)
	}
	rule("╰", "┴", "╯")
	return b.String()
}

// SeriesTable lays out a computed series, one row per month.
func SeriesTable(res history.Result) Table {
	t := Table{Title: fmt.Sprintf("%s  %s → %s", res.Series.Name, res.Window.Start, res.Window.End)}
	if res.Series.IsGoal() {
		t.Headers = []string{"Month", "Real", "Goal", "Diff"}
		for _, g := range res.Goals {
			t.Rows = append(t.Rows, []string{g.Period, g.Real.String(), g.Goal.String(), diff(g.Real, g.Goal)})
		}
		return t
	}

	t.Headers = []string{"Month", "Total"}
	var sum core.Money
	for _, m := range res.Totals {
		t.Rows = append(t.Rows, []string{m.Period, m.Total.String()})
		sum = sum.Add(m.Total)
	}
	t.Rows = append(t.Rows, []string{"total", sum.String()})
	return t
}

// diff is real minus goal, colored when a goal was set.
func diff(real, goal core.Money) string {
	if goal.IsZero() {
		return mutedStyle.Render("-")
	}
	d := real.Sub(goal)
	if d.IsPositive() {
		return overStyle.Render("+" + d.String())
	}
	return underStyle.Render(d.String())
}

// GoalsTable lists the goal in force per goal kind.
func GoalsTable(current []services.CurrentGoal) Table {
	t := Table{Title: "Current goals", Headers: []string{"Kind", "Month", "Value"}}
	for _, c := range current {
		if c.Goal == nil {
			t.Rows = append(t.Rows, []string{string(c.Kind), "-", "not set"})
			continue
		}
		t.Rows = append(t.Rows, []string{string(c.Kind), c.Goal.Month.MonthKey(), c.Goal.Value.String()})
	}
	return t
}
