package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Width breakpoints. Terminals narrower than narrowWidth stack the cards;
// wider than wideWidth get the tall chart.
const (
	narrowWidth = 60
	wideWidth   = 120
)

// Layout is the dashboard geometry for one terminal width.
type Layout struct {
	// ChartHeight is the number of rows of the main chart.
	ChartHeight int
	// ColumnWidth is the cell width of one chart data point.
	ColumnWidth int
	// CardWidth is the inner width of a metric card.
	CardWidth int
	// StackCards renders the metric cards vertically instead of side by side.
	StackCards bool
	// ShowSparklines puts a history sparkline on each card and beside the
	// temperature readout.
	ShowSparklines bool
}

// layoutFor picks the geometry for a terminal width cells wide.
func layoutFor(width int) Layout {
	switch {
	case width < narrowWidth:
		return Layout{ChartHeight: 4, ColumnWidth: 2, CardWidth: max(width-6, 10), StackCards: true}
	case width > wideWidth:
		return Layout{ChartHeight: 12, ColumnWidth: 6, CardWidth: 32, ShowSparklines: true}
	}
	// Three cards share the row, less borders and padding.
	return Layout{ChartHeight: 8, ColumnWidth: 4, CardWidth: max((width-16)/3, 14), ShowSparklines: true}
}

// rule centers title in a horizontal rule width cells wide:
// "──── Title ────". A title that does not fit is returned bare.
func rule(title string, width int) string {
	free := width - lipgloss.Width(title) - 2
	if free <= 0 {
		return title
	}
	left := free / 2
	return strings.Repeat("─", left) + " " + title + " " + strings.Repeat("─", free-left)
}
