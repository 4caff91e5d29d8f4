package widgets

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sparkBlocks contains 8 unicode block characters for sparkline rendering,
// ordered from lowest to highest.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// DefaultPoints is the number of data points a chart spans.
const DefaultPoints = 10

// SparklineConfig controls a one-row sparkline over a fixed value range.
type SparklineConfig struct {
	// Data points to render (most recent last).
	Data []float64
	// Points is the number of slots. Missing leading points render blank.
	// If 0, DefaultPoints.
	Points int
	// Min and Max bound the scale. Equal values mean [0,1].
	Min float64
	Max float64
	// Label is optional text shown before the sparkline.
	Label string
	// Color is the lipgloss color for the sparkline characters.
	Color lipgloss.Color
}

// normalize maps v into [0,1] over [lo,hi].
func normalize(v, lo, hi float64) float64 {
	if hi == lo {
		lo, hi = 0, 1
	}
	n := (v - lo) / (hi - lo)
	if math.IsNaN(n) {
		return 0
	}
	return math.Max(0, math.Min(1, n))
}

// window returns the last points values of data.
func window(data []float64, points int) []float64 {
	if points <= 0 {
		points = DefaultPoints
	}
	if len(data) > points {
		return data[len(data)-points:]
	}
	return data
}

// RenderSparkline renders a unicode sparkline. Unlike an auto-scaled
// sparkline, a flat 30% series sits at the 30% block, so charts for
// different metrics are comparable.
func RenderSparkline(cfg SparklineConfig) string {
	points := cfg.Points
	if points <= 0 {
		points = DefaultPoints
	}
	data := window(cfg.Data, points)

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", points-len(data)))
	for _, v := range data {
		idx := int(math.Round(normalize(v, cfg.Min, cfg.Max) * float64(len(sparkBlocks)-1)))
		sb.WriteRune(sparkBlocks[idx])
	}
	spark := sb.String()

	if cfg.Color != "" {
		spark = lipgloss.NewStyle().Foreground(cfg.Color).Render(spark)
	}
	if cfg.Label != "" {
		spark = cfg.Label + " " + spark
	}
	return spark
}

// ChartConfig controls a multi-row area chart of a ratio series.
type ChartConfig struct {
	// Data points in [Min,Max], most recent last.
	Data []float64
	// Points is the number of columns groups. If 0, DefaultPoints.
	Points int
	// Height in rows. If 0, 6.
	Height int
	// ColumnWidth is the character width of each point. If 0, 2.
	ColumnWidth int
	// Min and Max bound the scale. Equal values mean [0,1].
	Min float64
	Max float64
	// Color of the filled area.
	Color lipgloss.Color
	// Axis draws a baseline under the chart when set.
	Axis bool
}

// RenderChart renders data as a filled area chart using eighth blocks, one
// column group per point, oldest on the left. Fewer points than Points leave
// blank columns on the left, so new samples enter from the right.
func RenderChart(cfg ChartConfig) string {
	points := cfg.Points
	if points <= 0 {
		points = DefaultPoints
	}
	height := cfg.Height
	if height <= 0 {
		height = 6
	}
	colWidth := cfg.ColumnWidth
	if colWidth <= 0 {
		colWidth = 2
	}
	data := window(cfg.Data, points)
	pad := points - len(data)

	// Fill level of each column in eighths of a row.
	levels := make([]int, points)
	for i, v := range data {
		levels[pad+i] = int(math.Round(normalize(v, cfg.Min, cfg.Max) * float64(height*8)))
	}

	style := lipgloss.NewStyle()
	if cfg.Color != "" {
		style = style.Foreground(cfg.Color)
	}

	rows := make([]string, 0, height+1)
	for row := height - 1; row >= 0; row-- {
		var sb strings.Builder
		for _, lvl := range levels {
			cell := " "
			fill := lvl - row*8
			switch {
			case fill >= 8:
				cell = string(sparkBlocks[7])
			case fill > 0:
				cell = string(sparkBlocks[fill-1])
			}
			sb.WriteString(strings.Repeat(cell, colWidth))
		}
		rows = append(rows, style.Render(sb.String()))
	}
	if cfg.Axis {
		rows = append(rows, strings.Repeat("─", points*colWidth))
	}
	return strings.Join(rows, "\n")
}
