package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// GaugeConfig controls the appearance and behavior of a horizontal bar gauge.
type GaugeConfig struct {
	// Width is the total character width of the gauge bar.
	Width int
	// Ratio is the filled fraction, 0 to 1.
	Ratio float64
	// Label is optional text shown to the left of the bar.
	Label string
	// ShowPercent controls whether "XX%" is shown to the right.
	ShowPercent bool
	// ThresholdWarning is the ratio at which color changes to yellow (default: 0.7).
	ThresholdWarning float64
	// ThresholdDanger is the ratio at which color changes to red (default: 0.9).
	ThresholdDanger float64
}

// DefaultGaugeConfig returns a GaugeConfig with sensible defaults.
func DefaultGaugeConfig() GaugeConfig {
	return GaugeConfig{
		Width:            20,
		ShowPercent:      true,
		ThresholdWarning: 0.7,
		ThresholdDanger:  0.9,
	}
}

// GaugeColor returns the threshold color for a usage ratio.
func GaugeColor(ratio, warning, danger float64) lipgloss.Color {
	if warning <= 0 {
		warning = 0.7
	}
	if danger <= 0 {
		danger = 0.9
	}
	switch {
	case ratio >= danger:
		return lipgloss.Color("#EF4444")
	case ratio >= warning:
		return lipgloss.Color("#EAB308")
	default:
		return lipgloss.Color("#22C55E")
	}
}

// RenderGauge renders a horizontal bar gauge with optional label and percentage.
// Format: [Label] [████████░░░░] [XX%]
func RenderGauge(cfg GaugeConfig) string {
	ratio := cfg.Ratio
	if math.IsNaN(ratio) {
		ratio = 0
	}
	ratio = math.Max(0, math.Min(1, ratio))

	width := cfg.Width
	if width <= 0 {
		width = 20
	}

	filled := int(math.Round(ratio * float64(width)))
	bar := lipgloss.NewStyle().
		Foreground(GaugeColor(ratio, cfg.ThresholdWarning, cfg.ThresholdDanger)).
		Render(strings.Repeat("█", filled)) +
		strings.Repeat("░", width-filled)

	var sb strings.Builder
	if cfg.Label != "" {
		sb.WriteString(cfg.Label)
		sb.WriteString(" ")
	}
	sb.WriteString(bar)
	if cfg.ShowPercent {
		sb.WriteString(fmt.Sprintf(" %3.0f%%", ratio*100))
	}
	return sb.String()
}
