package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/stat-pulse/display/widgets"
	"gitlab.com/tinyland/lab/stat-pulse/internal/format"
	"gitlab.com/tinyland/lab/stat-pulse/view"
)

// cardZoneID names the bubblezone mark around a view's card.
func cardZoneID(v view.View) string {
	return "card-" + strings.ToLower(string(v))
}

// renderHeader renders the view bar with the active view highlighted.
func (m Model) renderHeader() string {
	tabs := []string{st.title.Render("stat-pulse ")}
	for _, v := range view.All() {
		if v == m.proj.Active() {
			tabs = append(tabs, st.activeTab.Render(v.Title()))
		} else {
			tabs = append(tabs, st.tab.Render(v.Title()))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return st.header.Width(m.width).Render(tabBar)
}

// subtitle returns the static capability shown under a card title.
func (m Model) subtitle(v view.View, width int) string {
	switch {
	case m.static != nil:
	case m.staticErr != nil:
		return "unavailable"
	default:
		return "loading..."
	}

	switch v {
	case view.CPU:
		return format.Fit(m.static.CPUModel, width)
	case view.RAM:
		return format.GB(m.static.TotalMemoryGB)
	case view.Storage:
		return format.GB(m.static.TotalStorageGB)
	}
	return ""
}

// renderCard renders one metric card: title, static subtitle, sparkline of
// the history and a gauge of the newest value.
func (m Model) renderCard(v view.View, layout Layout) string {
	width := layout.CardWidth
	lines := []string{
		st.title.Render(v.Title()),
		st.dim.Render(m.subtitle(v, width)),
	}
	if layout.ShowSparklines {
		lines = append(lines, widgets.RenderSparkline(widgets.SparklineConfig{
			Data:   m.proj.Series(v),
			Points: m.buf.Cap(),
			Color:  st.chart,
		}))
	}
	gauge := widgets.DefaultGaugeConfig()
	gauge.Width = max(width-5, 4)
	gauge.Ratio = m.proj.LatestValue(v)
	lines = append(lines, widgets.RenderGauge(gauge))

	style := st.card
	if v == m.proj.Active() {
		style = st.activeCard
	}
	card := style.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	if m.zones != nil {
		return m.zones.Mark(cardZoneID(v), card)
	}
	return card
}

// renderCards lays the three metric cards side by side, or stacked on
// narrow terminals.
func (m Model) renderCards(layout Layout) string {
	var cards []string
	for _, v := range view.All() {
		cards = append(cards, m.renderCard(v, layout))
	}
	if layout.StackCards {
		return lipgloss.JoinVertical(lipgloss.Left, cards...)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

// renderChart renders the active view's chart with its readouts.
func (m Model) renderChart(layout Layout) string {
	active := m.proj.Active()
	points := m.buf.Cap()
	chartWidth := points * layout.ColumnWidth

	lines := []string{
		rule("Active View: "+active.Title(), chartWidth),
		widgets.RenderChart(widgets.ChartConfig{
			Data:        m.proj.ActiveSeries(),
			Points:      points,
			Height:      layout.ChartHeight,
			ColumnWidth: layout.ColumnWidth,
			Color:       st.chart,
			Axis:        true,
		}),
	}
	if active == view.CPU {
		lines = append(lines, fmt.Sprintf("Current CPU Usage: %d%%", m.proj.CurrentCPUPercent()))
	}
	temp := "CPU Temperature: " + format.Celsius(m.proj.LatestTemperature())
	if layout.ShowSparklines {
		temp += "  " + m.temperatureTrend()
	}
	lines = append(lines, temp)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// tempScaleMax is the top of the temperature trend scale in Celsius.
const tempScaleMax = 100

// temperatureTrend renders the temperature history on a fixed 0..100 °C scale.
func (m Model) temperatureTrend() string {
	return widgets.RenderSparkline(widgets.SparklineConfig{
		Data:   m.proj.TemperatureSeries(),
		Points: m.buf.Cap(),
		Max:    tempScaleMax,
		Color:  st.chart,
	})
}

// renderFooter renders the link state, last update and key help.
func (m Model) renderFooter() string {
	status := widgets.RenderLink(m.link)
	if !m.lastUpdated.IsZero() {
		status += "  Updated: " + format.Ago(m.lastUpdated, time.Now())
	}
	return st.footer.Width(m.width).Render(
		lipgloss.JoinVertical(lipgloss.Left, status, m.help.View(keys)),
	)
}
