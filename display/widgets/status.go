package widgets

import (
	"github.com/charmbracelet/lipgloss"
)

// LinkState is the consumer's view of the producer connection.
type LinkState int

const (
	// LinkWaiting means no sample has arrived yet.
	LinkWaiting LinkState = iota
	// LinkLive means samples are arriving.
	LinkLive
	// LinkLost means the transport closed.
	LinkLost
)

var linkIcons = map[LinkState]string{
	LinkWaiting: "\u25CC", // ◌ dotted circle
	LinkLive:    "\u25CF", // ● dot
	LinkLost:    "\u25CB", // ○ outline
}

var linkColors = map[LinkState]lipgloss.Color{
	LinkWaiting: lipgloss.Color("#3B82F6"),
	LinkLive:    lipgloss.Color("#22C55E"),
	LinkLost:    lipgloss.Color("#EF4444"),
}

var linkText = map[LinkState]string{
	LinkWaiting: "waiting",
	LinkLive:    "live",
	LinkLost:    "disconnected",
}

// String returns the state label.
func (s LinkState) String() string {
	if t, ok := linkText[s]; ok {
		return t
	}
	return "unknown"
}

// RenderLink renders a colored dot followed by the state label.
func RenderLink(s LinkState) string {
	icon, ok := linkIcons[s]
	if !ok {
		icon = "?"
	}
	style := lipgloss.NewStyle().Foreground(linkColors[s])
	return style.Render(icon) + " " + s.String()
}
