package tui

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme is a named dashboard color scheme.
type Theme struct {
	Name string

	// Accent marks the active view: its tab and its card.
	Accent lipgloss.Color
	// Chart fills the main chart and every sparkline.
	Chart lipgloss.Color
	// Dim is used for borders, subtitles and the footer.
	Dim lipgloss.Color
	// Shade fills the active card when the theme draws no borders.
	Shade lipgloss.Color

	Bordered bool
	Dense    bool
}

// DefaultTheme is used for unknown theme names.
const DefaultTheme = "monitoring"

var themes = map[string]Theme{
	"monitoring": {
		Name:     "monitoring",
		Accent:   lipgloss.Color("#7C3AED"),
		Chart:    lipgloss.Color("#06B6D4"),
		Dim:      lipgloss.Color("#6B7280"),
		Shade:    lipgloss.Color("#1E1B2E"),
		Bordered: true,
	},
	"minimal": {
		Name:   "minimal",
		Accent: lipgloss.Color("#8B5CF6"),
		Chart:  lipgloss.Color("#67E8F9"),
		Dim:    lipgloss.Color("#9CA3AF"),
		Shade:  lipgloss.Color("#0F172A"),
		Dense:  true,
	},
	"full": {
		Name:     "full",
		Accent:   lipgloss.Color("#A78BFA"),
		Chart:    lipgloss.Color("#22D3EE"),
		Dim:      lipgloss.Color("#D1D5DB"),
		Shade:    lipgloss.Color("#1E293B"),
		Bordered: true,
	},
}

// LookupTheme returns the theme called name. Unknown names yield the default
// theme and false.
func LookupTheme(name string) (Theme, bool) {
	t, ok := themes[name]
	if !ok {
		return themes[DefaultTheme], false
	}
	return t, true
}

// ThemeNames lists the known themes in sorted order.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// styles are the rendered forms of the current theme.
type styles struct {
	title      lipgloss.Style
	tab        lipgloss.Style
	activeTab  lipgloss.Style
	header     lipgloss.Style
	content    lipgloss.Style
	card       lipgloss.Style
	activeCard lipgloss.Style
	dim        lipgloss.Style
	footer     lipgloss.Style
	chart      lipgloss.Color
}

// st holds the styles of the applied theme. The dashboard runs one program
// per process, so a package-level value is enough.
var st = newStyles(themes[DefaultTheme])

// ApplyTheme switches every dashboard style to t.
func ApplyTheme(t Theme) {
	st = newStyles(t)
}

func newStyles(t Theme) styles {
	s := styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(t.Chart),
		tab:       lipgloss.NewStyle().Foreground(t.Dim).Padding(0, 2),
		activeTab: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(t.Accent).Padding(0, 2),
		dim:       lipgloss.NewStyle().Foreground(t.Dim),
		footer:    lipgloss.NewStyle().Foreground(t.Dim).MarginTop(1),
		content:   lipgloss.NewStyle().Padding(1, 2),
		chart:     t.Chart,
	}
	if t.Dense {
		s.content = lipgloss.NewStyle().Padding(0, 1)
	}

	if !t.Bordered {
		s.header = lipgloss.NewStyle().MarginBottom(1)
		s.card = lipgloss.NewStyle().Padding(0, 1)
		s.activeCard = s.card.Background(t.Shade)
		return s
	}
	s.header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(t.Dim).
		MarginBottom(1)
	s.card = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Dim).
		Padding(0, 1)
	s.activeCard = s.card.BorderForeground(t.Accent)
	return s
}
