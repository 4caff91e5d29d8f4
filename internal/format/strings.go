package format

import "github.com/charmbracelet/x/ansi"

// ellipsis marks a shortened string. It occupies one terminal cell.
const ellipsis = "…"

// Fit shortens s to at most width terminal cells, ending it with an ellipsis
// when anything was cut. Width is measured in cells, so wide runes count
// double and ANSI styling is preserved.
func Fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= width {
		return s
	}
	if width == 1 {
		return ansi.Truncate(s, 1, "")
	}
	return ansi.Truncate(s, width, ellipsis)
}
