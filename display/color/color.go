// Package color decides whether stat-pulse output may carry ANSI styling.
//
// NO_COLOR (https://no-color.org/) always wins. Otherwise color is used only
// when the destination is a terminal.
package color

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Enabled reports whether styled output may be written to w.
func Enabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Apply sets the global lipgloss profile for output to w. When color is not
// enabled every Render produces plain text. Returns whether color is enabled.
func Apply(w io.Writer) bool {
	if !Enabled(w) {
		ForceDisable()
		return false
	}
	return true
}

// ForceDisable switches lipgloss to the Ascii profile.
func ForceDisable() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
