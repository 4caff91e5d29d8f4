package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings for the dashboard.
// It implements the help.KeyMap interface for bubbles/help integration.
type keyMap struct {
	Quit     key.Binding
	NextView key.Binding
	PrevView key.Binding
	CPU      key.Binding
	RAM      key.Binding
	Storage  key.Binding
	Help     key.Binding
}

// ShortHelp returns the compact set of keybindings shown by default in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.NextView, k.Quit}
}

// FullHelp returns the expanded keybinding groups shown when help is toggled.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.CPU, k.RAM, k.Storage},
		{k.NextView, k.PrevView},
		{k.Help, k.Quit},
	}
}

// keys holds the default key bindings used by the application.
var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextView: key.NewBinding(key.WithKeys("tab", "right"), key.WithHelp("tab", "next view")),
	PrevView: key.NewBinding(key.WithKeys("shift+tab", "left"), key.WithHelp("shift+tab", "prev view")),
	CPU:      key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "cpu")),
	RAM:      key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "ram")),
	Storage:  key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "storage")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// KeyBindings returns every dashboard binding in help order.
func KeyBindings() []key.Binding {
	var out []key.Binding
	for _, group := range keys.FullHelp() {
		out = append(out, group...)
	}
	return out
}
