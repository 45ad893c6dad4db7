package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every key binding the dashboard responds to.
type KeyMap struct {
	Quit         key.Binding
	Tab          key.Binding
	Enter        key.Binding
	Escape       key.Binding
	Up           key.Binding
	Down         key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
	Filter       key.Binding
	FocusEvents  key.Binding
	ToggleBundle key.Binding
	ToggleNoise  key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next view"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup", "["),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown", "]"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter"),
		),
		FocusEvents: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "events"),
		),
		ToggleBundle: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "bundling"),
		),
		ToggleNoise: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "noise"),
		),
	}
}
