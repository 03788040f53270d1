package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding

	// Inbox
	ToggleCenter key.Binding
	CycleFilter  key.Binding
	MarkRead     key.Binding
	MarkAllRead  key.Binding
	Dismiss      key.Binding
	Delete       key.Binding

	// Toasts
	ToastAction key.Binding
	ToastRetry  key.Binding
	ToastClose  key.Binding

	// Application
	Help      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),

		ToggleCenter: key.NewBinding(
			key.WithKeys("c", "tab"),
			key.WithHelp("c/Tab", "open/close center"),
		),
		CycleFilter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "cycle filter"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "mark all read"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "dismiss"),
		),
		Delete: key.NewBinding(
			key.WithKeys("D", "delete"),
			key.WithHelp("D/Del", "delete"),
		),

		ToastAction: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "toast action"),
		),
		ToastRetry: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "retry"),
		),
		ToastClose: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close toast"),
		),

		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q/Esc", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("Ctrl+C", "force quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleCenter, k.MarkRead, k.ToastClose, k.Help, k.Quit}
}

// FullHelp returns all key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.ToggleCenter, k.CycleFilter},
		{k.MarkRead, k.MarkAllRead, k.Dismiss, k.Delete},
		{k.ToastAction, k.ToastRetry, k.ToastClose},
		{k.Help, k.Quit},
	}
}
