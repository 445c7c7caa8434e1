package form

import "github.com/charmbracelet/bubbles/key"

// formKeys holds key bindings for form mode.
type formKeys struct {
	Next       key.Binding
	Prev       key.Binding
	StatusPrev key.Binding
	StatusNext key.Binding
	Submit     key.Binding
	Records    key.Binding
	Quit       key.Binding
}

// ShortHelp returns the form mode bindings for the help bar.
func (k formKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.StatusPrev, k.StatusNext, k.Submit, k.Records, k.Quit}
}

// FullHelp returns the form mode bindings grouped for expanded help.
func (k formKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev},
		{k.StatusPrev, k.StatusNext},
		{k.Submit, k.Records, k.Quit},
	}
}

// recordsKeys holds key bindings for records mode.
type recordsKeys struct {
	Up      key.Binding
	Down    key.Binding
	Refresh key.Binding
	Export  key.Binding
	Back    key.Binding
	Quit    key.Binding
}

// ShortHelp returns the records mode bindings for the help bar.
func (k recordsKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Refresh, k.Export, k.Back, k.Quit}
}

// FullHelp returns the records mode bindings grouped for expanded help.
func (k recordsKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Refresh, k.Export},
		{k.Back, k.Quit},
	}
}

// FormKeyMap returns the key bindings for form mode.
func FormKeyMap() formKeys {
	return formKeys{
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous field"),
		),
		StatusPrev: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "previous status"),
		),
		StatusNext: key.NewBinding(
			key.WithKeys("right", " "),
			key.WithHelp("→/space", "next status"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		Records: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "records"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// RecordsKeyMap returns the key bindings for records mode.
func RecordsKeyMap() recordsKeys {
	return recordsKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export csv"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "ctrl+r"),
			key.WithHelp("esc", "back to form"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
