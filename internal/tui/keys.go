package tui

import "github.com/charmbracelet/bubbles/key"

func newBinding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

type keyMap struct {
	Up, Down, Left, Right key.Binding

	Toggle     key.Binding
	Play       key.Binding
	Faster     key.Binding
	Slower     key.Binding
	NoteUp     key.Binding
	NoteDown   key.Binding
	Louder     key.Binding
	Softer     key.Binding
	Clear      key.Binding
	Export     key.Binding
	ExportMIDI key.Binding
	Load       key.Binding
	Ports      key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),

		Toggle:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle step")),
		Play:       newBinding("play/stop", "enter", "p"),
		Faster:     newBinding("tempo up", "+", "="),
		Slower:     newBinding("tempo down", "-", "_"),
		NoteUp:     newBinding("note up", "w"),
		NoteDown:   newBinding("note down", "s"),
		Louder:     newBinding("velocity up", "]"),
		Softer:     newBinding("velocity down", "["),
		Clear:      newBinding("clear track", "c"),
		Export:     newBinding("export wav", "e"),
		ExportMIDI: newBinding("export midi", "m"),
		Load:       newBinding("load midi", "L"),
		Ports:      newBinding("midi out", "o"),
		Help:       newBinding("more", "?"),
		Quit:       newBinding("quit", "q", "ctrl+c"),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Play, k.Faster, k.Slower, k.Export, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Toggle, k.NoteUp, k.NoteDown, k.Louder, k.Softer, k.Clear},
		{k.Play, k.Faster, k.Slower},
		{k.Export, k.ExportMIDI, k.Load, k.Ports, k.Help, k.Quit},
	}
}
