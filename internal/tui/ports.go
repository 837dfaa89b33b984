package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/icco/rhythmbox/internal/engine"
)

// portPicker selects the MIDI output the sequence is mirrored to.
type portPicker struct {
	names    []string
	selected int
	message  string

	list func() []string
	open func(index int) (*engine.MIDIOut, error)
}

func newPortPicker() portPicker {
	return portPicker{
		selected: -1,
		list:     engine.MIDIOutPorts,
		open:     engine.OpenMIDIOut,
	}
}

func (p *portPicker) refresh() {
	p.names = p.list()
	if p.selected >= len(p.names) {
		p.selected = -1
	}
	if len(p.names) == 0 {
		p.message = "No MIDI outputs found. Press 'r' to refresh."
	} else {
		p.message = fmt.Sprintf("Found %d MIDI output(s)", len(p.names))
	}
}

func (m Model) updatePorts(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := &m.ports

	switch msg.String() {
	case "up", "k":
		if p.selected > 0 {
			p.selected--
		} else if p.selected == -1 && len(p.names) > 0 {
			p.selected = 0
		}
	case "down", "j":
		if p.selected < len(p.names)-1 {
			p.selected++
		}
	case "enter":
		if p.selected >= 0 && p.selected < len(p.names) {
			out, err := p.open(p.selected)
			if err != nil {
				p.message = fmt.Sprintf("Error: %v", err)
				return m, nil
			}
			if err := m.engine.SetMIDIOut(out); err != nil {
				m.report(err)
			} else {
				m.say("Connected to: " + out.Name())
			}
		}
		m.mode = sequencerMode
	case "d":
		if err := m.engine.SetMIDIOut(nil); err != nil {
			m.report(err)
		} else {
			m.say("MIDI output disconnected")
		}
		m.mode = sequencerMode
	case "esc", "q", "o":
		m.mode = sequencerMode
	case "r":
		p.refresh()
	}
	return m, nil
}

func (m Model) viewPorts() string {
	p := m.ports

	var b strings.Builder
	b.WriteString(titleStyle.Render("Select MIDI Output") + "\n\n")

	connected := ""
	if out := m.engine.MIDIOut(); out != nil {
		connected = out.Name()
	}

	if len(p.names) == 0 {
		b.WriteString("No MIDI output ports found.\n\n")
		b.WriteString("Make sure your MIDI interface is connected.\n")
	}
	for i, name := range p.names {
		cursor := "  "
		if i == p.selected {
			cursor = "> "
		}
		suffix := ""
		if name == connected {
			suffix = " (connected)"
		}
		line := cursor + name + suffix
		if i == p.selected {
			b.WriteString(selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n")
	if p.message != "" {
		b.WriteString(labelStyle.Render(p.message) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("↑/k: up • ↓/j: down • enter: select • d: disconnect • r: refresh • q/esc: cancel"))
	return b.String()
}
