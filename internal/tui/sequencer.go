package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/icco/rhythmbox/internal/pattern"
	"github.com/icco/rhythmbox/internal/sequencer"
)

const (
	bpmStep      = 5
	velocityStep = 8
)

func (m Model) updateSequencer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""
	c := m.cursor

	switch {
	case key.Matches(msg, m.keys.Left):
		m.cursor.Move(-1, 0, m.pat)
	case key.Matches(msg, m.keys.Right):
		m.cursor.Move(1, 0, m.pat)
	case key.Matches(msg, m.keys.Up):
		m.cursor.Move(0, -1, m.pat)
	case key.Matches(msg, m.keys.Down):
		m.cursor.Move(0, 1, m.pat)
	case key.Matches(msg, m.keys.Toggle):
		m.report(m.engine.ToggleStep(c.Track, c.Step))
	case key.Matches(msg, m.keys.Play):
		m.engine.TogglePlaying()
	case key.Matches(msg, m.keys.Faster):
		m.setBPM(m.engine.BPM() + bpmStep)
	case key.Matches(msg, m.keys.Slower):
		m.setBPM(m.engine.BPM() - bpmStep)
	case key.Matches(msg, m.keys.NoteUp):
		s := m.pat.Step(c.Track, c.Step)
		m.report(m.engine.SetNote(c.Track, c.Step, min(int(s.Note)+1, pattern.MaxNote)))
	case key.Matches(msg, m.keys.NoteDown):
		s := m.pat.Step(c.Track, c.Step)
		m.report(m.engine.SetNote(c.Track, c.Step, max(int(s.Note)-1, 0)))
	case key.Matches(msg, m.keys.Louder):
		s := m.pat.Step(c.Track, c.Step)
		m.report(m.engine.SetVelocity(c.Track, c.Step, min(int(s.Velocity)+velocityStep, 127)))
	case key.Matches(msg, m.keys.Softer):
		s := m.pat.Step(c.Track, c.Step)
		m.report(m.engine.SetVelocity(c.Track, c.Step, max(int(s.Velocity)-velocityStep, 1)))
	case key.Matches(msg, m.keys.Clear):
		m.report(m.engine.ClearTrack(c.Track))
	case key.Matches(msg, m.keys.Export):
		m.say("Exporting...")
		return m, m.export(m.engine.DefaultExportPath(".wav"))
	case key.Matches(msg, m.keys.ExportMIDI):
		return m, m.export(m.engine.DefaultExportPath(".mid"))
	case key.Matches(msg, m.keys.Load):
		m.mode = browserMode
		m.browser.loadFiles()
	case key.Matches(msg, m.keys.Ports):
		m.mode = portMode
		m.ports.refresh()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.refresh()
	return m, nil
}

func (m *Model) setBPM(bpm int) {
	bpm = max(sequencer.MinBPM, min(bpm, sequencer.MaxBPM))
	if err := m.engine.SetBPM(bpm); err != nil {
		m.report(err)
		return
	}
	if m.engine.Playing() {
		m.say(fmt.Sprintf("BPM %d from the next play", bpm))
	}
}

// export renders in the background so the grid stays responsive.
func (m Model) export(path string) tea.Cmd {
	e, loops := m.engine, m.loops
	return func() tea.Msg {
		if strings.HasSuffix(path, ".mid") {
			return exportedMsg{path: path, midi: true, err: e.ExportMIDI(path, loops)}
		}
		report, err := e.Export(path, loops)
		return exportedMsg{path: path, report: report, err: err}
	}
}

func (m Model) viewSequencer() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Rhythm Box") + "\n\n")
	fmt.Fprintf(&b, "BPM: %d (use +/- to adjust)\n", m.bpm)
	if out := m.engine.MIDIOut(); out != nil {
		fmt.Fprintf(&b, "MIDI Out: %s ✓\n\n", out.Name())
	} else {
		b.WriteString("MIDI Out: Not connected (press 'o' to select)\n\n")
	}

	b.WriteString(renderClockBar(m.pat.Len(), m.playing, m.step) + "\n\n")

	// 14 chars: 8 for the track name and 6 for the note
	b.WriteString("Track   Note  ")
	for i := 0; i < m.pat.Len(); i++ {
		fmt.Fprintf(&b, "%-3s", fmt.Sprintf(" %X", i%16))
	}
	b.WriteString("\n")

	for tr := 0; tr < m.pat.NumTracks(); tr++ {
		track := m.pat.Track(tr)
		name := fmt.Sprintf("%-8s", truncate(track.Name, 7))
		note := "     "
		if track.Instrument.Tonal() {
			note = fmt.Sprintf("%-5s", midiNoteToName(int(m.pat.Step(tr, m.cursor.Step).Note)))
		}
		if tr == m.cursor.Track {
			b.WriteString(selectedStyle.Render(name + note + " "))
		} else {
			b.WriteString(name + note + " ")
		}

		for step := 0; step < m.pat.Len(); step++ {
			s := m.pat.Step(tr, step)
			cell := " · "
			if s.Active {
				cell = " ● "
			}

			cellStyle := lipgloss.NewStyle().Width(3)
			if tr == m.cursor.Track && step == m.cursor.Step {
				cellStyle = cellStyle.Background(lipgloss.Color("#7D56F4"))
			}
			switch {
			case m.playing && step == m.step:
				cellStyle = cellStyle.Foreground(lipgloss.Color("#00FF00")).Bold(true)
			case s.Active:
				cellStyle = cellStyle.Foreground(lipgloss.Color("#FFD700"))
			default:
				cellStyle = cellStyle.Foreground(lipgloss.Color("#666666"))
			}
			b.WriteString(cellStyle.Render(cell))
		}
		b.WriteString("\n")
	}

	c := m.pat.Step(m.cursor.Track, m.cursor.Step)
	track := m.pat.Track(m.cursor.Track)
	b.WriteString("\n" + labelStyle.Render(fmt.Sprintf("%s step %d: velocity %d, volume %.2f",
		track.Instrument, m.cursor.Step+1, c.Velocity, track.Volume)) + "\n")

	if m.message != "" {
		if m.isError {
			b.WriteString(errorStyle.Render(m.message) + "\n")
		} else {
			b.WriteString(messageStyle.Render(m.message) + "\n")
		}
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func renderClockBar(steps int, isPlaying bool, currentStep int) string {
	// gradient from cyan to magenta
	colors := []string{
		"#00FFFF", "#00E5FF", "#00CCFF", "#00B2FF",
		"#0099FF", "#0080FF", "#0066FF", "#1A4DFF",
		"#3333FF", "#4D1AFF", "#6600FF", "#8000FF",
		"#9900FF", "#B300FF", "#CC00FF", "#FF00FF",
	}

	var bar strings.Builder
	bar.WriteString("Clock         ")

	for i := 0; i < steps; i++ {
		color := lipgloss.Color(colors[i*len(colors)/steps])
		var cell string
		var cellStyle lipgloss.Style

		switch {
		case isPlaying && i == currentStep:
			cell = " ▶ "
			cellStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(color).
				Bold(true)
		case isPlaying && i < currentStep:
			cell = " █ "
			cellStyle = lipgloss.NewStyle().Foreground(color)
		default:
			cell = " · "
			cellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
		}
		bar.WriteString(cellStyle.Render(cell))
	}

	status := " Stopped"
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	if isPlaying {
		status = " Playing"
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	}
	bar.WriteString(statusStyle.Render(status))

	return bar.String()
}

func midiNoteToName(note int) string {
	notes := []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	octave := (note / 12) - 1
	return fmt.Sprintf("%s%d", notes[note%12], octave)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
