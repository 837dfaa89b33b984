// Package tui is the terminal front-end: a step grid over an engine.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/icco/rhythmbox/internal/audio"
	"github.com/icco/rhythmbox/internal/engine"
	"github.com/icco/rhythmbox/internal/pattern"
)

// pollInterval is how often the view re-reads the engine.
const pollInterval = 60 * time.Millisecond

type viewMode int

const (
	sequencerMode viewMode = iota
	browserMode
	portMode
)

type tickMsg time.Time

type exportedMsg struct {
	path   string
	midi   bool
	report audio.Report
	err    error
}

// Model is the bubbletea model for the sequencer screen.
type Model struct {
	engine *engine.Engine
	mode   viewMode
	keys   keyMap
	help   help.Model

	cursor  pattern.Cursor
	pat     pattern.Pattern
	step    int
	playing bool
	bpm     int

	browser fileBrowser
	ports   portPicker
	loops   int

	message string
	isError bool
	width   int
	height  int
}

// New returns a model driving e. Exports are rendered loops times.
func New(e *engine.Engine, loops int) Model {
	m := Model{
		engine:  e,
		keys:    defaultKeyMap(),
		help:    help.New(),
		browser: newFileBrowser(e.Config().Export.Dir),
		ports:   newPortPicker(),
		loops:   max(loops, 1),
	}
	m.refresh()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh copies the engine state the view draws from.
func (m *Model) refresh() {
	m.pat = m.engine.Snapshot()
	m.step = m.engine.CurrentStep()
	m.playing = m.engine.Playing()
	m.bpm = m.engine.BPM()
	m.cursor.Move(0, 0, m.pat)
}

func (m *Model) report(err error) {
	if err != nil {
		m.message = err.Error()
		m.isError = true
	}
}

func (m *Model) say(msg string) {
	m.message = msg
	m.isError = false
}

// Init starts the poll loop.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input and engine polling.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case exportedMsg:
		switch {
		case msg.err != nil:
			m.report(msg.err)
		case msg.midi:
			m.say("Saved " + msg.path)
		default:
			m.say("Exported " + msg.path + ": " + msg.report.String())
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit
		}
		switch m.mode {
		case browserMode:
			return m.updateFileBrowser(msg)
		case portMode:
			return m.updatePorts(msg)
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, m.quit
		}
		return m.updateSequencer(msg)
	}
	return m, nil
}

func (m Model) quit() tea.Msg {
	m.engine.SetPlaying(false)
	return tea.Quit()
}

// View renders the current mode.
func (m Model) View() string {
	switch m.mode {
	case browserMode:
		return m.viewFileBrowser()
	case portMode:
		return m.viewPorts()
	}
	return m.viewSequencer()
}
