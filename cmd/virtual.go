package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/icco/rhythmbox/internal/engine"
	"github.com/icco/rhythmbox/internal/sequencer"
)

var deviceName string

var virtualCmd = &cobra.Command{
	Use:   "virtual",
	Short: "Play the drum voices from a virtual MIDI input",
	Long: `Create a virtual MIDI input device that plays the built-in voices.

The device shows up as a MIDI output destination in other music software.
General MIDI kick, snare and hi-hat keys play the drums and every other note
plays the bass.

Example:
  rhythmbox virtual --name "Rhythm Box"
`,
	RunE: runVirtual,
}

func init() {
	virtualCmd.Flags().StringVarP(&deviceName, "name", "n", "", "name for the virtual MIDI device (default from config)")
	virtualCmd.Flags().BoolVar(&headless, "headless", false, "render audio without a sound card")
	rootCmd.AddCommand(virtualCmd)
}

func runVirtual(cmd *cobra.Command, args []string) error {
	name := deviceName
	if name == "" {
		name = cfg.MIDI.PortName
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.Start(cmd.Context()); err != nil {
		return err
	}

	m := newVirtualModel(name, e)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		<-c
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

const maxMessageHistory = 20

type virtualModel struct {
	deviceName string
	engine     *engine.Engine
	driver     *rtmididrv.Driver
	inPort     drivers.In
	stop       func()

	held     map[heldKey]uint8 // velocity by channel and key
	history  []string
	received int
	dropped  int
	err      error
	width    int
	height   int
	program  *tea.Program
}

type heldKey struct {
	channel, key uint8
}

type midiEventMsg struct {
	text     string
	on, off  bool
	reset    bool
	channel  uint8
	key      uint8
	velocity uint8
	dropped  bool
}

type initResultMsg struct {
	driver *rtmididrv.Driver
	inPort drivers.In
	err    error
}

func newVirtualModel(name string, e *engine.Engine) *virtualModel {
	return &virtualModel{
		deviceName: name,
		engine:     e,
		held:       make(map[heldKey]uint8),
		history:    make([]string, 0, maxMessageHistory),
	}
}

func (m *virtualModel) Init() tea.Cmd {
	return m.openPort
}

func (m *virtualModel) openPort() tea.Msg {
	driver, err := rtmididrv.New()
	if err != nil {
		return initResultMsg{err: fmt.Errorf("failed to initialize MIDI driver: %w", err)}
	}
	port, err := driver.OpenVirtualIn(m.deviceName)
	if err != nil {
		driver.Close()
		return initResultMsg{err: fmt.Errorf("failed to create virtual MIDI port: %w", err)}
	}
	return initResultMsg{driver: driver, inPort: port}
}

func (m *virtualModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case initResultMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.driver = msg.driver
		m.inPort = msg.inPort
		return m, m.listen

	case midiEventMsg:
		m.record(msg)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, m.cleanup
		}
	}
	return m, nil
}

func (m *virtualModel) listen() tea.Msg {
	if m.inPort == nil {
		return nil
	}
	stop, err := m.inPort.Listen(func(data []byte, _ int32) {
		ev, ok := m.receive(midi.Message(data))
		if ok && m.program != nil {
			m.program.Send(ev)
		}
	}, drivers.ListenConfig{})
	if err != nil {
		return initResultMsg{err: fmt.Errorf("failed to listen to MIDI port: %w", err)}
	}
	m.stop = stop
	return nil
}

// receive plays note-ons through the engine and describes the message for
// the log. It runs on the driver's callback goroutine.
func (m *virtualModel) receive(msg midi.Message) (midiEventMsg, bool) {
	var ch, key, vel, cc, val uint8
	var rel int16
	var abs uint16

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		played := m.engine.Trigger(sequencer.TriggerFromNote(key, vel))
		return midiEventMsg{
			text:     fmt.Sprintf("Note On:  Ch%d %-4s vel:%d", ch+1, midiNoteName(key), vel),
			on:       true,
			channel:  ch,
			key:      key,
			velocity: vel,
			dropped:  !played,
		}, true
	case msg.GetNoteEnd(&ch, &key):
		return midiEventMsg{
			text:    fmt.Sprintf("Note Off: Ch%d %-4s", ch+1, midiNoteName(key)),
			off:     true,
			channel: ch,
			key:     key,
		}, true
	case msg.GetControlChange(&ch, &cc, &val):
		return midiEventMsg{
			text:  fmt.Sprintf("CC:       Ch%d ctrl:%d val:%d", ch+1, cc, val),
			reset: cc == 123,
		}, true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return midiEventMsg{text: fmt.Sprintf("Pitch Bend: Ch%d %d", ch+1, rel)}, true
	}
	return midiEventMsg{}, false
}

func (m *virtualModel) record(ev midiEventMsg) {
	m.received++
	k := heldKey{ev.channel, ev.key}
	switch {
	case ev.on:
		m.held[k] = ev.velocity
	case ev.off:
		delete(m.held, k)
	case ev.reset:
		clear(m.held)
	}
	if ev.dropped {
		m.dropped++
	}

	m.history = append([]string{ev.text}, m.history...)
	if len(m.history) > maxMessageHistory {
		m.history = m.history[:maxMessageHistory]
	}
}

func (m *virtualModel) cleanup() tea.Msg {
	if m.stop != nil {
		m.stop()
	}
	if m.inPort != nil {
		m.inPort.Close()
	}
	if m.driver != nil {
		m.driver.Close()
	}
	return tea.Quit()
}

var (
	vTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	vSubtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	vStatusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	vErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	vNoteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	vHelpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	vLogStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	vLatestStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
)

func (m *virtualModel) View() string {
	var b strings.Builder

	b.WriteString(vTitleStyle.Render("Rhythm Box Virtual Input") + "\n\n")

	if m.err != nil {
		b.WriteString(vErrorStyle.Render("Error: "+m.err.Error()) + "\n\n")
		b.WriteString(vHelpStyle.Render("Press Ctrl+C to quit"))
		return b.String()
	}

	b.WriteString(vSubtitleStyle.Render("Device Name: ") + m.deviceName + "\n")
	if m.inPort != nil {
		b.WriteString(vSubtitleStyle.Render("MIDI Port: ") + vStatusStyle.Render(m.inPort.String()) + "\n\n")
		b.WriteString(vStatusStyle.Render("● Listening for MIDI") + "\n\n")
	} else {
		b.WriteString(vSubtitleStyle.Render("MIDI Port: ") + "Initializing...\n\n")
	}

	b.WriteString(vSubtitleStyle.Render("Held Notes:") + "\n")
	if len(m.held) == 0 {
		b.WriteString("  (no notes held)\n")
	} else {
		notes := make([]string, 0, len(m.held))
		for k := range m.held {
			notes = append(notes, fmt.Sprintf("Ch%d:%s", k.channel+1, midiNoteName(k.key)))
		}
		sort.Strings(notes)
		b.WriteString("  " + vNoteStyle.Render(strings.Join(notes, " ")) + "\n")
	}

	fmt.Fprintf(&b, "\n%s\n", vSubtitleStyle.Render(fmt.Sprintf("Message Log: [%d total, %d dropped]", m.received, m.dropped)))
	if len(m.history) == 0 {
		b.WriteString("  " + vLogStyle.Render("(waiting for input)") + "\n")
	}
	for i, line := range m.history[:min(len(m.history), 10)] {
		if i == 0 {
			b.WriteString("  " + vLatestStyle.Render("▶ "+line) + "\n")
		} else {
			b.WriteString("  " + vLogStyle.Render("  "+line) + "\n")
		}
	}

	b.WriteString("\n" + renderKeyboard(m.held) + "\n")
	b.WriteString("\n" + vHelpStyle.Render("q/ctrl+c: quit"))
	return b.String()
}

// renderKeyboard draws two octaves from C2, covering the drum keys and the
// bass register.
func renderKeyboard(held map[heldKey]uint8) string {
	down := make(map[uint8]bool)
	for k := range held {
		down[k.key] = true
	}

	whiteStyle := lipgloss.NewStyle().Background(lipgloss.Color("#FFFFFF")).Foreground(lipgloss.Color("#000000"))
	blackStyle := lipgloss.NewStyle().Background(lipgloss.Color("#000000")).Foreground(lipgloss.Color("#FFFFFF"))
	activeWhite := lipgloss.NewStyle().Background(lipgloss.Color("#00FF00")).Foreground(lipgloss.Color("#000000"))
	activeBlack := lipgloss.NewStyle().Background(lipgloss.Color("#00AA00")).Foreground(lipgloss.Color("#FFFFFF"))

	whiteKeys := []uint8{0, 2, 4, 5, 7, 9, 11}
	blackKeys := []int{1, 3, -1, 6, 8, 10, -1}

	var top, bottom strings.Builder
	for octave := 2; octave <= 3; octave++ {
		base := uint8(octave*12 + 12)
		for i, off := range blackKeys {
			switch {
			case off < 0:
				top.WriteString(" ")
			case down[base+uint8(off)]:
				top.WriteString(activeBlack.Render("█"))
			default:
				top.WriteString(blackStyle.Render("█"))
			}
			top.WriteString(" ")

			if down[base+whiteKeys[i]] {
				bottom.WriteString(activeWhite.Render("█"))
			} else {
				bottom.WriteString(whiteStyle.Render("█"))
			}
			bottom.WriteString(" ")
		}
	}
	return top.String() + "\n" + bottom.String()
}

func midiNoteName(note uint8) string {
	notes := []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	return fmt.Sprintf("%s%d", notes[note%12], int(note/12)-1)
}
