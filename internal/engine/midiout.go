package engine

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the rtmidi driver

	"github.com/icco/rhythmbox/internal/sequencer"
	"github.com/icco/rhythmbox/internal/synth"
)

// MIDIOutPorts lists the names of the available MIDI output ports.
func MIDIOutPorts() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

type heldNote struct {
	channel, key uint8
}

// MIDIOut mirrors the sequence to an external MIDI port: every step sends
// note-offs for the previous step's notes followed by note-ons for the new
// ones.
type MIDIOut struct {
	mu   sync.Mutex
	name string
	port drivers.Out
	send func(msg midi.Message) error
	held []heldNote
}

// OpenMIDIOut connects to the output port at index in MIDIOutPorts.
func OpenMIDIOut(index int) (*MIDIOut, error) {
	outs := midi.GetOutPorts()
	if index < 0 || index >= len(outs) {
		return nil, fmt.Errorf("invalid port index %d", index)
	}
	out := outs[index]
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", out.String(), err)
	}
	m := NewMIDIOut(out.String(), send)
	m.port = out
	return m, nil
}

// NewMIDIOut returns a MIDIOut writing through send.
func NewMIDIOut(name string, send func(msg midi.Message) error) *MIDIOut {
	return &MIDIOut{name: name, send: send}
}

// Name returns the port name.
func (m *MIDIOut) Name() string {
	return m.name
}

// Step releases the notes of the last step and plays batch.
func (m *MIDIOut) Step(_ int, batch []synth.Trigger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.send == nil {
		return
	}

	for _, n := range m.held {
		_ = m.send(midi.NoteOff(n.channel, n.key))
	}
	m.held = m.held[:0]
	for _, t := range batch {
		ch, key := sequencer.NoteFor(t)
		_ = m.send(midi.NoteOn(ch, key, sequencer.VelocityFor(t)))
		m.held = append(m.held, heldNote{ch, key})
	}
}

// AllNotesOff releases every held note on the port.
func (m *MIDIOut) AllNotesOff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allNotesOff()
}

func (m *MIDIOut) allNotesOff() {
	if m.send == nil {
		return
	}
	for _, ch := range []uint8{sequencer.ToneChannel, sequencer.DrumChannel} {
		_ = m.send(midi.ControlChange(ch, 123, 0))
	}
	m.held = m.held[:0]
}

// Close silences the port and closes it.
func (m *MIDIOut) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allNotesOff()
	m.send = nil
	if m.port != nil {
		if err := m.port.Close(); err != nil {
			return fmt.Errorf("error closing %s: %w", m.name, err)
		}
		m.port = nil
	}
	return nil
}
