package audio

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/icco/rhythmbox/internal/pattern"
	"github.com/icco/rhythmbox/internal/sequencer"
	"github.com/icco/rhythmbox/internal/synth"
)

const (
	// TicksPerQuarter is the SMF resolution of exported files.
	TicksPerQuarter = 960
	// TicksPerStep is a sixteenth note.
	TicksPerStep = TicksPerQuarter / 4
)

// BuildMIDI lays the pattern out loops times as a Standard MIDI File: a
// tempo track followed by one track per pattern track. Drums go to the
// General MIDI percussion channel, tonal voices to the first channel.
func BuildMIDI(p pattern.Pattern, bpm, loops int) (*smf.SMF, error) {
	if loops < 1 || p.Len() == 0 {
		return nil, ErrEmptyExport
	}

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var track0 smf.Track
	track0.Add(0, smf.MetaMeter(4, 4))
	track0.Add(0, smf.MetaTempo(float64(bpm)))
	track0.Close(0)
	if err := sm.Add(track0); err != nil {
		return nil, fmt.Errorf("error adding tempo track: %w", err)
	}

	steps := p.Len() * loops
	for ti := 0; ti < p.NumTracks(); ti++ {
		tr := p.Track(ti)
		var track smf.Track
		var last uint32

		for i := 0; i < steps; i++ {
			s := p.Step(ti, i%p.Len())
			if !s.Active {
				continue
			}
			trig := sequencer.TriggerFor(tr, s)
			ch, key := sequencer.NoteFor(trig)
			pos := uint32(i) * TicksPerStep //nolint:gosec // i is bounded by steps

			track.Add(pos-last, midi.NoteOn(ch, key, sequencer.VelocityFor(trig)))
			track.Add(TicksPerStep-1, midi.NoteOff(ch, key))
			last = pos + TicksPerStep - 1
		}
		track.Close(uint32(steps)*TicksPerStep - last) //nolint:gosec // steps is small
		if err := sm.Add(track); err != nil {
			return nil, fmt.Errorf("error adding track %d: %w", ti, err)
		}
	}
	return sm, nil
}

// WriteMIDI builds the pattern's MIDI file and writes it to path.
func WriteMIDI(path string, p pattern.Pattern, bpm, loops int) error {
	sm, err := BuildMIDI(p, bpm, loops)
	if err != nil {
		return err
	}
	if err := sm.WriteFile(path); err != nil {
		return fmt.Errorf("error writing MIDI file: %w", err)
	}
	return nil
}

// ReadMIDI lays the notes of a MIDI file over p, wrapping them onto its
// step grid. Drum-channel notes land on the first track with the matching
// drum voice, other notes on the first tonal track. It returns the file's
// first tempo, or 0 if it has none.
func ReadMIDI(path string, p pattern.Pattern) (pattern.Pattern, int, error) {
	rd, err := smf.ReadFile(path)
	if err != nil {
		return p, 0, fmt.Errorf("error reading MIDI file: %w", err)
	}
	ticksPerStep := uint32(TicksPerStep)
	if mt, ok := rd.TimeFormat.(smf.MetricTicks); ok && mt.Resolution() >= 4 {
		ticksPerStep = uint32(mt.Resolution()) / 4
	}

	out := p.Clone()
	for _, track := range rd.Tracks {
		var abs uint32
		for _, ev := range track {
			abs += ev.Delta
			var ch, key, vel uint8
			if !midi.Message(ev.Message).GetNoteStart(&ch, &key, &vel) {
				continue
			}
			ti := trackFor(out, ch, key)
			if ti < 0 {
				continue
			}
			step := int(abs/ticksPerStep) % out.Len()
			_ = out.SetActive(ti, step, true)
			_ = out.SetVelocity(ti, step, int(vel))
			if out.Track(ti).Instrument.Tonal() {
				_ = out.SetNote(ti, step, int(key))
			}
		}
	}

	bpm := 0
	if tc := rd.TempoChanges(); len(tc) > 0 {
		bpm = int(tc[0].BPM + 0.5)
	}
	return out, bpm, nil
}

func trackFor(p pattern.Pattern, channel, key uint8) int {
	kind := sequencer.TriggerFromNote(key, 127).Kind
	tonal := channel != sequencer.DrumChannel || kind == synth.Bass
	for i := 0; i < p.NumTracks(); i++ {
		inst := p.Track(i).Instrument
		if tonal && inst.Tonal() {
			return i
		}
		if !tonal && synth.KindOf(inst) == kind {
			return i
		}
	}
	return -1
}
