package sequencer

import "github.com/icco/rhythmbox/internal/synth"

const (
	// DrumChannel is General MIDI channel 10 (zero-based).
	DrumChannel = 9
	// ToneChannel carries bass, pad and lead notes.
	ToneChannel = 0

	gmKick  = 36
	gmSnare = 38
	gmHiHat = 42
)

// NoteFor returns the MIDI channel and key a trigger is written as.
func NoteFor(t synth.Trigger) (channel, key uint8) {
	switch t.Kind {
	case synth.Kick:
		return DrumChannel, gmKick
	case synth.Snare:
		return DrumChannel, gmSnare
	case synth.HiHat:
		return DrumChannel, gmHiHat
	}
	return ToneChannel, t.Note
}

// VelocityFor converts a trigger gain back to a MIDI velocity.
func VelocityFor(t synth.Trigger) uint8 {
	v := int(t.Gain*127 + 0.5)
	return uint8(max(1, min(v, 127)))
}

// TriggerFromNote maps an incoming note-on to a trigger: General MIDI kick,
// snare and hi-hat keys play drums, everything else plays the bass.
func TriggerFromNote(key, velocity uint8) synth.Trigger {
	gain := float32(velocity) / 127
	switch key {
	case 35, 36:
		return synth.Trigger{Kind: synth.Kick, Gain: gain}
	case 37, 38, 39, 40:
		return synth.Trigger{Kind: synth.Snare, Gain: gain}
	case 42, 44, 46:
		return synth.Trigger{Kind: synth.HiHat, Gain: gain}
	}
	return synth.Trigger{Kind: synth.Bass, Note: key, Gain: gain}
}
