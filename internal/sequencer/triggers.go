package sequencer

import (
	"github.com/icco/rhythmbox/internal/pattern"
	"github.com/icco/rhythmbox/internal/synth"
)

// TriggerFor maps an active step on a track to the trigger it fires. The
// track's instrument picks the voice; tonal voices play the step's note and
// the gain is volume × velocity/127.
func TriggerFor(t pattern.Track, s pattern.Step) synth.Trigger {
	trig := synth.Trigger{
		Kind: synth.KindOf(t.Instrument),
		Gain: t.Volume * float32(s.Velocity) / 127,
	}
	if t.Instrument.Tonal() {
		trig.Note = s.Note
	}
	return trig
}

// AppendTriggers appends a trigger for every track active at step.
func AppendTriggers(dst []synth.Trigger, p pattern.Pattern, step int) []synth.Trigger {
	for i := 0; i < p.NumTracks(); i++ {
		s := p.Step(i, step)
		if !s.Active {
			continue
		}
		dst = append(dst, TriggerFor(p.Track(i), s))
	}
	return dst
}
