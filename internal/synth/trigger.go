// Package synth renders the drum and tonal voices and mixes them.
package synth

import (
	"fmt"

	"github.com/icco/rhythmbox/internal/pattern"
)

// Kind is the closed set of voices the engine can play.
type Kind uint8

const (
	Kick Kind = iota
	Snare
	HiHat
	Bass
	Pad
	Lead
)

func (k Kind) String() string {
	switch k {
	case Kick:
		return "Kick"
	case Snare:
		return "Snare"
	case HiHat:
		return "HiHat"
	case Bass:
		return "Bass"
	case Pad:
		return "Pad"
	case Lead:
		return "Lead"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Noisy reports whether the kind consumes white noise.
func (k Kind) Noisy() bool {
	return k == Snare || k == HiHat
}

// KindOf maps a track instrument to the voice kind it triggers.
func KindOf(i pattern.Instrument) Kind {
	switch i {
	case pattern.Snare:
		return Snare
	case pattern.HiHat:
		return HiHat
	case pattern.Bass:
		return Bass
	case pattern.Pad:
		return Pad
	case pattern.Lead:
		return Lead
	}
	return Kick
}

// Trigger requests that a voice start sounding. Note is only read by tonal
// kinds; Gain scales the voice before it is clamped.
type Trigger struct {
	Kind Kind
	Note uint8
	Gain float32
}

func (t Trigger) String() string {
	switch t.Kind {
	case Bass, Pad, Lead:
		return fmt.Sprintf("%v(%d)", t.Kind, t.Note)
	}
	return t.Kind.String()
}

// KickTrigger, SnareTrigger, HiHatTrigger and BassTrigger build unity-gain triggers.
func KickTrigger() Trigger  { return Trigger{Kind: Kick, Gain: 1} }
func SnareTrigger() Trigger { return Trigger{Kind: Snare, Gain: 1} }
func HiHatTrigger() Trigger { return Trigger{Kind: HiHat, Gain: 1} }

func BassTrigger(note uint8) Trigger {
	return Trigger{Kind: Bass, Note: note, Gain: 1}
}
