package synth

import (
	"math"

	"github.com/chewxy/math32"
)

const twoPi = float32(2 * math.Pi)

// Voice lengths in seconds.
const (
	KickDuration  float32 = 0.30
	SnareDuration float32 = 0.15
	HiHatDuration float32 = 0.05
	BassDuration  float32 = 0.20
	PadDuration   float32 = 0.60
	LeadDuration  float32 = 0.25
)

// Duration returns how long a voice of kind k sounds.
func Duration(k Kind) float32 {
	switch k {
	case Kick:
		return KickDuration
	case Snare:
		return SnareDuration
	case HiHat:
		return HiHatDuration
	case Bass:
		return BassDuration
	case Pad:
		return PadDuration
	case Lead:
		return LeadDuration
	}
	return 0
}

// NoteToFreq converts a MIDI note number to frequency in Hz
func NoteToFreq(note uint8) float32 {
	// A4 (note 69) = 440 Hz
	return 440 * math32.Pow(2, (float32(note)-69)/12)
}

// Sample evaluates the voice of kind k at elapsed seconds since its trigger.
// noise is a white-noise value in [-0.5, 0.5) and is ignored by tonal kinds.
// finished is true once elapsed has reached the kind's duration, in which
// case the output is silent. Outputs are clamped to [-1, 1].
func Sample(k Kind, note uint8, elapsed, noise float32) (out float32, finished bool) {
	d := Duration(k)
	if elapsed >= d || d == 0 {
		return 0, true
	}
	t := elapsed / d

	switch k {
	case Kick:
		// 150 Hz falling to 40 Hz over the hit
		freq := 150 + (40-150)*t
		env := (1 - t) * (1 - t)
		out = math32.Sin(twoPi*freq*elapsed) * env * 0.5
	case Snare:
		env := math32.Pow(1-t, 1.5)
		tone := math32.Sin(twoPi * 180 * elapsed)
		out = (noise*0.7 + tone*0.3) * env * 0.4
	case HiHat:
		env := (1 - t) * (1 - t) * (1 - t)
		out = noise * env * 0.2
	case Bass:
		env := math32.Sqrt(1 - t)
		out = math32.Sin(twoPi*NoteToFreq(note)*elapsed) * env * 0.3
	case Pad:
		f := NoteToFreq(note)
		saws := saw(f*elapsed) + saw(f*1.01*elapsed) + saw(f*0.99*elapsed)
		env := math32.Sin(math.Pi * t)
		out = saws / 3 * env * 0.25
	case Lead:
		sq := float32(1)
		if frac(NoteToFreq(note)*elapsed) >= 0.5 {
			sq = -1
		}
		out = sq * (1 - t) * 0.2
	}
	return clamp(out), false
}

func frac(x float32) float32 {
	return x - math32.Floor(x)
}

func saw(cycles float32) float32 {
	return 2*frac(cycles) - 1
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
