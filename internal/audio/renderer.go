// Package audio binds the mixer to a live output device and renders
// patterns offline for export.
package audio

import (
	"github.com/icco/rhythmbox/internal/sequencer"
	"github.com/icco/rhythmbox/internal/synth"
)

// Renderer fills device buffers. It owns its mixer; the trigger channel is
// the only state it shares with the scheduling side.
type Renderer struct {
	mixer    *synth.Mixer
	triggers *sequencer.TriggerChannel
	channels int
}

// NewRenderer returns a renderer producing interleaved frames of channels
// identical samples at sampleRate.
func NewRenderer(triggers *sequencer.TriggerChannel, sampleRate, channels int, seed uint32) *Renderer {
	if channels < 1 {
		channels = 1
	}
	return &Renderer{
		mixer:    synth.NewMixer(sampleRate, seed),
		triggers: triggers,
		channels: channels,
	}
}

// SampleRate returns the rate the renderer's voices run at.
func (r *Renderer) SampleRate() int {
	return r.mixer.SampleRate()
}

// Channels returns the interleaved channel count.
func (r *Renderer) Channels() int {
	return r.channels
}

// ActiveVoices returns the number of voices sounding after the last buffer.
// Only meaningful from the render goroutine or after it has stopped.
func (r *Renderer) ActiveVoices() int {
	return r.mixer.Active()
}

// Render is the buffer-fill callback. Pending triggers are drained first so
// they start on the buffer's first frame; if the channel is busy the buffer
// is rendered with no new onsets rather than waiting.
func (r *Renderer) Render(buf []float32) {
	r.triggers.Drain(r.mixer)

	frames := len(buf) / r.channels
	i := 0
	for f := 0; f < frames; f++ {
		s := r.mixer.RenderSample()
		for c := 0; c < r.channels; c++ {
			buf[i] = s
			i++
		}
	}
	clear(buf[i:])
}
