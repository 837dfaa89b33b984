package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/icco/rhythmbox/internal/pattern"
	"github.com/icco/rhythmbox/internal/sequencer"
	"github.com/icco/rhythmbox/internal/synth"
)

// ErrEmptyExport is returned when an export would contain no steps.
var ErrEmptyExport = errors.New("audio: nothing to export")

// OfflineOptions controls an offline render.
type OfflineOptions struct {
	BPM        int
	Loops      int
	SampleRate int
	Seed       uint32

	// CarryRemainder keeps the fractional part of each step's length so
	// long exports do not drift. When false every step is truncated.
	CarryRemainder bool
}

func (o OfflineOptions) withDefaults() OfflineOptions {
	if o.SampleRate <= 0 {
		o.SampleRate = synth.DefaultSampleRate
	}
	if o.Seed == 0 {
		o.Seed = synth.DefaultSeed
	}
	return o
}

// StepStart returns the sample index at which step i of an offline render
// begins.
func StepStart(i, sampleRate, bpm int, carry bool) int {
	// samples per step is sampleRate*60 / (bpm*4)
	num := int64(sampleRate) * 60
	den := int64(bpm) * 4
	if carry {
		return int(num * int64(i) / den)
	}
	return int(num/den) * i
}

// StepLength returns the number of samples rendered for step i.
func StepLength(i, sampleRate, bpm int, carry bool) int {
	return StepStart(i+1, sampleRate, bpm, carry) - StepStart(i, sampleRate, bpm, carry)
}

// RenderOffline walks pattern length × loops virtual steps, spawning each
// step's triggers into a private mixer and emitting that step's samples.
// The chunk passed to emit is reused between calls.
func RenderOffline(p pattern.Pattern, opts OfflineOptions, emit func(chunk []float32) error) error {
	opts = opts.withDefaults()
	if opts.Loops < 1 || p.Len() == 0 {
		return ErrEmptyExport
	}
	if opts.BPM < sequencer.MinBPM || opts.BPM > sequencer.MaxBPM {
		return fmt.Errorf("bpm %d outside %d..%d", opts.BPM, sequencer.MinBPM, sequencer.MaxBPM)
	}

	mixer := synth.NewMixer(opts.SampleRate, opts.Seed)
	chunk := make([]float32, StepLength(0, opts.SampleRate, opts.BPM, false)+1)
	batch := make([]synth.Trigger, 0, p.NumTracks())

	steps := p.Len() * opts.Loops
	for i := 0; i < steps; i++ {
		batch = sequencer.AppendTriggers(batch[:0], p, i%p.Len())
		for _, t := range batch {
			mixer.Spawn(t)
		}

		n := StepLength(i, opts.SampleRate, opts.BPM, opts.CarryRemainder)
		buf := chunk[:n]
		mixer.Render(buf)
		if err := emit(buf); err != nil {
			return err
		}
	}
	return nil
}

// Render returns the whole offline render as one buffer.
func Render(p pattern.Pattern, opts OfflineOptions) ([]float32, error) {
	opts = opts.withDefaults()
	var out []float32
	if opts.BPM > 0 && opts.Loops > 0 {
		out = make([]float32, 0, StepStart(p.Len()*opts.Loops, opts.SampleRate, opts.BPM, opts.CarryRemainder))
	}
	err := RenderOffline(p, opts, func(chunk []float32) error {
		out = append(out, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Export renders p into sink as 16-bit PCM, finalizes the sink and reports
// the level of what was written. The sink is closed on every path.
func Export(p pattern.Pattern, opts OfflineOptions, sink SampleSink) (Report, error) {
	opts = opts.withDefaults()
	var meter Meter
	var pcm []int16

	err := RenderOffline(p, opts, func(chunk []float32) error {
		meter.Add(chunk)
		if cap(pcm) < len(chunk) {
			pcm = make([]int16, len(chunk))
		}
		pcm = pcm[:len(chunk)]
		for i, v := range chunk {
			pcm[i] = ToPCM16(v)
		}
		return sink.WriteSamples(pcm)
	})
	if err != nil {
		_ = sink.Close()
		return Report{}, fmt.Errorf("error rendering export: %w", err)
	}
	if err := sink.Close(); err != nil {
		return Report{}, fmt.Errorf("error finalizing export: %w", err)
	}
	return meter.Report(opts.SampleRate), nil
}

// ToPCM16 converts a sample in [-1, 1] to signed 16-bit PCM.
func ToPCM16(v float32) int16 {
	x := math.Round(float64(v) * 32767)
	return int16(max(-32768, min(x, 32767)))
}
