package synth

// Voice is one sounding instance of a trigger with its own time cursor.
type Voice struct {
	trigger    Trigger
	n          uint32 // samples rendered so far
	sampleRate float32
}

// NewVoice starts a voice for t at the given sample rate.
func NewVoice(t Trigger, sampleRate int) Voice {
	return Voice{trigger: t, sampleRate: float32(sampleRate)}
}

// Trigger returns the trigger the voice was started from.
func (v *Voice) Trigger() Trigger {
	return v.trigger
}

// Elapsed returns the voice's time cursor in seconds. It is derived from
// the sample count so long voices do not accumulate rounding drift.
func (v *Voice) Elapsed() float32 {
	return float32(v.n) / v.sampleRate
}

// Next renders one sample and advances the voice by one sample period.
// finished reports that the voice has played its last sample and must not
// be stepped again.
func (v *Voice) Next(rng *XorShift) (out float32, finished bool) {
	elapsed := v.Elapsed()
	var noise float32
	if v.trigger.Kind.Noisy() && elapsed < Duration(v.trigger.Kind) {
		noise = rng.Noise()
	}
	out, _ = Sample(v.trigger.Kind, v.trigger.Note, elapsed, noise)
	out = clamp(out * v.trigger.Gain)
	v.n++
	return out, v.Elapsed() >= Duration(v.trigger.Kind)
}
