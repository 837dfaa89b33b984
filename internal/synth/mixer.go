package synth

// DefaultSampleRate is used wherever no device rate is known.
const DefaultSampleRate = 44100

// defaultPolyphony is the initial voice capacity; spawning past it grows
// the slice, rendering never does.
const defaultPolyphony = 64

// Mixer owns the active voices of one renderer. It is not safe for
// concurrent use; each renderer builds its own.
type Mixer struct {
	voices     []Voice
	rng        XorShift
	sampleRate int
}

// NewMixer returns an empty mixer rendering at sampleRate with its own
// noise generator seeded by seed.
func NewMixer(sampleRate int, seed uint32) *Mixer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Mixer{
		voices:     make([]Voice, 0, defaultPolyphony),
		rng:        NewXorShift(seed),
		sampleRate: sampleRate,
	}
}

// SampleRate returns the rate voices are advanced at.
func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// Spawn starts a new voice. Identical triggers are not merged.
func (m *Mixer) Spawn(t Trigger) {
	m.voices = append(m.voices, NewVoice(t, m.sampleRate))
}

// Active returns the number of sounding voices.
func (m *Mixer) Active() int {
	return len(m.voices)
}

// RenderSample advances every voice by one sample, drops the ones that
// finished and returns the clamped sum. It does not allocate.
func (m *Mixer) RenderSample() float32 {
	var sum float32
	n := 0
	for i := range m.voices {
		out, done := m.voices[i].Next(&m.rng)
		sum += out
		if !done {
			m.voices[n] = m.voices[i]
			n++
		}
	}
	m.voices = m.voices[:n]
	return clamp(sum)
}

// Render fills buf with consecutive mixed samples.
func (m *Mixer) Render(buf []float32) {
	for i := range buf {
		buf[i] = m.RenderSample()
	}
}

// Reset silences all voices immediately.
func (m *Mixer) Reset() {
	m.voices = m.voices[:0]
}
