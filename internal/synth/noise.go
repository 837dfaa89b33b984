package synth

// DefaultSeed is the xorshift state used when no seed is configured.
const DefaultSeed uint32 = 123456789

// XorShift is a 32-bit xorshift generator. Each mixer owns one, so noise
// sequences never race between renderers and are reproducible per seed.
type XorShift struct {
	state uint32
}

// NewXorShift returns a generator seeded with seed. A zero seed would lock
// the generator at zero, so it is replaced by DefaultSeed.
func NewXorShift(seed uint32) XorShift {
	if seed == 0 {
		seed = DefaultSeed
	}
	return XorShift{state: seed}
}

// Next advances the generator.
func (x *XorShift) Next() uint32 {
	s := x.state
	s ^= s << 13
	s ^= s >> 17
	s ^= s << 5
	x.state = s
	return s
}

// Noise returns a white-noise sample in [-0.5, 0.5).
func (x *XorShift) Noise() float32 {
	return float32(x.Next()%1000)/1000 - 0.5
}
