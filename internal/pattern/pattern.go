// Package pattern holds the step grid the sequencer plays.
package pattern

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultLength is the usual step count of a pattern (one bar of sixteenths).
	DefaultLength = 16
	// DefaultVelocity is the velocity given to newly created steps.
	DefaultVelocity = 127
	// DefaultBassNote is C2, the note the bass track plays unless edited.
	DefaultBassNote = 36
	// MaxNote is the highest MIDI note number.
	MaxNote = 127
)

// ErrOutOfRange is returned by edits addressing a track or step that does not exist.
var ErrOutOfRange = errors.New("pattern: index out of range")

// Instrument identifies the voice a track triggers
type Instrument int

const (
	Kick Instrument = iota
	Snare
	HiHat
	Bass
	Pad
	Lead
	numInstruments
)

var instrumentNames = [numInstruments]string{"kick", "snare", "hihat", "bass", "pad", "lead"}

func (i Instrument) String() string {
	if i < 0 || i >= numInstruments {
		return fmt.Sprintf("instrument(%d)", int(i))
	}
	return instrumentNames[i]
}

// Tonal reports whether the instrument plays the step's note.
func (i Instrument) Tonal() bool {
	return i == Bass || i == Pad || i == Lead
}

// ParseInstrument maps a name such as "kick" or "Hi-Hat" to an Instrument.
func ParseInstrument(s string) (Instrument, error) {
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	for i, n := range instrumentNames {
		if n == name {
			return Instrument(i), nil
		}
	}
	return 0, fmt.Errorf("unknown instrument %q", s)
}

// MarshalText implements encoding.TextMarshaler so configs can name instruments.
func (i Instrument) MarshalText() ([]byte, error) {
	if i < 0 || i >= numInstruments {
		return nil, fmt.Errorf("unknown instrument %d", int(i))
	}
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Instrument) UnmarshalText(b []byte) error {
	v, err := ParseInstrument(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Step is one cell of a track's timeline.
type Step struct {
	Active   bool
	Velocity uint8 // 0-127
	Note     uint8 // MIDI note number
}

// Track is one row of the grid. Its steps are allocated by New and always
// match the owning pattern's length.
type Track struct {
	Name            string
	Instrument      Instrument
	Volume          float32 // 0.0 - 1.0
	Pan             float32 // -1.0 (L) to 1.0 (R)
	FilterCutoff    float32 // Hz
	FilterResonance float32
	Note            uint8 // note given to new steps

	steps []Step
}

// NewTrack returns a track with unity volume, centered pan and an open filter.
func NewTrack(name string, instrument Instrument) Track {
	note := uint8(60)
	if instrument == Bass {
		note = DefaultBassNote
	}
	return Track{
		Name:            name,
		Instrument:      instrument,
		Volume:          1.0,
		FilterCutoff:    20000,
		FilterResonance: 0.7,
		Note:            note,
	}
}

// Step returns the step at index i.
func (t Track) Step(i int) Step {
	return t.steps[i]
}

// Len returns the number of steps in the track.
func (t Track) Len() int {
	return len(t.steps)
}

// Pattern is an ordered set of tracks sharing one length.
type Pattern struct {
	tracks []Track
	length int
}

// New builds a pattern of the given length. Every track gets a fresh,
// inactive step sequence of exactly that length.
func New(length int, tracks ...Track) Pattern {
	if length < 1 {
		length = DefaultLength
	}
	p := Pattern{
		tracks: make([]Track, len(tracks)),
		length: length,
	}
	for i, t := range tracks {
		t.steps = make([]Step, length)
		for j := range t.steps {
			t.steps[j] = Step{Velocity: DefaultVelocity, Note: t.Note}
		}
		p.tracks[i] = t
	}
	return p
}

// Default returns the four-track kit: kick, snare, hi-hat and bass.
func Default() Pattern {
	return New(DefaultLength,
		NewTrack("Kick", Kick),
		NewTrack("Snare", Snare),
		NewTrack("Hi-Hat", HiHat),
		NewTrack("Bass", Bass),
	)
}

// Len returns the step count shared by all tracks.
func (p Pattern) Len() int {
	return p.length
}

// NumTracks returns the number of tracks.
func (p Pattern) NumTracks() int {
	return len(p.tracks)
}

// Track returns track i. The returned value shares step storage with the
// pattern and must be treated as read-only.
func (p Pattern) Track(i int) Track {
	return p.tracks[i]
}

// Step returns the step at (track, step).
func (p Pattern) Step(track, step int) Step {
	return p.tracks[track].steps[step]
}

// Clone returns a deep copy that shares no storage with p.
func (p Pattern) Clone() Pattern {
	c := Pattern{
		tracks: make([]Track, len(p.tracks)),
		length: p.length,
	}
	for i, t := range p.tracks {
		t.steps = append([]Step(nil), t.steps...)
		c.tracks[i] = t
	}
	return c
}

func (p *Pattern) check(track, step int) error {
	if track < 0 || track >= len(p.tracks) {
		return fmt.Errorf("track %d of %d: %w", track, len(p.tracks), ErrOutOfRange)
	}
	if step < 0 || step >= p.length {
		return fmt.Errorf("step %d of %d: %w", step, p.length, ErrOutOfRange)
	}
	return nil
}

// Toggle flips the active flag of a step.
func (p *Pattern) Toggle(track, step int) error {
	if err := p.check(track, step); err != nil {
		return err
	}
	s := &p.tracks[track].steps[step]
	s.Active = !s.Active
	return nil
}

// SetActive sets the active flag of a step.
func (p *Pattern) SetActive(track, step int, active bool) error {
	if err := p.check(track, step); err != nil {
		return err
	}
	p.tracks[track].steps[step].Active = active
	return nil
}

// SetNote changes the note a step plays on tonal tracks.
func (p *Pattern) SetNote(track, step, note int) error {
	if err := p.check(track, step); err != nil {
		return err
	}
	if note < 0 || note > MaxNote {
		return fmt.Errorf("note %d: %w", note, ErrOutOfRange)
	}
	p.tracks[track].steps[step].Note = uint8(note)
	return nil
}

// SetVelocity changes a step's velocity.
func (p *Pattern) SetVelocity(track, step, velocity int) error {
	if err := p.check(track, step); err != nil {
		return err
	}
	if velocity < 0 || velocity > 127 {
		return fmt.Errorf("velocity %d: %w", velocity, ErrOutOfRange)
	}
	p.tracks[track].steps[step].Velocity = uint8(velocity)
	return nil
}

// ClearTrack deactivates every step of a track.
func (p *Pattern) ClearTrack(track int) error {
	if err := p.check(track, 0); err != nil {
		return err
	}
	for i := range p.tracks[track].steps {
		p.tracks[track].steps[i].Active = false
	}
	return nil
}

// SetVolume sets a track's volume, clamped to 0..1.
func (p *Pattern) SetVolume(track int, volume float32) error {
	if err := p.check(track, 0); err != nil {
		return err
	}
	p.tracks[track].Volume = clamp(volume, 0, 1)
	return nil
}

// SetPan sets a track's pan, clamped to -1..1.
func (p *Pattern) SetPan(track int, pan float32) error {
	if err := p.check(track, 0); err != nil {
		return err
	}
	p.tracks[track].Pan = clamp(pan, -1, 1)
	return nil
}

// SetFilter sets a track's filter cutoff and resonance.
func (p *Pattern) SetFilter(track int, cutoff, resonance float32) error {
	if err := p.check(track, 0); err != nil {
		return err
	}
	p.tracks[track].FilterCutoff = max(cutoff, 0)
	p.tracks[track].FilterResonance = max(resonance, 0)
	return nil
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
