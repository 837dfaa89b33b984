// Package config loads rhythmbox settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/icco/rhythmbox/internal/pattern"
	"github.com/icco/rhythmbox/internal/sequencer"
	"github.com/icco/rhythmbox/internal/synth"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

const maxPatternLength = 64

// Track describes one grid row.
type Track struct {
	Name            string             `yaml:"name"`
	Instrument      pattern.Instrument `yaml:"instrument"`
	Volume          float32            `yaml:"volume"`
	Pan             float32            `yaml:"pan"`
	FilterCutoff    float32            `yaml:"filter_cutoff,omitempty"`
	FilterResonance float32            `yaml:"filter_resonance,omitempty"`
	Note            int                `yaml:"note,omitempty"` // 0 picks the instrument default
}

// UnmarshalYAML starts each track at unity volume so a track listed
// without one is audible.
func (t *Track) UnmarshalYAML(value *yaml.Node) error {
	type plain Track
	p := plain{Volume: 1}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Track(p)
	return nil
}

// Export holds defaults for the export command.
type Export struct {
	Loops          int    `yaml:"loops"`
	Dir            string `yaml:"dir"`
	CarryRemainder bool   `yaml:"carry_remainder"`
}

// MIDI holds settings for the virtual input port.
type MIDI struct {
	PortName string `yaml:"port_name"`
}

// Config is the whole settings file.
type Config struct {
	BPM           int     `yaml:"bpm"`
	SampleRate    int     `yaml:"sample_rate"`
	Channels      int     `yaml:"channels"`
	NoiseSeed     uint32  `yaml:"noise_seed"`
	BassNote      int     `yaml:"bass_note"`
	PatternLength int     `yaml:"pattern_length"`
	Tracks        []Track `yaml:"tracks"`
	Export        Export  `yaml:"export"`
	MIDI          MIDI    `yaml:"midi"`
}

// Default returns the built-in settings: 120 BPM, stereo at 44.1kHz and
// the four-track kit.
func Default() Config {
	return Config{
		BPM:           120,
		SampleRate:    synth.DefaultSampleRate,
		Channels:      2,
		NoiseSeed:     synth.DefaultSeed,
		BassNote:      pattern.DefaultBassNote,
		PatternLength: pattern.DefaultLength,
		Tracks: []Track{
			{Name: "Kick", Instrument: pattern.Kick, Volume: 1},
			{Name: "Snare", Instrument: pattern.Snare, Volume: 1},
			{Name: "Hi-Hat", Instrument: pattern.HiHat, Volume: 1},
			{Name: "Bass", Instrument: pattern.Bass, Volume: 1},
		},
		Export: Export{
			Loops:          4,
			Dir:            ".",
			CarryRemainder: true,
		},
		MIDI: MIDI{PortName: "rhythmbox"},
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error finding config dir: %w", err)
	}
	return filepath.Join(dir, "rhythmbox", "config.yaml"), nil
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("error reading config: %w", err)
	}

	// A tracks list in the file replaces the default kit entirely.
	cfg.Tracks = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("error parsing %s: %w", path, err)
	}
	if cfg.Tracks == nil {
		cfg.Tracks = Default().Tracks
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // not secret
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

// Validate reports every out-of-range field.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.BPM < sequencer.MinBPM || c.BPM > sequencer.MaxBPM {
		bad("bpm %d outside %d..%d", c.BPM, sequencer.MinBPM, sequencer.MaxBPM)
	}
	if c.SampleRate <= 0 {
		bad("sample_rate %d must be positive", c.SampleRate)
	}
	if c.Channels < 1 || c.Channels > 2 {
		bad("channels %d outside 1..2", c.Channels)
	}
	if c.PatternLength < 1 || c.PatternLength > maxPatternLength {
		bad("pattern_length %d outside 1..%d", c.PatternLength, maxPatternLength)
	}
	if c.BassNote < 0 || c.BassNote > pattern.MaxNote {
		bad("bass_note %d outside 0..%d", c.BassNote, pattern.MaxNote)
	}
	if c.Export.Loops < 1 {
		bad("export.loops %d must be at least 1", c.Export.Loops)
	}
	if len(c.Tracks) == 0 {
		bad("no tracks")
	}
	for i, t := range c.Tracks {
		if t.Volume < 0 || t.Volume > 1 {
			bad("track %d volume %v outside 0..1", i, t.Volume)
		}
		if t.Pan < -1 || t.Pan > 1 {
			bad("track %d pan %v outside -1..1", i, t.Pan)
		}
		if t.Note < 0 || t.Note > pattern.MaxNote {
			bad("track %d note %d outside 0..%d", i, t.Note, pattern.MaxNote)
		}
	}
	return errors.Join(errs...)
}

// Pattern builds an empty pattern with the configured tracks.
func (c Config) Pattern() pattern.Pattern {
	tracks := make([]pattern.Track, len(c.Tracks))
	for i, t := range c.Tracks {
		tr := pattern.NewTrack(t.Name, t.Instrument)
		tr.Volume = t.Volume
		tr.Pan = t.Pan
		if t.FilterCutoff > 0 {
			tr.FilterCutoff = t.FilterCutoff
		}
		if t.FilterResonance > 0 {
			tr.FilterResonance = t.FilterResonance
		}
		switch {
		case t.Note > 0:
			tr.Note = uint8(t.Note) //nolint:gosec // validated
		case t.Instrument == pattern.Bass:
			tr.Note = uint8(c.BassNote) //nolint:gosec // validated
		}
		tracks[i] = tr
	}
	return pattern.New(c.PatternLength, tracks...)
}
