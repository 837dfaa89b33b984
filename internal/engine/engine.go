// Package engine ties the pattern, step clock and audio output together
// behind the edit interface the front-ends use.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/icco/rhythmbox/internal/audio"
	"github.com/icco/rhythmbox/internal/config"
	"github.com/icco/rhythmbox/internal/pattern"
	"github.com/icco/rhythmbox/internal/sequencer"
	"github.com/icco/rhythmbox/internal/synth"
)

// headlessFrames is the buffer size of the null device.
const headlessFrames = 512

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithHeadless renders into a ticker-driven null device instead of the
// sound card.
func WithHeadless() Option {
	return func(e *Engine) {
		e.openDevice = func(r *audio.Renderer) (audio.Device, error) {
			return audio.NewHeadless(r, headlessFrames), nil
		}
	}
}

// WithDevice overrides how the output device is acquired.
func WithDevice(open func(r *audio.Renderer) (audio.Device, error)) Option {
	return func(e *Engine) {
		e.openDevice = open
	}
}

func openOutput(r *audio.Renderer) (audio.Device, error) {
	out, err := audio.OpenOutput(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Engine owns the shared pattern and the realtime pipeline. All methods are
// safe for concurrent use.
type Engine struct {
	cfg config.Config
	log *slog.Logger

	mu  sync.RWMutex
	pat pattern.Pattern

	triggers   *sequencer.TriggerChannel
	clock      *sequencer.Clock
	renderer   *audio.Renderer
	openDevice func(r *audio.Renderer) (audio.Device, error)

	outMu   sync.Mutex
	midiOut *MIDIOut

	runMu  sync.Mutex
	device audio.Device
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a stopped engine from cfg. Nothing touches the audio device
// until Start.
func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		log:        slog.Default(),
		pat:        cfg.Pattern(),
		triggers:   sequencer.NewTriggerChannel(sequencer.DefaultChannelCapacity),
		openDevice: openOutput,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.clock = sequencer.NewClock(e, e.triggers, cfg.BPM, e.log)
	e.renderer = audio.NewRenderer(e.triggers, cfg.SampleRate, cfg.Channels, cfg.NoiseSeed)
	return e
}

// Start acquires the output device and starts the clock. On error the
// engine stays usable for editing and export.
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.cancel != nil {
		return nil
	}

	dev, err := e.openDevice(e.renderer)
	if err != nil {
		return fmt.Errorf("error opening audio output: %w", err)
	}
	if err := dev.Start(); err != nil {
		_ = dev.Close()
		return fmt.Errorf("error starting audio output: %w", err)
	}
	e.device = dev

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.clock.Run(ctx)
	}()

	e.log.Info("engine started",
		"sample_rate", e.renderer.SampleRate(),
		"channels", e.renderer.Channels(),
		"bpm", e.clock.BPM())
	return nil
}

// Close stops the clock and releases the device and any MIDI output.
func (e *Engine) Close() error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	merr := e.SetMIDIOut(nil)
	if e.cancel == nil {
		return merr
	}
	e.clock.SetPlaying(false)
	e.cancel()
	e.wg.Wait()
	e.cancel = nil

	err := e.device.Close()
	e.device = nil

	e.log.Info("engine stopped",
		"contended_drains", e.triggers.Contended(),
		"dropped_triggers", e.triggers.Dropped())
	if err != nil {
		return fmt.Errorf("error closing audio output: %w", err)
	}
	return merr
}

// ReadPattern runs fn with the pattern read-locked.
func (e *Engine) ReadPattern(fn func(p pattern.Pattern)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.pat)
}

func (e *Engine) edit(fn func(p *pattern.Pattern) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&e.pat)
}

// Snapshot returns a copy of the pattern.
func (e *Engine) Snapshot() pattern.Pattern {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pat.Clone()
}

// LoadMIDI replaces the pattern with the notes of a MIDI file laid over
// the configured tracks, and takes the file's tempo if it has one.
func (e *Engine) LoadMIDI(path string) error {
	p, bpm, err := audio.ReadMIDI(path, e.cfg.Pattern())
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.pat = p
	e.mu.Unlock()
	if bpm != 0 {
		e.clock.SetBPM(bpm)
	}
	e.log.Info("loaded midi", "path", path, "bpm", e.clock.BPM())
	return nil
}

// ToggleStep flips one cell of the grid.
func (e *Engine) ToggleStep(track, step int) error {
	return e.edit(func(p *pattern.Pattern) error { return p.Toggle(track, step) })
}

// SetNote changes the note a step plays.
func (e *Engine) SetNote(track, step, note int) error {
	return e.edit(func(p *pattern.Pattern) error { return p.SetNote(track, step, note) })
}

// SetVelocity changes how hard a step is played.
func (e *Engine) SetVelocity(track, step, velocity int) error {
	return e.edit(func(p *pattern.Pattern) error { return p.SetVelocity(track, step, velocity) })
}

// ClearTrack deactivates every step of a track.
func (e *Engine) ClearTrack(track int) error {
	return e.edit(func(p *pattern.Pattern) error { return p.ClearTrack(track) })
}

// SetTrackVolume sets a track's volume, clamped to 0..1.
func (e *Engine) SetTrackVolume(track int, volume float32) error {
	return e.edit(func(p *pattern.Pattern) error { return p.SetVolume(track, volume) })
}

// SetTrackPan sets a track's pan, clamped to -1..1.
func (e *Engine) SetTrackPan(track int, pan float32) error {
	return e.edit(func(p *pattern.Pattern) error { return p.SetPan(track, pan) })
}

// SetTrackFilter sets a track's filter parameters.
func (e *Engine) SetTrackFilter(track int, cutoff, resonance float32) error {
	return e.edit(func(p *pattern.Pattern) error { return p.SetFilter(track, cutoff, resonance) })
}

// BPM returns the tempo of the next playback run.
func (e *Engine) BPM() int {
	return e.clock.BPM()
}

// SetBPM changes the tempo. It applies from the next time playback starts.
func (e *Engine) SetBPM(bpm int) error {
	if bpm < sequencer.MinBPM || bpm > sequencer.MaxBPM {
		return fmt.Errorf("bpm %d outside %d..%d", bpm, sequencer.MinBPM, sequencer.MaxBPM)
	}
	e.clock.SetBPM(bpm)
	return nil
}

// Playing reports whether the clock is stepping.
func (e *Engine) Playing() bool {
	return e.clock.Playing()
}

// SetPlaying starts or pauses playback without moving the position.
func (e *Engine) SetPlaying(on bool) {
	if e.clock.Playing() == on {
		return
	}
	e.clock.SetPlaying(on)
	e.log.Info("playback", "playing", on, "step", e.clock.CurrentStep(), "bpm", e.clock.BPM())
	if !on {
		e.outMu.Lock()
		if e.midiOut != nil {
			e.midiOut.AllNotesOff()
		}
		e.outMu.Unlock()
	}
}

// TogglePlaying flips playback and returns the new state.
func (e *Engine) TogglePlaying() bool {
	on := !e.clock.Playing()
	e.SetPlaying(on)
	return on
}

// CurrentStep returns the step most recently played.
func (e *Engine) CurrentStep() int {
	return e.clock.CurrentStep()
}

// Trigger plays t on the next audio buffer. It reports false if the
// trigger channel was full.
func (e *Engine) Trigger(t synth.Trigger) bool {
	return e.triggers.Send(t) == 1
}

// SetMIDIOut mirrors playback to m, closing the previous port. A nil m
// disconnects.
func (e *Engine) SetMIDIOut(m *MIDIOut) error {
	e.outMu.Lock()
	defer e.outMu.Unlock()

	if m == nil {
		e.clock.Observe(nil)
	} else {
		e.clock.Observe(m.Step)
		e.log.Info("midi out connected", "port", m.Name())
	}
	old := e.midiOut
	e.midiOut = m
	if old != nil && old != m {
		return old.Close()
	}
	return nil
}

// MIDIOut returns the connected MIDI output, if any.
func (e *Engine) MIDIOut() *MIDIOut {
	e.outMu.Lock()
	defer e.outMu.Unlock()
	return e.midiOut
}

// Config returns the settings the engine was built with.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// DefaultExportPath returns a timestamped file name in the export dir.
func (e *Engine) DefaultExportPath(ext string) string {
	name := fmt.Sprintf("rhythm-box-%d%s", time.Now().Unix(), ext)
	return filepath.Join(e.cfg.Export.Dir, name)
}

func (e *Engine) offlineOptions(loops int) audio.OfflineOptions {
	return audio.OfflineOptions{
		BPM:            e.clock.BPM(),
		Loops:          loops,
		SampleRate:     e.cfg.SampleRate,
		Seed:           e.cfg.NoiseSeed,
		CarryRemainder: e.cfg.Export.CarryRemainder,
	}
}

// Export renders the current pattern loops times into a mono WAV file. It
// does not touch the live output.
func (e *Engine) Export(path string, loops int) (audio.Report, error) {
	p := e.Snapshot()
	sink, err := audio.CreateWAV(path, e.cfg.SampleRate, 1)
	if err != nil {
		return audio.Report{}, err
	}
	report, err := audio.Export(p, e.offlineOptions(loops), sink)
	if err != nil {
		return report, err
	}
	e.log.Info("exported wav",
		"path", path,
		"samples", report.Samples,
		"peak_dbfs", report.PeakDBFS(),
		"rms_dbfs", report.RMSDBFS())
	return report, nil
}

// ExportMIDI writes the current pattern loops times as a MIDI file.
func (e *Engine) ExportMIDI(path string, loops int) error {
	if err := audio.WriteMIDI(path, e.Snapshot(), e.clock.BPM(), loops); err != nil {
		return err
	}
	e.log.Info("exported midi", "path", path, "loops", loops)
	return nil
}
