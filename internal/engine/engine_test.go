package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/icco/rhythmbox/internal/audio"
	"github.com/icco/rhythmbox/internal/config"
	"github.com/icco/rhythmbox/internal/pattern"
	"github.com/icco/rhythmbox/internal/synth"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()
	e := New(cfg, append([]Option{WithLogger(quietLogger()), WithHeadless()}, opts...)...)
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	})
	return e
}

func TestNewEngine(t *testing.T) {
	e := newEngine(t)
	if e.Playing() {
		t.Error("new engine is playing")
	}
	if e.CurrentStep() != 0 {
		t.Errorf("CurrentStep() = %d, want 0", e.CurrentStep())
	}
	if e.BPM() != 120 {
		t.Errorf("BPM() = %d, want 120", e.BPM())
	}
	if p := e.Snapshot(); p.NumTracks() != 4 || p.Len() != 16 {
		t.Errorf("Snapshot() is %d×%d", p.NumTracks(), p.Len())
	}
}

func TestEdits(t *testing.T) {
	e := newEngine(t)

	if err := e.ToggleStep(0, 3); err != nil {
		t.Fatal(err)
	}
	snap := e.Snapshot()
	if !snap.Step(0, 3).Active {
		t.Fatal("ToggleStep did not activate the step")
	}
	if err := e.ToggleStep(0, 3); err != nil {
		t.Fatal(err)
	}
	if !snap.Step(0, 3).Active {
		t.Error("snapshot changed after a later edit")
	}
	if e.Snapshot().Step(0, 3).Active {
		t.Error("second ToggleStep did not deactivate the step")
	}

	if err := e.SetNote(3, 0, 48); err != nil {
		t.Fatal(err)
	}
	if err := e.SetVelocity(3, 0, 64); err != nil {
		t.Fatal(err)
	}
	if err := e.SetTrackVolume(3, 0.5); err != nil {
		t.Fatal(err)
	}
	got := e.Snapshot()
	if s := got.Step(3, 0); s.Note != 48 || s.Velocity != 64 {
		t.Errorf("step = %+v", s)
	}
	if got.Track(3).Volume != 0.5 {
		t.Errorf("volume = %v", got.Track(3).Volume)
	}

	for _, err := range []error{
		e.ToggleStep(9, 0),
		e.ToggleStep(0, 16),
		e.SetNote(0, -1, 60),
		e.ClearTrack(4),
		e.SetTrackPan(-1, 0),
	} {
		if !errors.Is(err, pattern.ErrOutOfRange) {
			t.Errorf("out of range edit = %v, want ErrOutOfRange", err)
		}
	}
}

func TestSetBPM(t *testing.T) {
	e := newEngine(t)
	if err := e.SetBPM(90); err != nil || e.BPM() != 90 {
		t.Errorf("SetBPM(90) = %v, BPM() = %d", err, e.BPM())
	}
	for _, bpm := range []int{0, 19, 301} {
		if err := e.SetBPM(bpm); err == nil {
			t.Errorf("SetBPM(%d) succeeded", bpm)
		}
	}
	if e.BPM() != 90 {
		t.Errorf("rejected SetBPM changed the tempo to %d", e.BPM())
	}
}

func TestStartFailureKeepsExport(t *testing.T) {
	e := newEngine(t, WithDevice(func(*audio.Renderer) (audio.Device, error) {
		return nil, audio.ErrNoDevice
	}))
	err := e.Start(context.Background())
	if !errors.Is(err, audio.ErrNoDevice) {
		t.Fatalf("Start() = %v, want ErrNoDevice", err)
	}

	if err := e.ToggleStep(0, 0); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.wav")
	report, err := e.Export(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	if report.Samples != 88200 || report.Peak == 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestPlaybackAdvancesAndPauses(t *testing.T) {
	e := newEngine(t)
	if err := e.SetBPM(300); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !e.TogglePlaying() {
		t.Fatal("TogglePlaying() = false, want true")
	}
	time.Sleep(180 * time.Millisecond)
	if e.TogglePlaying() {
		t.Fatal("TogglePlaying() = true, want false")
	}
	step := e.CurrentStep()
	if step < 1 {
		t.Fatalf("CurrentStep() = %d after 180ms at 300 BPM", step)
	}

	time.Sleep(120 * time.Millisecond)
	if e.CurrentStep() != step {
		t.Errorf("step moved from %d to %d while paused", step, e.CurrentStep())
	}
}

func TestConcurrentEditsWhilePlaying(t *testing.T) {
	e := newEngine(t)
	_ = e.SetBPM(300)
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.SetPlaying(true)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 160; i++ {
				_ = e.ToggleStep(w, i%16)
				e.Trigger(synth.HiHatTrigger())
				_ = e.CurrentStep()
			}
		}()
	}
	wg.Wait()
	e.SetPlaying(false)

	// every cell was toggled an even number of times
	p := e.Snapshot()
	for tr := 0; tr < p.NumTracks(); tr++ {
		for s := 0; s < p.Len(); s++ {
			if p.Step(tr, s).Active {
				t.Errorf("step %d/%d left active", tr, s)
			}
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	e := newEngine(t)
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Errorf("second Start() = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestExportMIDI(t *testing.T) {
	e := newEngine(t)
	if err := e.ToggleStep(0, 0); err != nil {
		t.Fatal(err)
	}
	path := e.DefaultExportPath(".mid")
	if filepath.Dir(path) != e.Config().Export.Dir {
		t.Errorf("DefaultExportPath = %s", path)
	}
	if err := e.ExportMIDI(path, 2); err != nil {
		t.Fatal(err)
	}
	if err := e.ExportMIDI(path, 0); !errors.Is(err, audio.ErrEmptyExport) {
		t.Errorf("ExportMIDI with zero loops = %v", err)
	}
}

func TestTrigger(t *testing.T) {
	e := newEngine(t)
	if !e.Trigger(synth.KickTrigger()) {
		t.Error("Trigger() = false on an empty channel")
	}
}

func TestLoadMIDI(t *testing.T) {
	e := newEngine(t)
	for _, c := range [][2]int{{0, 0}, {2, 3}, {3, 9}} {
		if err := e.ToggleStep(c[0], c[1]); err != nil {
			t.Fatal(err)
		}
	}
	_ = e.SetBPM(140)
	path := filepath.Join(t.TempDir(), "saved.mid")
	if err := e.ExportMIDI(path, 1); err != nil {
		t.Fatal(err)
	}

	other := newEngine(t)
	if err := other.LoadMIDI(path); err != nil {
		t.Fatal(err)
	}
	if other.BPM() != 140 {
		t.Errorf("BPM() = %d after load, want 140", other.BPM())
	}
	p := other.Snapshot()
	if !p.Step(0, 0).Active || !p.Step(2, 3).Active || !p.Step(3, 9).Active || p.Step(1, 0).Active {
		t.Error("loaded pattern does not match the saved one")
	}
}
