package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/icco/rhythmbox/internal/pattern"
	"github.com/icco/rhythmbox/internal/sequencer"
	"github.com/icco/rhythmbox/internal/synth"
)

func patternWith(t *testing.T, cells ...[2]int) pattern.Pattern {
	t.Helper()
	p := pattern.Default()
	for _, c := range cells {
		if err := p.SetActive(c[0], c[1], true); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func TestRendererMatchesMixer(t *testing.T) {
	ch := sequencer.NewTriggerChannel(8)
	ch.Send(synth.KickTrigger())
	r := NewRenderer(ch, synth.DefaultSampleRate, 2, synth.DefaultSeed)

	buf := make([]float32, 512*2)
	r.Render(buf)

	m := synth.NewMixer(synth.DefaultSampleRate, synth.DefaultSeed)
	m.Spawn(synth.KickTrigger())
	for f := 0; f < 512; f++ {
		want := m.RenderSample()
		if buf[2*f] != want || buf[2*f+1] != want {
			t.Fatalf("frame %d = (%v, %v), want %v in both channels", f, buf[2*f], buf[2*f+1], want)
		}
	}
	if ch.Pending() != 0 {
		t.Errorf("Pending() = %d after render", ch.Pending())
	}
	if r.ActiveVoices() != 1 {
		t.Errorf("ActiveVoices() = %d, want 1", r.ActiveVoices())
	}
}

func TestRendererZeroesPartialFrame(t *testing.T) {
	ch := sequencer.NewTriggerChannel(8)
	r := NewRenderer(ch, synth.DefaultSampleRate, 2, synth.DefaultSeed)
	buf := []float32{1, 1, 1}
	r.Render(buf)
	for i, v := range buf {
		if v != 0 {
			t.Errorf("buf[%d] = %v, want 0", i, v)
		}
	}
}

func TestRendererDoesNotAllocate(t *testing.T) {
	ch := sequencer.NewTriggerChannel(8)
	r := NewRenderer(ch, synth.DefaultSampleRate, 2, synth.DefaultSeed)
	buf := make([]float32, 1024)
	allocs := testing.AllocsPerRun(100, func() {
		ch.Send(synth.HiHatTrigger())
		r.Render(buf)
	})
	if allocs != 0 {
		t.Errorf("Render allocated %v times per run", allocs)
	}
}

func decodeFloat32LE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

func TestOutputReadsOneDeviceBuffer(t *testing.T) {
	ch := sequencer.NewTriggerChannel(8)
	o := newOutput(NewRenderer(ch, synth.DefaultSampleRate, 1, synth.DefaultSeed))
	frames := BufferFrames(synth.DefaultSampleRate)
	if frames != 882 {
		t.Fatalf("BufferFrames = %d, want 882", frames)
	}

	// oto's default request is half a second.
	p := make([]byte, synth.DefaultSampleRate/2*4)
	var got []float32
	for range 2 {
		ch.Send(synth.KickTrigger())
		n, err := o.Read(p)
		if err != nil {
			t.Fatal(err)
		}
		if n != frames*4 {
			t.Fatalf("Read returned %d bytes, want %d", n, frames*4)
		}
		got = append(got, decodeFloat32LE(p[:n])...)
	}
	if cap(o.buf) != frames {
		t.Errorf("render buffer grew to %d samples", cap(o.buf))
	}

	// The second kick starts one device buffer after the first.
	m := synth.NewMixer(synth.DefaultSampleRate, synth.DefaultSeed)
	for i := range got {
		if i%frames == 0 {
			m.Spawn(synth.KickTrigger())
		}
		if want := m.RenderSample(); got[i] != want {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestOutputReadDoesNotAllocate(t *testing.T) {
	ch := sequencer.NewTriggerChannel(8)
	o := newOutput(NewRenderer(ch, synth.DefaultSampleRate, 2, synth.DefaultSeed))
	p := make([]byte, synth.DefaultSampleRate*2*4)
	allocs := testing.AllocsPerRun(50, func() {
		ch.Send(synth.SnareTrigger())
		_, _ = o.Read(p)
	})
	if allocs != 0 {
		t.Errorf("Read allocated %v times per run", allocs)
	}
}

func TestHeadlessPullsBuffers(t *testing.T) {
	ch := sequencer.NewTriggerChannel(8)
	r := NewRenderer(ch, synth.DefaultSampleRate, 1, synth.DefaultSeed)
	h := NewHeadless(r, 256)

	var buffers, loud atomic.Int32
	h.Tap = func(buf []float32) {
		buffers.Add(1)
		for _, v := range buf {
			if v != 0 {
				loud.Add(1)
				return
			}
		}
	}
	ch.Send(synth.KickTrigger())
	if err := h.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if buffers.Load() == 0 || loud.Load() == 0 {
		t.Errorf("headless rendered %d buffers, %d audible", buffers.Load(), loud.Load())
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestStepLength(t *testing.T) {
	tests := []struct {
		name  string
		step  int
		carry bool
		want  int
	}{
		{"first truncated", 0, false, 5512},
		{"second truncated", 1, false, 5512},
		{"first carried", 0, true, 5512},
		{"second carried", 1, true, 5513},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StepLength(tt.step, 44100, 120, tt.carry); got != tt.want {
				t.Errorf("StepLength = %d, want %d", got, tt.want)
			}
		})
	}
	if got := StepStart(16, 44100, 120, true); got != 88200 {
		t.Errorf("carried bar = %d samples, want 88200", got)
	}
	if got := StepStart(16, 44100, 120, false); got != 16*5512 {
		t.Errorf("truncated bar = %d samples, want %d", got, 16*5512)
	}
}

func TestOfflineSingleKick(t *testing.T) {
	p := patternWith(t, [2]int{0, 0})
	opts := OfflineOptions{BPM: 120, Loops: 1, SampleRate: 44100}

	var chunks []int
	var out []float32
	err := RenderOffline(p, opts, func(chunk []float32) error {
		chunks = append(chunks, len(chunk))
		out = append(out, chunk...)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 16 || chunks[0] != 5512 {
		t.Fatalf("got %d chunks, first %d; want 16 chunks of 5512", len(chunks), chunks[0])
	}

	audible := false
	for _, v := range out[:5512] {
		if v != 0 {
			audible = true
			break
		}
	}
	if !audible {
		t.Error("first step is silent")
	}

	kickEnd := int(math.Ceil(float64(synth.KickDuration*44100))) + 1
	for i, v := range out[kickEnd:] {
		if v != 0 {
			t.Fatalf("sample %d = %v after the kick finished", kickEnd+i, v)
		}
	}
}

func TestOfflineMatchesMixer(t *testing.T) {
	p := patternWith(t, [2]int{1, 0}, [2]int{2, 0})
	got, err := Render(p, OfflineOptions{BPM: 120, Loops: 1})
	if err != nil {
		t.Fatal(err)
	}

	m := synth.NewMixer(synth.DefaultSampleRate, synth.DefaultSeed)
	m.Spawn(synth.SnareTrigger())
	m.Spawn(synth.HiHatTrigger())
	for i := 0; i < 5512; i++ {
		if want := m.RenderSample(); got[i] != want {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestOfflineRejectsEmpty(t *testing.T) {
	p := pattern.Default()
	if _, err := Render(p, OfflineOptions{BPM: 120, Loops: 0}); !errors.Is(err, ErrEmptyExport) {
		t.Errorf("Render with zero loops = %v, want ErrEmptyExport", err)
	}
	if _, err := Render(p, OfflineOptions{BPM: 5, Loops: 1}); err == nil {
		t.Error("Render at 5 BPM succeeded")
	}
}

func TestToPCM16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{0.5, 16384},
		{-0.5, -16384},
		{2, 32767},
		{-2, -32768},
	}
	for _, tt := range tests {
		if got := ToPCM16(tt.in); got != tt.want {
			t.Errorf("ToPCM16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWAVSinkHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	sink, err := CreateWAV(path, 44100, 1)
	if err != nil {
		t.Fatal(err)
	}
	pcm := []int16{0, 100, -100, 32767, -32768}
	if err := sink.WriteSamples(pcm); err != nil {
		t.Fatal(err)
	}
	if sink.Samples() != len(pcm) {
		t.Errorf("Samples() = %d", sink.Samples())
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 44+2*len(pcm) {
		t.Fatalf("file is %d bytes, want %d", len(data), 44+2*len(pcm))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("bad chunk ids in header % x", data[:44])
	}
	le := binary.LittleEndian
	if f := le.Uint16(data[20:]); f != 1 {
		t.Errorf("audio format = %d, want PCM", f)
	}
	if c := le.Uint16(data[22:]); c != 1 {
		t.Errorf("channels = %d, want 1", c)
	}
	if sr := le.Uint32(data[24:]); sr != 44100 {
		t.Errorf("sample rate = %d", sr)
	}
	if bits := le.Uint16(data[34:]); bits != 16 {
		t.Errorf("bit depth = %d", bits)
	}
	if size := le.Uint32(data[40:]); size != uint32(2*len(pcm)) {
		t.Errorf("data size = %d, want %d", size, 2*len(pcm))
	}
	for i, want := range pcm {
		if got := int16(le.Uint16(data[44+2*i:])); got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestExportIsDeterministic(t *testing.T) {
	p := patternWith(t, [2]int{0, 0}, [2]int{1, 4}, [2]int{2, 2}, [2]int{2, 6}, [2]int{3, 8})
	opts := OfflineOptions{BPM: 120, Loops: 2, CarryRemainder: true}
	dir := t.TempDir()

	var files [2][]byte
	for i := range files {
		path := filepath.Join(dir, []string{"a.wav", "b.wav"}[i])
		sink, err := CreateWAV(path, synth.DefaultSampleRate, 1)
		if err != nil {
			t.Fatal(err)
		}
		report, err := Export(p, opts, sink)
		if err != nil {
			t.Fatal(err)
		}
		if report.Samples != 2*88200 {
			t.Errorf("report.Samples = %d, want %d", report.Samples, 2*88200)
		}
		if report.Peak <= 0 || report.Peak > 1 {
			t.Errorf("report.Peak = %v", report.Peak)
		}
		if files[i], err = os.ReadFile(path); err != nil {
			t.Fatal(err)
		}
	}
	if !bytes.Equal(files[0], files[1]) {
		t.Error("two exports of the same pattern differ")
	}
}

type failingSink struct{ closed bool }

func (f *failingSink) WriteSamples([]int16) error { return errors.New("disk full") }
func (f *failingSink) Close() error               { f.closed = true; return nil }

func TestExportClosesSinkOnError(t *testing.T) {
	sink := &failingSink{}
	if _, err := Export(pattern.Default(), OfflineOptions{BPM: 120, Loops: 1}, sink); err == nil {
		t.Fatal("Export succeeded with a failing sink")
	}
	if !sink.closed {
		t.Error("sink was not closed")
	}
}

func TestAnalyze(t *testing.T) {
	buf := make([]float32, 1000)
	for i := range buf {
		buf[i] = 0.5
		if i%2 == 1 {
			buf[i] = -0.5
		}
	}
	r := Analyze(buf, 1000)
	if r.Peak != 0.5 || math.Abs(float64(r.RMS)-0.5) > 1e-6 {
		t.Errorf("Analyze = peak %v rms %v, want 0.5 and 0.5", r.Peak, r.RMS)
	}
	if r.Duration != time.Second {
		t.Errorf("Duration = %v", r.Duration)
	}
	if db := r.PeakDBFS(); math.Abs(db+6.0206) > 0.001 {
		t.Errorf("PeakDBFS = %v", db)
	}
	if !math.IsInf(Analyze(nil, 44100).RMSDBFS(), -1) {
		t.Error("silence should be -Inf dBFS")
	}
}

func TestMIDIExport(t *testing.T) {
	p := patternWith(t, [2]int{0, 0}, [2]int{0, 4}, [2]int{0, 8}, [2]int{0, 12}, [2]int{3, 2})
	path := filepath.Join(t.TempDir(), "out.mid")
	if err := WriteMIDI(path, p, 120, 2); err != nil {
		t.Fatal(err)
	}

	rd, err := smf.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if tc := rd.TempoChanges(); len(tc) == 0 || tc[0].BPM != 120 {
		t.Errorf("TempoChanges() = %v, want 120 BPM", tc)
	}
	if len(rd.Tracks) != 1+p.NumTracks() {
		t.Fatalf("got %d tracks, want %d", len(rd.Tracks), 1+p.NumTracks())
	}

	counts := map[[2]uint8]int{}
	for _, track := range rd.Tracks {
		for _, ev := range track {
			var ch, key, vel uint8
			if midi.Message(ev.Message).GetNoteStart(&ch, &key, &vel) {
				counts[[2]uint8{ch, key}]++
			}
		}
	}
	if got := counts[[2]uint8{sequencer.DrumChannel, 36}]; got != 8 {
		t.Errorf("kick notes = %d, want 8", got)
	}
	if got := counts[[2]uint8{sequencer.ToneChannel, pattern.DefaultBassNote}]; got != 2 {
		t.Errorf("bass notes = %d, want 2", got)
	}

	if _, err := BuildMIDI(p, 120, 0); !errors.Is(err, ErrEmptyExport) {
		t.Errorf("BuildMIDI with zero loops = %v", err)
	}
}

func TestReadMIDIRestoresPattern(t *testing.T) {
	p := patternWith(t, [2]int{0, 0}, [2]int{1, 4}, [2]int{2, 2}, [2]int{3, 7})
	if err := p.SetNote(3, 7, 43); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "loop.mid")
	if err := WriteMIDI(path, p, 96, 1); err != nil {
		t.Fatal(err)
	}

	got, bpm, err := ReadMIDI(path, pattern.Default())
	if err != nil {
		t.Fatal(err)
	}
	if bpm != 96 {
		t.Errorf("bpm = %d, want 96", bpm)
	}
	for tr := 0; tr < p.NumTracks(); tr++ {
		for s := 0; s < p.Len(); s++ {
			if got.Step(tr, s).Active != p.Step(tr, s).Active {
				t.Errorf("step %d/%d active = %v", tr, s, got.Step(tr, s).Active)
			}
		}
	}
	if n := got.Step(3, 7).Note; n != 43 {
		t.Errorf("bass note = %d, want 43", n)
	}

	if _, _, err := ReadMIDI(filepath.Join(t.TempDir(), "missing.mid"), p); err == nil {
		t.Error("ReadMIDI of a missing file succeeded")
	}
}
