package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	bytesPerSample = 4 // float32
	deviceBuffer   = 20 * time.Millisecond
)

// ErrNoDevice wraps failures to acquire an output device.
var ErrNoDevice = errors.New("audio: no usable output device")

// Device is a running audio sink pulling from a Renderer.
type Device interface {
	Start() error
	Close() error
}

// Output plays a Renderer through the system's default device.
type Output struct {
	mu       sync.Mutex
	otoCtx   *oto.Context
	player   *oto.Player
	renderer *Renderer
	buf      []float32
	started  bool
}

// OpenOutput acquires the default device at the renderer's sample rate and
// channel count. Only one Output may exist per process.
func OpenOutput(r *Renderer) (*Output, error) {
	op := &oto.NewContextOptions{
		SampleRate:   r.SampleRate(),
		ChannelCount: r.Channels(),
		Format:       oto.FormatFloat32LE,
		BufferSize:   deviceBuffer,
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	<-readyChan

	o := newOutput(r)
	o.otoCtx = otoCtx
	o.player = otoCtx.NewPlayer(o)
	// oto pulls half a second per Read by default.
	o.player.SetBufferSize(len(o.buf) * bytesPerSample)
	return o, nil
}

// BufferFrames is how many frames the player pulls per Read at sampleRate.
func BufferFrames(sampleRate int) int {
	return max(sampleRate*int(deviceBuffer/time.Millisecond)/1000, 1)
}

func newOutput(r *Renderer) *Output {
	return &Output{
		renderer: r,
		buf:      make([]float32, BufferFrames(r.SampleRate())*r.Channels()),
	}
}

// Read implements io.Reader for the oto player. It runs on the device's
// goroutine and renders at most one device buffer per call.
func (o *Output) Read(p []byte) (int, error) {
	frameBytes := bytesPerSample * o.renderer.Channels()
	n := (len(p) / frameBytes) * o.renderer.Channels()
	if n == 0 {
		clear(p)
		return len(p), nil
	}

	// Larger requests get a short read so onsets keep buffer granularity.
	n = min(n, len(o.buf))
	samples := o.buf[:n]
	o.renderer.Render(samples)

	for i, v := range samples {
		binary.LittleEndian.PutUint32(p[i*bytesPerSample:], math.Float32bits(v))
	}
	return n * bytesPerSample, nil
}

// Start begins playback.
func (o *Output) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return nil
	}
	if err := o.otoCtx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	o.player.Play()
	o.started = true
	return nil
}

// Close stops playback and suspends the device.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		return nil
	}
	o.started = false
	o.player.Pause()
	// As of oto v3.4 players are released by the garbage collector.
	if err := o.otoCtx.Suspend(); err != nil {
		return fmt.Errorf("error suspending audio device: %w", err)
	}
	return nil
}
