package audio

import (
	"sync"
	"time"
)

// Headless drives a Renderer from a ticker instead of a sound card, at the
// same cadence a device would. Tap, if set, sees every rendered buffer.
type Headless struct {
	renderer *Renderer
	period   time.Duration
	buf      []float32
	Tap      func(buf []float32)

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewHeadless returns a null device pulling bufferFrames frames per period.
func NewHeadless(r *Renderer, bufferFrames int) *Headless {
	if bufferFrames <= 0 {
		bufferFrames = 512
	}
	period := time.Duration(float64(time.Second) * float64(bufferFrames) / float64(r.SampleRate()))
	return &Headless{
		renderer: r,
		period:   period,
		buf:      make([]float32, bufferFrames*r.Channels()),
		stop:     make(chan struct{}),
	}
}

// Start launches the render loop.
func (h *Headless) Start() error {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.period)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				h.renderer.Render(h.buf)
				if h.Tap != nil {
					h.Tap(h.buf)
				}
			}
		}
	}()
	return nil
}

// Close stops the render loop and waits for it to exit.
func (h *Headless) Close() error {
	h.once.Do(func() { close(h.stop) })
	h.wg.Wait()
	return nil
}
