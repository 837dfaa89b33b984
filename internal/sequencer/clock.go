package sequencer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/icco/rhythmbox/internal/pattern"
	"github.com/icco/rhythmbox/internal/synth"
)

const (
	MinBPM = 20
	MaxBPM = 300
)

// PatternReader gives the clock a stable view of the pattern for the
// duration of fn.
type PatternReader interface {
	ReadPattern(fn func(p pattern.Pattern))
}

// StepInterval is the length of one sixteenth note at bpm.
func StepInterval(bpm int) time.Duration {
	return time.Duration(float64(time.Minute) / float64(bpm) / 4)
}

// Clock advances the playback position on a tempo-derived interval and
// sends the triggers for each new step to a TriggerChannel.
type Clock struct {
	src PatternReader
	out *TriggerChannel
	log *slog.Logger

	step    atomic.Int64 // -1 until the first step has played
	bpm     atomic.Int32
	playing atomic.Bool
	wake    chan struct{}

	batch []synth.Trigger // owned by the goroutine calling Advance

	observer atomic.Pointer[StepFunc]
}

// StepFunc is told about every step the clock plays, after its batch has
// been sent. It runs on the clock goroutine and must not retain batch.
type StepFunc func(step int, batch []synth.Trigger)

// NewClock returns a stopped clock at bpm, positioned before the first step.
func NewClock(src PatternReader, out *TriggerChannel, bpm int, log *slog.Logger) *Clock {
	if log == nil {
		log = slog.Default()
	}
	c := &Clock{
		src:   src,
		out:   out,
		log:   log,
		wake:  make(chan struct{}, 1),
		batch: make([]synth.Trigger, 0, 16),
	}
	c.step.Store(-1)
	c.bpm.Store(int32(clampBPM(bpm)))
	return c
}

func clampBPM(bpm int) int {
	return max(MinBPM, min(bpm, MaxBPM))
}

// CurrentStep returns the most recently played step, or 0 before playback
// has started.
func (c *Clock) CurrentStep() int {
	return int(max(c.step.Load(), 0))
}

// BPM returns the tempo used for the next playback run.
func (c *Clock) BPM() int {
	return int(c.bpm.Load())
}

// SetBPM changes the tempo. A running clock keeps its interval until
// playback is stopped and started again.
func (c *Clock) SetBPM(bpm int) {
	c.bpm.Store(int32(clampBPM(bpm)))
}

// Playing reports whether the clock is stepping.
func (c *Clock) Playing() bool {
	return c.playing.Load()
}

// SetPlaying starts or suspends stepping. The position is kept and voices
// already sounding are left to ring out.
func (c *Clock) SetPlaying(on bool) {
	if c.playing.Swap(on) == on {
		return
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Observe installs fn as the step observer, replacing any previous one.
// A nil fn removes it.
func (c *Clock) Observe(fn StepFunc) {
	if fn == nil {
		c.observer.Store(nil)
		return
	}
	c.observer.Store(&fn)
}

// Rewind moves the position back before the first step.
func (c *Clock) Rewind() {
	c.step.Store(-1)
}

// Advance moves to the next step, wrapping at the pattern length, and sends
// one batch of triggers for the tracks active there. It returns the new step.
func (c *Clock) Advance() int {
	next := 0
	c.batch = c.batch[:0]
	c.src.ReadPattern(func(p pattern.Pattern) {
		next = int(c.step.Load()+1) % p.Len()
		c.batch = AppendTriggers(c.batch, p, next)
	})
	c.step.Store(int64(next))
	if len(c.batch) > 0 {
		c.out.Send(c.batch...)
	}
	if fn := c.observer.Load(); fn != nil {
		(*fn)(next, c.batch)
	}
	return next
}

// Run steps the clock until ctx is done. While stopped it sleeps until
// SetPlaying wakes it.
func (c *Clock) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if !c.playing.Load() {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
				continue
			}
		}

		interval := StepInterval(c.BPM())
		c.log.Debug("clock started", "bpm", c.BPM(), "interval", interval, "step", c.CurrentStep())
		next := time.Now().Add(interval)
		for c.playing.Load() {
			timer.Reset(time.Until(next))
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
				timer.Stop()
			case <-timer.C:
				c.Advance()
				next = next.Add(interval)
			}
		}
		c.log.Debug("clock stopped", "step", c.CurrentStep())
	}
}
