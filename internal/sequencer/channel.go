// Package sequencer turns the pattern into timed triggers and hands them to
// the audio renderer.
package sequencer

import (
	"sync"
	"sync/atomic"

	"github.com/icco/rhythmbox/internal/synth"
)

// DefaultChannelCapacity bounds the number of pending triggers.
const DefaultChannelCapacity = 256

// Spawner receives drained triggers. *synth.Mixer implements it.
type Spawner interface {
	Spawn(t synth.Trigger)
}

// TriggerChannel passes triggers from any number of producers to the single
// render callback. Producers take the lock; the renderer only ever tries it.
type TriggerChannel struct {
	mu       sync.Mutex
	pending  []synth.Trigger
	capacity int

	dropped   atomic.Uint64
	contended atomic.Uint64
}

// NewTriggerChannel returns a channel holding at most capacity pending triggers.
func NewTriggerChannel(capacity int) *TriggerChannel {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &TriggerChannel{
		pending:  make([]synth.Trigger, 0, capacity),
		capacity: capacity,
	}
}

// Send appends a batch of triggers and returns how many were accepted.
// Triggers beyond the capacity are dropped and counted.
func (c *TriggerChannel) Send(batch ...synth.Trigger) int {
	if len(batch) == 0 {
		return 0
	}
	c.mu.Lock()
	room := c.capacity - len(c.pending)
	n := min(room, len(batch))
	c.pending = append(c.pending, batch[:n]...)
	c.mu.Unlock()

	if n < len(batch) {
		c.dropped.Add(uint64(len(batch) - n))
	}
	return n
}

// Drain moves every pending trigger into s. It never blocks: if a producer
// holds the lock, nothing is drained and ok is false.
func (c *TriggerChannel) Drain(s Spawner) (n int, ok bool) {
	if !c.mu.TryLock() {
		c.contended.Add(1)
		return 0, false
	}
	for _, t := range c.pending {
		s.Spawn(t)
	}
	n = len(c.pending)
	c.pending = c.pending[:0]
	c.mu.Unlock()
	return n, true
}

// Pending returns the number of triggers waiting to be drained.
func (c *TriggerChannel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Dropped returns how many triggers were rejected because the channel was full.
func (c *TriggerChannel) Dropped() uint64 {
	return c.dropped.Load()
}

// Contended returns how many drains were skipped because the lock was busy.
func (c *TriggerChannel) Contended() uint64 {
	return c.contended.Load()
}
