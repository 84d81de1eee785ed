package testutil

import "sync"

// DeterministicClock is a store.Clock that advances one second per reading.
//
// Two clocks built with the same base produce identical timestamps, so
// records created by the same test sequence are byte-identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	base float64
	seq  int64
}

// NewDeterministicClock creates a clock whose first reading is base+1.
func NewDeterministicClock(base float64) *DeterministicClock {
	return &DeterministicClock{base: base}
}

// Now advances the clock and returns the new time.
func (c *DeterministicClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.base + float64(c.seq)
}

// Current returns the last time returned by Now, or base if Now was never
// called.
func (c *DeterministicClock) Current() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base + float64(c.seq)
}

// Reset rewinds the clock to its base.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
