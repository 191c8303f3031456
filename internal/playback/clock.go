package playback

import (
	"math"
	"sync/atomic"
)

// Clock is the shared playback position in seconds. The audio goroutine
// advances it and control goroutines overwrite it on seek; neither takes a lock.
type Clock struct {
	bits atomic.Uint64
}

// Load returns the current position
func (c *Clock) Load() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Store overwrites the position
func (c *Clock) Store(t float64) {
	c.bits.Store(math.Float64bits(t))
}

// Advance moves the clock from `from` to `from+delta` unless it was changed
// since `from` was read, in which case the newer value is kept. It returns
// the position after the call.
func (c *Clock) Advance(from, delta float64) float64 {
	next := from + delta
	if c.bits.CompareAndSwap(math.Float64bits(from), math.Float64bits(next)) {
		return next
	}
	return c.Load()
}
