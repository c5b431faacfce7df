// internal/sched/tickclock.go

package sched

import (
	"sync/atomic"

	"mlfqsim/internal/proc"
)

// TickClock is the simulated clock. It only moves when the driver advances
// it and never goes backwards.
type TickClock struct {
	now atomic.Uint64
}

// Now returns the current simulated time.
func (c *TickClock) Now() proc.Tick {
	return proc.Tick(c.now.Load())
}

// Advance moves the clock forward by d.
func (c *TickClock) Advance(d proc.Tick) proc.Tick {
	return proc.Tick(c.now.Add(uint64(d)))
}

// AdvanceTo moves the clock to t; earlier times are ignored.
func (c *TickClock) AdvanceTo(t proc.Tick) proc.Tick {
	for {
		cur := c.now.Load()
		if uint64(t) <= cur {
			return proc.Tick(cur)
		}
		if c.now.CompareAndSwap(cur, uint64(t)) {
			return t
		}
	}
}
