package engine

import "sync/atomic"

// Clock is a monotonic logical clock for event ordering within a round.
// All events are stamped with a strictly increasing seq number; wall
// clocks never participate in ordering decisions.
//
// Thread-safe via atomics, though the single-threaded round loop means
// only one goroutine typically calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
