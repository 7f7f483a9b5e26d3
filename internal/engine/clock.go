package engine

import "sync/atomic"

// Clock is a monotonic logical clock for ordering a run's actions.
//
// Every remote call recorded in the history ledger is stamped with
// Clock.Next(), so the ledger keeps call order even when two calls share a
// wall-clock timestamp.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// although a run only ever calls it from one goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
