package runtime

import "sync/atomic"

// Clock is the monotonic logical clock that stamps every logged transaction.
//
// Seq values order the transaction log. Wall time is never used, so a replay
// of the same log produces the same order.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations). The
// runtime only calls Next while it holds the store's single connection, so
// seq order equals commit order.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to resume after the last logged transaction.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
