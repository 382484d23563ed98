package engine

import "sync/atomic"

// SeqClock hands out transaction seq numbers. *Clock is the production
// implementation.
type SeqClock interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock for transaction ordering.
//
// Every executed transaction, successful or not, is stamped with a strictly
// increasing seq number from this clock. Ordering never depends on wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, the Engine's single-writer design means only one goroutine
// typically calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to resume numbering from the last transaction in an existing store.
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
