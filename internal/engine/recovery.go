package engine

import (
	"context"
	"fmt"
)

// # Restart and Recovery
//
// Nothing an engine holds in memory outlives a transaction: accounts are
// read from the store when first touched and written back in the same SQL
// transaction as the record. A process that stops between transactions
// therefore loses nothing, and one that stops mid-transaction leaves the
// store exactly as the previous commit left it.
//
// The only state that must be restored is the logical clock. Seq numbers
// are unique in the store, so a fresh engine over an existing database
// resumes numbering after the highest recorded seq before its first
// transaction. WithClock opts out of this and is meant for tests.
//
// A computation interrupted by a failed transaction needs no recovery
// either: the record still holds the last committed step, and a resume
// transaction picks up from there.

// syncClock advances the clock past the store's last seq, once.
// Caller must hold e.mu.
func (e *Engine) syncClock(ctx context.Context) error {
	if e.clockSynced {
		return nil
	}
	last, err := e.store.LastSeq(ctx)
	if err != nil {
		return fmt.Errorf("resume clock: %w", err)
	}
	if last > e.clock.Current() {
		e.clock = NewClockAt(last)
	}
	e.clockSynced = true
	return nil
}
