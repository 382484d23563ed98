package testutil

import (
	"fmt"
	"sync"
)

// SequentialTxIDs hands out "<prefix>-0001", "<prefix>-0002", ... without
// limit. It satisfies engine.TxIDGenerator.
//
// engine.FixedGenerator panics once its list runs out; scenarios submit an
// open-ended number of transactions, so they use this instead.
type SequentialTxIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTxIDs creates a generator. An empty prefix becomes "tx".
func NewSequentialTxIDs(prefix string) *SequentialTxIDs {
	if prefix == "" {
		prefix = "tx"
	}
	return &SequentialTxIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialTxIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequentialTxIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
