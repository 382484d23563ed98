package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/stepper/internal/engine"
)

var _ engine.TxIDGenerator = (*SequentialTxIDs)(nil)

func TestSequentialTxIDs_Format(t *testing.T) {
	gen := NewSequentialTxIDs("scenario")
	assert.Equal(t, "scenario-0001", gen.Generate())
	assert.Equal(t, "scenario-0002", gen.Generate())
}

func TestSequentialTxIDs_DefaultPrefix(t *testing.T) {
	gen := NewSequentialTxIDs("")
	assert.Equal(t, "tx-0001", gen.Generate())
}

func TestSequentialTxIDs_NeverExhausts(t *testing.T) {
	gen := NewSequentialTxIDs("tx")
	var last string
	for i := 0; i < 10001; i++ {
		last = gen.Generate()
	}
	assert.Equal(t, "tx-10001", last)
}

func TestSequentialTxIDs_Reset(t *testing.T) {
	gen := NewSequentialTxIDs("tx")
	gen.Generate()
	gen.Generate()
	gen.Reset()
	assert.Equal(t, "tx-0001", gen.Generate())
}

func TestSequentialTxIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialTxIDs("tx")
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}
