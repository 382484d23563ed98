package engine

import (
	"context"
	"sync"
)

// txRequest is one submitted transaction awaiting execution.
type txRequest struct {
	ctx  context.Context
	tx   *Transaction
	done chan txResult // buffered, size 1
}

type txResult struct {
	receipt *Receipt
	err     error
}

// txQueue is a thread-safe FIFO queue of submitted transactions.
//
// The queue is unbounded so that submitters never block each other; the
// Run loop is the only consumer.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type txQueue struct {
	mu     sync.Mutex
	reqs   []*txRequest
	closed bool
	signal chan struct{} // Signals request availability (buffered, size 1)
}

func newTxQueue() *txQueue {
	return &txQueue{
		reqs:   make([]*txRequest, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *txQueue) Enqueue(r *txRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.reqs = append(q.reqs, r)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front request without blocking.
func (q *txQueue) TryDequeue() (*txRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.reqs) == 0 {
		return nil, false
	}

	r := q.reqs[0]
	q.reqs[0] = nil // let GC reclaim the request

	if len(q.reqs) == 1 {
		q.reqs = q.reqs[:0]
	} else {
		q.reqs = q.reqs[1:]
	}

	return r, true
}

// Wait returns a channel that signals when requests may be available.
// The channel is closed once the queue is closed.
func (q *txQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *txQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reqs)
}

// Closed reports whether Close has been called.
func (q *txQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more requests will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *txQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
