// Package step holds the pure state-transition functions.
//
// A Func advances (a, b, remaining) by one unit of work or reports the
// terminal result. Fibonacci is the only recurrence-specific code in the
// module; the dispatcher and engine treat any Func the same way.
package step

import (
	"errors"
	"fmt"
	"iter"
	"math/bits"

	"github.com/roach88/stepper/internal/state"
)

// ErrOverflow is returned when the next value does not fit in 64 bits.
var ErrOverflow = errors.New("arithmetic overflow")

// Outcome is either Continue (Done == false) with the next triple, or Done
// with the final Result.
type Outcome struct {
	Done      bool
	A         uint64
	B         uint64
	Remaining uint64
	Result    uint64
}

// Func is the signature every step function shares.
type Func func(a, b, remaining uint64) (Outcome, error)

// Fibonacci advances (a, b) to (b, a+b) and decrements remaining.
// At remaining == 0 it reports Done with result b and changes nothing.
func Fibonacci(a, b, remaining uint64) (Outcome, error) {
	if remaining == 0 {
		return Outcome{Done: true, A: a, B: b, Result: b}, nil
	}
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return Outcome{}, fmt.Errorf("step %d+%d: %w", a, b, ErrOverflow)
	}
	return Outcome{A: b, B: sum, Remaining: remaining - 1}, nil
}

// Apply runs f on s, keeping the bump.
func Apply(f Func, s state.State) (state.State, Outcome, error) {
	out, err := f(s.A, s.B, s.Remaining)
	if err != nil {
		return s, Outcome{}, err
	}
	if out.Done {
		return s, out, nil
	}
	return state.State{A: out.A, B: out.B, Remaining: out.Remaining, Bump: s.Bump}, out, nil
}

// Sequence lazily yields every state reachable from start, start included,
// until the terminal state has been yielded or f fails. It is the loop form
// of the self-invocation chain and has no depth bound.
func Sequence(start state.State, f Func) iter.Seq2[state.State, error] {
	return func(yield func(state.State, error) bool) {
		cur := start
		for {
			if !yield(cur, nil) {
				return
			}
			if cur.Terminal() {
				return
			}
			next, _, err := Apply(f, cur)
			if err != nil {
				yield(cur, err)
				return
			}
			cur = next
		}
	}
}

// Run drives start to completion and returns the terminal state.
func Run(start state.State, f Func) (state.State, error) {
	last := start
	for s, err := range Sequence(start, f) {
		if err != nil {
			return last, err
		}
		last = s
	}
	return last, nil
}
