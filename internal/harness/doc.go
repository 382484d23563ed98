// Package harness runs YAML scenarios against a fresh engine and compares
// their traces with golden files.
//
// Every scenario gets its own in-memory store, the system allocator and the
// step program, a deterministic clock and sequential transaction ids, so
// the same file always produces the same trace.
//
// # Scenario Format
//
//	name: start_n3
//	description: "n=3 finishes in one transaction"
//	max_depth: 5              # optional, defaults to the engine default
//	identities:
//	  - name: alice
//	    lamports: 10000000
//	records:                  # optional, written straight to the store
//	  - identity: bob
//	    a: 3
//	    b: 5
//	    remaining: 2
//	flow:
//	  - op: start
//	    identity: alice
//	    n: 3
//	    expect:
//	      status: ok
//	      value: 3
//	      max_height: 4
//	  - op: resume
//	    identity: bob
//	    record: alice         # use alice's record address, signed by bob
//	    expect:
//	      status: failed
//	      error: INVALID_SEEDS
//	assertions:
//	  - type: final_state
//	    identity: alice
//	    expect: { a: 2, b: 3, remaining: 0 }
//	  - type: log_contains
//	    line: "done: 3"
//
// A flow step without expect must succeed.
//
// # Assertion Types
//
//   - final_state: the identity's record holds the expected fields (a, b,
//     remaining, lamports), or is absent when absent is true
//   - log_contains: a program log line appears somewhere in the trace
//   - log_order: program log lines appear in the given order
//   - log_count: a program log line appears exactly count times
//   - tx_count: the store holds count transactions with the given status
//
// # Golden Traces
//
// RunWithGolden writes the trace as canonical JSON to
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
