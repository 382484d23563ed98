package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/stepper/internal/address"
	"github.com/roach88/stepper/internal/program"
	"github.com/roach88/stepper/internal/state"
	"github.com/roach88/stepper/internal/store"
	"github.com/roach88/stepper/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s: %s", event.Step, event.Op, event.Identity, event.Status)
			if event.Error != "" {
				fmt.Fprintf(&buf, " (%s)", event.Error)
			}
			buf.WriteByte('\n')
			for _, line := range event.Logs {
				fmt.Fprintf(&buf, "      %s\n", line)
			}
		}
	}

	return buf.String()
}

// assertLogContains checks that some step logged the line.
func assertLogContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		for _, line := range event.Logs {
			if line == assertion.Line {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertLogContains,
		Expected: fmt.Sprintf("log line %q", assertion.Line),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertLogOrder checks that the lines appear in order.
// Lines don't need to be consecutive (intervening lines are allowed).
func assertLogOrder(trace []TraceEvent, assertion Assertion) error {
	var logs []string
	for _, event := range trace {
		logs = append(logs, event.Logs...)
	}

	next := 0
	for _, line := range logs {
		if next < len(assertion.Lines) && line == assertion.Lines[next] {
			next++
		}
	}
	if next == len(assertion.Lines) {
		return nil
	}

	return &AssertionError{
		Type:     AssertLogOrder,
		Expected: fmt.Sprintf("log lines in order: %q", assertion.Lines),
		Actual:   fmt.Sprintf("missing or out of order: %q", assertion.Lines[next]),
		Trace:    trace,
	}
}

// assertLogCount checks that the line appears exactly the specified number of times.
func assertLogCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		for _, line := range event.Logs {
			if line == assertion.Line {
				count++
			}
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertLogCount,
			Expected: fmt.Sprintf("%d occurrences of %q", assertion.Count, assertion.Line),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the identity's record in the store.
func assertFinalState(ctx context.Context, st *store.Store, id testutil.Identity, assertion Assertion) error {
	addr, _, err := address.StateAddress(program.ID, id.Pubkey())
	if err != nil {
		return fmt.Errorf("final_state: derive record for %s: %w", id.Name, err)
	}
	acct, found, err := st.GetAccount(ctx, addr)
	if err != nil {
		return fmt.Errorf("final_state: load record for %s: %w", id.Name, err)
	}

	if assertion.Absent {
		if found {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("no record for %s", id.Name),
				Actual:   fmt.Sprintf("record %s exists", addr),
			}
		}
		return nil
	}
	if !found {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("record for %s", id.Name),
			Actual:   "record not found",
		}
	}

	s, err := state.Decode(acct.Data)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("decodable record for %s", id.Name),
			Actual:   err.Error(),
		}
	}
	actual := map[string]uint64{
		"a":         s.A,
		"b":         s.B,
		"remaining": s.Remaining,
		"lamports":  acct.Lamports,
	}
	for _, field := range []string{"a", "b", "remaining", "lamports"} {
		want, ok := assertion.Expect[field]
		if !ok {
			continue
		}
		if actual[field] != want {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %d", id.Name, field, want),
				Actual:   fmt.Sprintf("%s.%s = %d", id.Name, field, actual[field]),
			}
		}
	}
	return nil
}

// assertTxCount counts stored transactions with the given status.
func assertTxCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	rows, err := st.Query(ctx, `SELECT COUNT(*) FROM transactions WHERE status = ?`, assertion.Status)
	if err != nil {
		return fmt.Errorf("tx_count: %w", err)
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return fmt.Errorf("tx_count: scan: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("tx_count: %w", err)
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTxCount,
			Expected: fmt.Sprintf("%d %s transactions", assertion.Count, assertion.Status),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store      *store.Store
	Ctx        context.Context
	Identities map[string]testutil.Identity
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state and tx_count.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertLogContains:
			err = assertLogContains(result.Trace, assertion)
		case AssertLogOrder:
			err = assertLogOrder(result.Trace, assertion)
		case AssertLogCount:
			err = assertLogCount(result.Trace, assertion)
		case AssertFinalState, AssertTxCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
				break
			}
			if assertion.Type == AssertTxCount {
				err = assertTxCount(actx.Ctx, actx.Store, assertion)
				break
			}
			id, ok := actx.Identities[assertion.Identity]
			if !ok {
				err = fmt.Errorf("assertion[%d]: unknown identity %q", i, assertion.Identity)
				break
			}
			err = assertFinalState(actx.Ctx, actx.Store, id, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
