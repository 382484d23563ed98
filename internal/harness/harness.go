package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/stepper/internal/address"
	"github.com/roach88/stepper/internal/alloc"
	"github.com/roach88/stepper/internal/engine"
	"github.com/roach88/stepper/internal/ir"
	"github.com/roach88/stepper/internal/program"
	"github.com/roach88/stepper/internal/state"
	"github.com/roach88/stepper/internal/store"
	"github.com/roach88/stepper/internal/testutil"
)

const programLogPrefix = "Program log: "

// Harness holds one scenario's isolated world.
type Harness struct {
	store      *store.Store
	engine     *engine.Engine
	clock      *testutil.DeterministicClock
	txIDs      *testutil.SequentialTxIDs
	identities map[string]testutil.Identity
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and engine
// 2. Fund identities and seed records
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions against the trace and the store
//
// The returned error is reserved for infrastructure failures; scenario
// failures are reported in Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:      st,
		clock:      testutil.NewDeterministicClock(),
		txIDs:      testutil.NewSequentialTxIDs(scenario.TxPrefix),
		identities: make(map[string]testutil.Identity, len(scenario.Identities)),
	}

	opts := []engine.Option{
		engine.WithClock(h.clock),
		engine.WithTxIDGenerator(h.txIDs),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	}
	if scenario.MaxDepth > 0 {
		opts = append(opts, engine.WithMaxDepth(scenario.MaxDepth))
	}
	h.engine = engine.New(st, opts...)
	alloc.Register(h.engine)
	program.Register(h.engine, program.New())

	if err := h.setup(ctx, scenario); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Identities: h.identities}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// setup funds identities and writes seeded records.
func (h *Harness) setup(ctx context.Context, scenario *Scenario) error {
	for _, is := range scenario.Identities {
		id := testutil.NewIdentity(is.Name)
		h.identities[is.Name] = id
		if is.Lamports == 0 {
			continue
		}
		if _, err := h.store.Airdrop(ctx, id.Pubkey(), is.Lamports); err != nil {
			return fmt.Errorf("setup: fund %s: %w", is.Name, err)
		}
	}

	for i, rec := range scenario.Records {
		id := h.identities[rec.Identity]
		addr, bump, err := address.StateAddress(program.ID, id.Pubkey())
		if err != nil {
			return fmt.Errorf("setup: records[%d]: %w", i, err)
		}
		acct := ir.Account{
			Key:      addr,
			Lamports: alloc.RentMinimum(state.DataLen),
			Owner:    program.ID,
			Data:     state.Encode(state.State{A: rec.A, B: rec.B, Remaining: rec.Remaining, Bump: bump}),
		}
		if err := h.store.PutAccount(ctx, acct); err != nil {
			return fmt.Errorf("setup: records[%d]: %w", i, err)
		}
	}
	return nil
}

// executeStep runs one flow step as a signed transaction.
func (h *Harness) executeStep(ctx context.Context, index int, step FlowStep, result *Result) error {
	payer := h.identities[step.Identity]
	recordOwner := payer
	if step.Record != "" {
		recordOwner = h.identities[step.Record]
	}
	record, _, err := address.StateAddress(program.ID, recordOwner.Pubkey())
	if err != nil {
		return fmt.Errorf("flow[%d]: %w", index, err)
	}

	var ix ir.Instruction
	switch step.Op {
	case OpStart:
		ix, err = program.StartInstruction(program.ID, payer.Pubkey(), *step.N)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", index, err)
		}
		ix.Accounts[0].Pubkey = record
	case OpResume:
		ix = program.ResumeInstruction(program.ID, record, payer.Pubkey())
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}

	tx := engine.NewTransaction(payer.Pubkey(), ix).Sign(payer.Key)
	receipt, txErr := h.engine.Execute(ctx, tx)
	if receipt == nil {
		return fmt.Errorf("flow[%d]: %w", index, txErr)
	}

	ev := TraceEvent{
		Step:      index,
		Op:        step.Op,
		Identity:  step.Identity,
		TxID:      receipt.TxID,
		Seq:       receipt.Seq,
		Status:    receipt.Status,
		Error:     program.FailureCode(txErr),
		Logs:      programLogs(receipt.Logs),
		MaxHeight: receipt.MaxHeight,
	}
	if v, ok := program.ResultValue(receipt.ReturnData); ok {
		ev.Value = &v
	}
	result.AddTrace(ev)

	if step.Expect == nil {
		if !receipt.OK() {
			result.AddError(fmt.Sprintf("flow[%d]: %s failed: %v", index, step.Op, txErr))
		}
		return nil
	}
	for _, msg := range checkExpect(index, step.Expect, ev, txErr) {
		result.AddError(msg)
	}
	return nil
}

// checkExpect compares a step outcome with its expect clause.
func checkExpect(index int, want *ExpectClause, got TraceEvent, txErr error) []string {
	var errs []string
	if got.Status != want.Status {
		errs = append(errs, fmt.Sprintf("flow[%d]: expected status %s, got %s (error: %v)", index, want.Status, got.Status, txErr))
	}
	if want.Error != "" && got.Error != want.Error {
		errs = append(errs, fmt.Sprintf("flow[%d]: expected error %s, got %q (%v)", index, want.Error, got.Error, txErr))
	}
	if want.Value != nil {
		switch {
		case got.Value == nil:
			errs = append(errs, fmt.Sprintf("flow[%d]: expected value %d, got no return data", index, *want.Value))
		case *got.Value != *want.Value:
			errs = append(errs, fmt.Sprintf("flow[%d]: expected value %d, got %d", index, *want.Value, *got.Value))
		}
	}
	if want.MaxHeight != 0 && got.MaxHeight != want.MaxHeight {
		errs = append(errs, fmt.Sprintf("flow[%d]: expected max height %d, got %d", index, want.MaxHeight, got.MaxHeight))
	}
	return errs
}

func programLogs(lines []string) []string {
	out := []string{}
	for _, l := range lines {
		if msg, ok := strings.CutPrefix(l, programLogPrefix); ok {
			out = append(out, msg)
		}
	}
	return out
}
