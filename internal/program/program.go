// Package program is the resumable step computation: the entry point that
// initializes a per-identity record on first call and advances it one step
// per call after that, re-invoking itself until the work is done.
//
// Accounts, in order:
//
//  0. state record (writable)
//  1. payer identity (writable, signer)
//  2. system allocator (read-only)
//
// A payload of at least 8 bytes whose record is absent starts a computation
// of n steps (u64 LE). An empty payload, or any payload once the record
// exists, resumes it.
package program

import (
	"encoding/binary"
	"errors"

	"github.com/roach88/stepper/internal/address"
	"github.com/roach88/stepper/internal/alloc"
	"github.com/roach88/stepper/internal/engine"
	"github.com/roach88/stepper/internal/ir"
	"github.com/roach88/stepper/internal/state"
	"github.com/roach88/stepper/internal/step"
)

// Name is the registered name the program id is derived from.
const Name = "fib"

// ID is the program id under which the dispatcher is registered.
var ID = ir.ProgramIDFromName(Name)

// Dispatcher is the entry point. Step is the transition applied on each
// resume; it defaults to step.Fibonacci.
type Dispatcher struct {
	Step step.Func
}

// New returns a Dispatcher running the Fibonacci recurrence.
func New() *Dispatcher {
	return &Dispatcher{Step: step.Fibonacci}
}

// Register installs d on e under ID.
func Register(e *engine.Engine, d *Dispatcher) {
	e.Register(ID, d)
}

// Process implements engine.Program.
func (d *Dispatcher) Process(ic *engine.InvokeContext, data []byte) error {
	accounts := ic.Accounts()
	if len(accounts) < 3 {
		return newError(ErrCodeNotEnoughAccounts, "want 3 accounts, got %d", len(accounts))
	}
	record, payer, system := accounts[0], accounts[1], accounts[2]

	if record.DataIsEmpty() {
		return d.initialize(ic, record, payer, system, data)
	}
	return d.resume(ic, record, payer)
}

func (d *Dispatcher) initialize(ic *engine.InvokeContext, record, payer, system *engine.AccountInfo, data []byte) error {
	if len(data) < 8 {
		return newError(ErrCodeInvalidInstructionData, "init payload needs a u64 step count, got %d bytes", len(data))
	}
	if !payer.IsSigner {
		return newError(ErrCodeMissingSignature, "payer %s must sign", payer.Key)
	}
	if system.Key != ir.SystemProgramID {
		return newError(ErrCodeIncorrectSystemProgram, "got %s", system.Key)
	}

	n := binary.LittleEndian.Uint64(data[0:8])
	expected, bump, err := address.StateAddress(ic.ProgramID(), payer.Key)
	if err != nil {
		return newError(ErrCodeInvalidSeeds, "%v", err)
	}
	if record.Key != expected {
		return newError(ErrCodeInvalidSeeds, "record %s is not the address derived for %s", record.Key, payer.Key)
	}

	create := alloc.CreateAccount(payer.Key, record.Key, alloc.RentMinimum(state.DataLen), state.DataLen, ic.ProgramID())
	if err := ic.InvokeSigned(create, address.SignerSeeds(payer.Key, bump)); err != nil {
		return err
	}

	state.EncodeInto(record.Data(), state.Initial(n, bump))
	ic.Log("init: a=0 b=1 n=%d", n)

	if n > 0 {
		return d.selfInvoke(ic, record, payer)
	}
	return nil
}

func (d *Dispatcher) resume(ic *engine.InvokeContext, record, payer *engine.AccountInfo) error {
	if record.Owner() != ic.ProgramID() {
		return newError(ErrCodeIllegalOwner, "record %s is owned by %s", record.Key, record.Owner())
	}
	raw := record.Data()
	if len(raw) < state.DataLen {
		return newError(ErrCodeDataTooSmall, "record holds %d bytes, want %d", len(raw), state.DataLen)
	}
	cur, err := state.Decode(raw[:state.DataLen])
	if err != nil {
		return err
	}
	// The stored bump ties the record to exactly one payer.
	derived, err := address.CreateProgramAddress(address.SignerSeeds(payer.Key, cur.Bump), ic.ProgramID())
	if err != nil || derived != record.Key {
		return newError(ErrCodeInvalidSeeds, "record %s does not belong to %s", record.Key, payer.Key)
	}

	next, out, err := step.Apply(d.Step, cur)
	if err != nil {
		if errors.Is(err, step.ErrOverflow) {
			return newError(ErrCodeArithmeticOverflow, "%v", err)
		}
		return err
	}
	if out.Done {
		ic.Log("done: %d", out.Result)
		ic.SetReturnData(resultBytes(out.Result))
		return nil
	}

	state.EncodeInto(raw[:state.DataLen], next)
	ic.Log("step: a=%d b=%d n=%d", next.A, next.B, next.Remaining)

	if next.Remaining > 0 {
		return d.selfInvoke(ic, record, payer)
	}
	ic.Log("done: %d", next.B)
	ic.SetReturnData(resultBytes(next.B))
	return nil
}

// selfInvoke asks the host to run this program again one level deeper.
func (d *Dispatcher) selfInvoke(ic *engine.InvokeContext, record, payer *engine.AccountInfo) error {
	return ic.Invoke(ResumeInstruction(ic.ProgramID(), record.Key, payer.Key))
}

func resultBytes(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}
