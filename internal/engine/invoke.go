package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/stepper/internal/address"
	"github.com/roach88/stepper/internal/ir"
)

// Program is executable logic registered under a program id.
type Program interface {
	Process(ic *InvokeContext, data []byte) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ic *InvokeContext, data []byte) error

// Process calls f.
func (f ProgramFunc) Process(ic *InvokeContext, data []byte) error {
	return f(ic, data)
}

// AccountInfo is a program's view of one account in the current frame.
// The underlying record is shared by every frame of the transaction, so a
// write made before a nested invocation is visible inside it.
type AccountInfo struct {
	Key        ir.Pubkey
	IsSigner   bool
	IsWritable bool

	acct *ir.Account
}

// Lamports returns the balance.
func (a *AccountInfo) Lamports() uint64 { return a.acct.Lamports }

// Owner returns the owning program.
func (a *AccountInfo) Owner() ir.Pubkey { return a.acct.Owner }

// Data returns the live data slice. Writes go straight to the record.
func (a *AccountInfo) Data() []byte { return a.acct.Data }

// DataIsEmpty reports whether the record holds no data.
func (a *AccountInfo) DataIsEmpty() bool { return len(a.acct.Data) == 0 }

// SetLamports replaces the balance.
func (a *AccountInfo) SetLamports(v uint64) { a.acct.Lamports = v }

// SetOwner reassigns the record.
func (a *AccountInfo) SetOwner(owner ir.Pubkey) { a.acct.Owner = owner }

// Allocate replaces the data with n zero bytes.
func (a *AccountInfo) Allocate(n int) { a.acct.Data = make([]byte, n) }

// InvokeContext is handed to a program for one frame of execution.
type InvokeContext struct {
	ctx       context.Context
	tx        *txn
	programID ir.Pubkey
	accounts  []*AccountInfo
	height    int
	pre       map[ir.Pubkey]snapshot
}

// snapshot is an account as it stood when the frame last verified it.
type snapshot struct {
	acct     ir.Account
	writable bool
}

// Context returns the transaction's context.
func (ic *InvokeContext) Context() context.Context { return ic.ctx }

// ProgramID returns the id of the running program.
func (ic *InvokeContext) ProgramID() ir.Pubkey { return ic.programID }

// Accounts returns the frame's accounts in instruction order.
func (ic *InvokeContext) Accounts() []*AccountInfo { return ic.accounts }

// Height returns the current stack height (1 for a top-level instruction).
func (ic *InvokeContext) Height() int { return ic.height }

// Log appends a program log line to the transaction.
func (ic *InvokeContext) Log(format string, args ...any) {
	ic.tx.log("Program log: " + fmt.Sprintf(format, args...))
}

// SetReturnData records data as the transaction's return value.
// A later call, at any height, replaces it.
func (ic *InvokeContext) SetReturnData(data []byte) {
	ic.tx.returnProgram = ic.programID
	ic.tx.returnData = append([]byte(nil), data...)
}

// Invoke runs ix one level deeper with the caller's privileges.
func (ic *InvokeContext) Invoke(ix ir.Instruction) error {
	return ic.InvokeSigned(ix)
}

// InvokeSigned runs ix one level deeper. Each seed set derives an address
// under the running program's id; those addresses gain signer privilege for
// the nested call.
func (ic *InvokeContext) InvokeSigned(ix ir.Instruction, signerSeeds ...[][]byte) error {
	derived := make(map[ir.Pubkey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := address.CreateProgramAddress(seeds, ic.programID)
		if err != nil {
			return fmt.Errorf("signer seeds: %w", err)
		}
		derived[addr] = true
	}

	for _, m := range ix.Accounts {
		caller := ic.find(m.Pubkey)
		if caller == nil {
			return &RuleError{Code: ErrCodeMissingAccount, Account: m.Pubkey, ProgramID: ic.programID}
		}
		if m.IsWritable && !caller.IsWritable {
			return &RuleError{Code: ErrCodePrivilegeEscalation, Account: m.Pubkey, ProgramID: ic.programID}
		}
		if m.IsSigner && !caller.IsSigner && !derived[m.Pubkey] {
			return &RuleError{Code: ErrCodePrivilegeEscalation, Account: m.Pubkey, ProgramID: ic.programID}
		}
	}

	// Changes made so far must be legal before the callee observes them.
	if err := ic.verify(); err != nil {
		return err
	}

	if err := ic.tx.engine.processInstruction(ic.ctx, ic.tx, ix, ic.height+1); err != nil {
		return err
	}

	// The callee verified its own changes; they become the new baseline.
	ic.resnapshot()
	return nil
}

func (ic *InvokeContext) find(key ir.Pubkey) *AccountInfo {
	for _, a := range ic.accounts {
		if a.Key == key {
			return a
		}
	}
	return nil
}

func (ic *InvokeContext) resnapshot() {
	for key, snap := range ic.pre {
		snap.acct = ic.tx.accounts[key].Clone()
		ic.pre[key] = snap
	}
}

// verify checks every account in the frame against its snapshot.
func (ic *InvokeContext) verify() error {
	var preTotal, postTotal uint64
	for key, snap := range ic.pre {
		pre := snap.acct
		post := ic.tx.accounts[key]
		preTotal += pre.Lamports
		postTotal += post.Lamports

		changed := pre.Lamports != post.Lamports || pre.Owner != post.Owner || !bytes.Equal(pre.Data, post.Data)
		if !changed {
			continue
		}
		if !snap.writable {
			return &RuleError{Code: ErrCodeReadonlyModified, Account: key, ProgramID: ic.programID}
		}
		ownedByCaller := pre.Owner == ic.programID
		if pre.Owner != post.Owner && (!ownedByCaller || !isZeroed(post.Data)) {
			return &RuleError{Code: ErrCodeModifiedOwner, Account: key, ProgramID: ic.programID}
		}
		if post.Lamports < pre.Lamports && !ownedByCaller {
			return &RuleError{Code: ErrCodeExternalLamportSpend, Account: key, ProgramID: ic.programID}
		}
		if !bytes.Equal(pre.Data, post.Data) && !ownedByCaller {
			return &RuleError{Code: ErrCodeExternalDataModified, Account: key, ProgramID: ic.programID}
		}
	}
	if preTotal != postTotal {
		return &RuleError{Code: ErrCodeUnbalanced, ProgramID: ic.programID}
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
