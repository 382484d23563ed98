package alloc

import (
	"github.com/roach88/stepper/internal/engine"
	"github.com/roach88/stepper/internal/ir"
)

// SystemProgram is the allocator registered under ir.SystemProgramID.
// It owns every unallocated record and is the only way one comes into
// existence with a program owner.
type SystemProgram struct{}

// Register installs the allocator on e.
func Register(e *engine.Engine) {
	e.Register(ir.SystemProgramID, SystemProgram{})
}

// Process implements engine.Program.
func (SystemProgram) Process(ic *engine.InvokeContext, data []byte) error {
	args, err := DecodeCreateAccount(data)
	if err != nil {
		return &Error{Code: ErrCodeInvalidData, Message: err.Error()}
	}

	if args.Space > MaxDataLen {
		return &Error{Code: ErrCodeInvalidData, Message: "space exceeds maximum record size"}
	}

	accounts := ic.Accounts()
	if len(accounts) < 2 {
		return &Error{Code: ErrCodeInvalidData, Message: "create account needs from and to"}
	}
	from, to := accounts[0], accounts[1]

	if !to.DataIsEmpty() || to.Owner() != ir.SystemProgramID || to.Lamports() != 0 {
		return &Error{Code: ErrCodeAccountInUse, Account: to.Key}
	}
	if !from.IsSigner {
		return &Error{Code: ErrCodeMissingSignature, Account: from.Key}
	}
	if !to.IsSigner {
		return &Error{Code: ErrCodeMissingSignature, Account: to.Key}
	}
	if from.Lamports() < args.Lamports {
		return &Error{
			Code:    ErrCodeInsufficientFunds,
			Account: from.Key,
			Message: "balance below requested lamports",
		}
	}

	from.SetLamports(from.Lamports() - args.Lamports)
	to.SetLamports(args.Lamports)
	to.Allocate(int(args.Space))
	to.SetOwner(args.Owner)
	return nil
}
