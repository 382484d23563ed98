package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/stepper/internal/ir"
)

// RuleError reports a frame that broke an account rule.
//
// Rule errors include:
//   - Data, lamports or owner changed by a program that does not own the account
//   - A read-only account changed
//   - Lamports created or destroyed within an instruction
//   - Writable or signer privilege escalated across a nested invocation
type RuleError struct {
	// Code identifies the rule.
	Code RuleErrorCode

	// Account is the offending account.
	Account ir.Pubkey

	// ProgramID is the program running in the frame that broke the rule.
	ProgramID ir.Pubkey
}

// RuleErrorCode categorizes rule errors.
type RuleErrorCode string

const (
	// ErrCodeExternalDataModified indicates a non-owner changed account data.
	ErrCodeExternalDataModified RuleErrorCode = "EXTERNAL_ACCOUNT_DATA_MODIFIED"

	// ErrCodeExternalLamportSpend indicates a non-owner debited an account.
	ErrCodeExternalLamportSpend RuleErrorCode = "EXTERNAL_ACCOUNT_LAMPORT_SPEND"

	// ErrCodeModifiedOwner indicates an illegal owner reassignment.
	ErrCodeModifiedOwner RuleErrorCode = "MODIFIED_PROGRAM_ID"

	// ErrCodeReadonlyModified indicates a read-only account changed.
	ErrCodeReadonlyModified RuleErrorCode = "READONLY_DATA_MODIFIED"

	// ErrCodeUnbalanced indicates the frame's lamport total changed.
	ErrCodeUnbalanced RuleErrorCode = "UNBALANCED_INSTRUCTION"

	// ErrCodePrivilegeEscalation indicates a nested call asked for more privilege than the caller held.
	ErrCodePrivilegeEscalation RuleErrorCode = "PRIVILEGE_ESCALATION"

	// ErrCodeMissingAccount indicates a nested call named an account the caller was not given.
	ErrCodeMissingAccount RuleErrorCode = "MISSING_ACCOUNT"
)

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: account %s (program %s)", e.Code, e.Account, e.ProgramID)
}

// DepthExceededError is returned when a nested invocation would exceed the
// maximum stack height. It aborts the whole transaction, including every
// step already taken inside it.
type DepthExceededError struct {
	ProgramID ir.Pubkey // The program that could not be entered
	Height    int       // The height the invocation would have run at
	Limit     int       // Maximum allowed height
}

// Error implements the error interface.
func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("max invoke stack height exceeded: program %s at height %d > limit %d",
		e.ProgramID, e.Height, e.Limit)
}

// InstructionError wraps the failure of a top-level instruction.
type InstructionError struct {
	Index     int
	ProgramID ir.Pubkey
	Err       error
}

// Error implements the error interface.
func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (program %s): %v", e.Index, e.ProgramID, e.Err)
}

// Unwrap returns the underlying error.
func (e *InstructionError) Unwrap() error {
	return e.Err
}

// SignatureError is returned before execution when a signature is missing
// or does not verify.
type SignatureError struct {
	Signer  ir.Pubkey
	Message string
}

// Error implements the error interface.
func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature error for %s: %s", e.Signer, e.Message)
}

// ErrUnknownProgram is returned when an instruction targets an unregistered program.
var ErrUnknownProgram = errors.New("unknown program")

// IsDepthExceeded returns true if err is, or wraps, a DepthExceededError.
func IsDepthExceeded(err error) bool {
	var de *DepthExceededError
	return errors.As(err, &de)
}

// IsRuleError returns true if err wraps a RuleError with the given code.
func IsRuleError(err error, code RuleErrorCode) bool {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsSignatureError returns true if err wraps a SignatureError.
func IsSignatureError(err error) bool {
	var se *SignatureError
	return errors.As(err, &se)
}
