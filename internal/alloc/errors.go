package alloc

import (
	"errors"
	"fmt"

	"github.com/roach88/stepper/internal/ir"
)

// ErrorCode categorizes allocator failures.
type ErrorCode string

const (
	// ErrCodeAccountInUse indicates the target already holds lamports, data
	// or a non-system owner.
	ErrCodeAccountInUse ErrorCode = "ACCOUNT_ALREADY_IN_USE"

	// ErrCodeInsufficientFunds indicates the funding party cannot cover the amount.
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// ErrCodeMissingSignature indicates a party did not authorize the call.
	ErrCodeMissingSignature ErrorCode = "MISSING_REQUIRED_SIGNATURE"

	// ErrCodeInvalidData indicates an undecodable payload or wrong account count.
	ErrCodeInvalidData ErrorCode = "INVALID_INSTRUCTION_DATA"
)

// Error is a failure reported by the system allocator.
type Error struct {
	Code    ErrorCode
	Account ir.Pubkey
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Account)
}

// IsCode reports whether err carries an allocator Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
