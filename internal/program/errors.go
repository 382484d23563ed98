package program

import (
	"errors"
	"fmt"

	"github.com/roach88/stepper/internal/alloc"
	"github.com/roach88/stepper/internal/engine"
)

// ErrorCode categorizes dispatcher failures.
type ErrorCode string

const (
	// ErrCodeNotEnoughAccounts indicates fewer than the three required accounts.
	ErrCodeNotEnoughAccounts ErrorCode = "NOT_ENOUGH_ACCOUNT_KEYS"

	// ErrCodeInvalidInstructionData indicates an init payload shorter than 8 bytes.
	ErrCodeInvalidInstructionData ErrorCode = "INVALID_INSTRUCTION_DATA"

	// ErrCodeMissingSignature indicates the payer did not sign the init call.
	ErrCodeMissingSignature ErrorCode = "MISSING_REQUIRED_SIGNATURE"

	// ErrCodeIncorrectSystemProgram indicates the third account is not the allocator.
	ErrCodeIncorrectSystemProgram ErrorCode = "INCORRECT_SYSTEM_PROGRAM"

	// ErrCodeInvalidSeeds indicates the record address is not the one derived
	// from the payer.
	ErrCodeInvalidSeeds ErrorCode = "INVALID_SEEDS"

	// ErrCodeIllegalOwner indicates a present record owned by another program.
	ErrCodeIllegalOwner ErrorCode = "ILLEGAL_OWNER"

	// ErrCodeDataTooSmall indicates a present record shorter than the state layout.
	ErrCodeDataTooSmall ErrorCode = "ACCOUNT_DATA_TOO_SMALL"

	// ErrCodeArithmeticOverflow indicates the next value does not fit in 64 bits.
	ErrCodeArithmeticOverflow ErrorCode = "ARITHMETIC_OVERFLOW"
)

// Error is a failure raised by the dispatcher itself, as opposed to one
// surfaced from the allocator or the host.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err carries a dispatcher Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return code != "" && Code(err) == code
}

// Code extracts the dispatcher error code from err, or "".
func Code(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// FailureCode names the cause of a failed transaction: a dispatcher or
// allocator code, a host rule code, or one of MAX_DEPTH_EXCEEDED,
// SIGNATURE_FAILURE and UNKNOWN_PROGRAM. It returns "" for nil or
// unrecognized errors.
func FailureCode(err error) string {
	if code := Code(err); code != "" {
		return string(code)
	}
	var (
		ae *alloc.Error
		re *engine.RuleError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		return string(ae.Code)
	case errors.As(err, &re):
		return string(re.Code)
	case engine.IsDepthExceeded(err):
		return "MAX_DEPTH_EXCEEDED"
	case engine.IsSignatureError(err):
		return "SIGNATURE_FAILURE"
	case errors.Is(err, engine.ErrUnknownProgram):
		return "UNKNOWN_PROGRAM"
	}
	return ""
}
