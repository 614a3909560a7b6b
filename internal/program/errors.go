package program

import (
	"errors"
	"fmt"

	"github.com/roach88/socialledger/internal/address"
)

// ProgramError is a failure raised by instruction handlers.
// Like every coded failure it ends the transaction with no account writes.
type ProgramError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Account is the account involved, if any.
	Account address.Pubkey

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes program errors.
type ErrorCode string

const (
	// ErrCodeOverflow: a u64 counter would exceed its maximum.
	ErrCodeOverflow ErrorCode = "Overflow"

	// ErrCodeContentTooLong: post content exceeds its layout budget.
	ErrCodeContentTooLong ErrorCode = "ContentTooLong"

	// ErrCodeUsernameTooLong: username exceeds its layout budget.
	ErrCodeUsernameTooLong ErrorCode = "UsernameTooLong"

	// ErrCodeAddressMismatch: a supplied address is not the derivation of its seeds.
	ErrCodeAddressMismatch ErrorCode = "AddressMismatch"

	// ErrCodeUnauthorized: the signer is missing or does not own the record.
	ErrCodeUnauthorized ErrorCode = "Unauthorized"

	// ErrCodeInvalidInstructionData: instruction arguments did not decode.
	ErrCodeInvalidInstructionData ErrorCode = "InvalidInstructionData"
)

// errorNumbers are the numeric codes shown to ledger clients.
// Custom program errors start at 6000.
var errorNumbers = map[ErrorCode]uint32{
	ErrCodeOverflow:               6000,
	ErrCodeContentTooLong:         6001,
	ErrCodeUsernameTooLong:        6002,
	ErrCodeAddressMismatch:        6003,
	ErrCodeUnauthorized:           6004,
	ErrCodeInvalidInstructionData: 6005,
}

// Number returns the numeric form of the code.
func (c ErrorCode) Number() uint32 {
	return errorNumbers[c]
}

// Error implements the error interface.
func (e *ProgramError) Error() string {
	if !e.Account.IsZero() {
		return fmt.Sprintf("%s (%d): %s (account=%s)", e.Code, e.Code.Number(), e.Message, e.Account)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Code.Number(), e.Message)
}

// ErrorCode returns the code recorded in the transaction log.
func (e *ProgramError) ErrorCode() string {
	return string(e.Code)
}

func hasCode(err error, code ErrorCode) bool {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsOverflow returns true if err is a counter overflow.
func IsOverflow(err error) bool { return hasCode(err, ErrCodeOverflow) }

// IsAddressMismatch returns true if err is an address derivation mismatch.
func IsAddressMismatch(err error) bool { return hasCode(err, ErrCodeAddressMismatch) }

// IsUnauthorized returns true if err is a signer or ownership failure.
func IsUnauthorized(err error) bool { return hasCode(err, ErrCodeUnauthorized) }

// NewOverflowError reports that the named counter is at its maximum.
func NewOverflowError(counter string, acc address.Pubkey) *ProgramError {
	return &ProgramError{
		Code:    ErrCodeOverflow,
		Message: fmt.Sprintf("arithmetic overflow on %s", counter),
		Account: acc,
		Details: map[string]string{"counter": counter},
	}
}

// NewAddressMismatch reports that got is not the address derived for the
// described seeds.
func NewAddressMismatch(what string, got, want address.Pubkey) *ProgramError {
	return &ProgramError{
		Code:    ErrCodeAddressMismatch,
		Message: fmt.Sprintf("%s address mismatch: expected %s", what, want),
		Account: got,
		Details: map[string]string{
			"kind":     what,
			"expected": want.String(),
		},
	}
}

func newUnauthorized(msg string, acc address.Pubkey) *ProgramError {
	return &ProgramError{Code: ErrCodeUnauthorized, Message: msg, Account: acc}
}

func newTextTooLong(code ErrorCode, err error) *ProgramError {
	return &ProgramError{Code: code, Message: err.Error()}
}

func newInvalidInstructionData(err error) *ProgramError {
	return &ProgramError{Code: ErrCodeInvalidInstructionData, Message: err.Error()}
}
