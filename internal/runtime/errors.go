package runtime

import (
	"errors"
	"fmt"

	"github.com/roach88/socialledger/internal/address"
)

// TransactionError is a failure detected by the runtime itself rather than
// by program code: signatures, account declarations, init constraints and
// write rules.
//
// Every TransactionError is terminal for its transaction. All account writes
// roll back.
type TransactionError struct {
	// Code identifies the error category.
	Code TransactionErrorCode

	// Message is a human-readable description.
	Message string

	// Address is the account involved, if any.
	Address address.Pubkey

	// Details contains additional context.
	Details map[string]string
}

// TransactionErrorCode categorizes runtime failures.
type TransactionErrorCode string

const (
	// ErrCodeInitializationConflict: an account declared for creation already holds data.
	ErrCodeInitializationConflict TransactionErrorCode = "InitializationConflict"

	// ErrCodeAccountNotInitialized: the program required an account that holds no data.
	ErrCodeAccountNotInitialized TransactionErrorCode = "AccountNotInitialized"

	// ErrCodeMissingRequiredSignature: a signer meta has no signature.
	ErrCodeMissingRequiredSignature TransactionErrorCode = "MissingRequiredSignature"

	// ErrCodeInvalidSignature: a signature does not verify against the message.
	ErrCodeInvalidSignature TransactionErrorCode = "InvalidSignature"

	// ErrCodeAlreadyProcessed: the transaction id is already in the log.
	ErrCodeAlreadyProcessed TransactionErrorCode = "AlreadyProcessed"

	// ErrCodeUnknownInstruction: no program is registered under the program id,
	// or the program does not recognise the instruction discriminator.
	ErrCodeUnknownInstruction TransactionErrorCode = "UnknownInstruction"

	// ErrCodeAccountDataTooSmall: a write exceeds the space reserved at creation.
	ErrCodeAccountDataTooSmall TransactionErrorCode = "AccountDataTooSmall"

	// ErrCodeInvalidAccountData: stored data does not decode as the expected record.
	ErrCodeInvalidAccountData TransactionErrorCode = "InvalidAccountData"

	// ErrCodeNotEnoughAccountKeys: the instruction declares fewer accounts than the program reads.
	ErrCodeNotEnoughAccountKeys TransactionErrorCode = "NotEnoughAccountKeys"

	// ErrCodeReadonlyDataModified: the program wrote to an account not declared writable.
	ErrCodeReadonlyDataModified TransactionErrorCode = "ReadonlyDataModified"

	// ErrCodeExternalAccountDataModified: the program wrote to an account another program owns.
	ErrCodeExternalAccountDataModified TransactionErrorCode = "ExternalAccountDataModified"
)

// Error implements the error interface.
func (e *TransactionError) Error() string {
	if !e.Address.IsZero() {
		return fmt.Sprintf("%s: %s (account=%s)", e.Code, e.Message, e.Address)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the code recorded in the transaction log.
func (e *TransactionError) ErrorCode() string {
	return string(e.Code)
}

// Coded is implemented by every error that ends a transaction with a logged
// failure. Errors without a code are infrastructure failures and are not
// logged.
type Coded interface {
	error
	ErrorCode() string
}

// ErrorCode extracts the log code from err, or "" if err carries none.
// Uses errors.As to handle wrapped errors.
func ErrorCode(err error) string {
	var c Coded
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

func hasCode(err error, code TransactionErrorCode) bool {
	var te *TransactionError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsInitializationConflict returns true if err is an init-constraint failure.
func IsInitializationConflict(err error) bool {
	return hasCode(err, ErrCodeInitializationConflict)
}

// IsAlreadyProcessed returns true if err reports a duplicate transaction.
func IsAlreadyProcessed(err error) bool {
	return hasCode(err, ErrCodeAlreadyProcessed)
}

// IsAccountNotInitialized returns true if err reports a missing account.
func IsAccountNotInitialized(err error) bool {
	return hasCode(err, ErrCodeAccountNotInitialized)
}

// IsSignatureError returns true for missing or invalid signatures.
func IsSignatureError(err error) bool {
	return hasCode(err, ErrCodeMissingRequiredSignature) || hasCode(err, ErrCodeInvalidSignature)
}

// NewInitializationConflict reports that addr already holds data.
func NewInitializationConflict(addr address.Pubkey) *TransactionError {
	return &TransactionError{
		Code:    ErrCodeInitializationConflict,
		Message: "account already in use",
		Address: addr,
	}
}

// NewAccountNotInitialized reports that addr holds no data.
func NewAccountNotInitialized(addr address.Pubkey) *TransactionError {
	return &TransactionError{
		Code:    ErrCodeAccountNotInitialized,
		Message: "account is not initialized",
		Address: addr,
	}
}

// NewInvalidAccountData reports that the data at addr failed to decode.
func NewInvalidAccountData(addr address.Pubkey, cause error) *TransactionError {
	return &TransactionError{
		Code:    ErrCodeInvalidAccountData,
		Message: fmt.Sprintf("account data did not decode: %v", cause),
		Address: addr,
	}
}

// NewUnknownInstruction reports an unregistered program or unrecognised
// instruction data.
func NewUnknownInstruction(programID address.Pubkey, detail string) *TransactionError {
	return &TransactionError{
		Code:    ErrCodeUnknownInstruction,
		Message: detail,
		Details: map[string]string{"program_id": programID.String()},
	}
}

func newNotEnoughAccountKeys(want, have int) *TransactionError {
	return &TransactionError{
		Code:    ErrCodeNotEnoughAccountKeys,
		Message: fmt.Sprintf("instruction needs account %d, only %d declared", want, have),
		Details: map[string]string{
			"index":    fmt.Sprintf("%d", want),
			"declared": fmt.Sprintf("%d", have),
		},
	}
}

func newSignatureError(code TransactionErrorCode, signer address.Pubkey) *TransactionError {
	msg := "signature missing"
	if code == ErrCodeInvalidSignature {
		msg = "signature does not verify"
	}
	return &TransactionError{Code: code, Message: msg, Address: signer}
}

func newAlreadyProcessed(id string) *TransactionError {
	return &TransactionError{
		Code:    ErrCodeAlreadyProcessed,
		Message: "transaction already processed",
		Details: map[string]string{"transaction_id": id},
	}
}
