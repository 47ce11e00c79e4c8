package engine

import (
	"errors"
	"fmt"
)

// Kind groups errors by how callers should react: not-found and conflict are
// user-correctable, validation aborts before any write, internal means the
// data itself is inconsistent.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindValidation
	KindInternal
)

// Stable machine codes surfaced to API clients.
const (
	CodePaymentNotFound  = "PAYMENT_NOT_FOUND"
	CodeContractNotFound = "CONTRACT_NOT_FOUND"
	CodeBalanceNotFound  = "BALANCE_NOT_FOUND"
	CodeAlreadyConfirmed = "ALREADY_CONFIRMED"
	CodeAlreadyRejected  = "ALREADY_REJECTED"
	CodeAlreadyCancelled = "ALREADY_CANCELLED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeIntegrity        = "INTEGRITY"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// Integrity marks states that should be impossible with consistent data, e.g.
// a payment whose contract cannot be located. Surfaced as opaque internal
// errors, never retried automatically.
func Integrity(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Code: CodeIntegrity, Message: fmt.Sprintf(format, args...)}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
