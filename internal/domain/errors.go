package domain

import "fmt"

// ErrorCode is the stable machine-readable identifier for a domain error.
// The transport layer maps these to wire-level codes; the strings never change.
type ErrorCode string

const (
	CodeInsufficientFunds        ErrorCode = "INSUFFICIENT_FUNDS"
	CodeInsufficientGrantBalance ErrorCode = "INSUFFICIENT_GRANT_BALANCE"
	CodeExpiredGrant             ErrorCode = "EXPIRED_GRANT"
	CodeInvalidStateTransition   ErrorCode = "INVALID_STATE_TRANSITION"
	CodeUnconfirmedFunding       ErrorCode = "UNCONFIRMED_FUNDING"
	CodeProductAlreadyReserved   ErrorCode = "PRODUCT_ALREADY_RESERVED"
	CodeNotFound                 ErrorCode = "NOT_FOUND"
	CodeConcurrencyConflict      ErrorCode = "CONCURRENCY_CONFLICT"
	CodeUnauthorized             ErrorCode = "UNAUTHORIZED"
	CodeInvalidArgument          ErrorCode = "INVALID_ARGUMENT"
)

// Error is a user-facing domain error. All sentinels below are recoverable
// and surfaced verbatim to the caller; the core never retries on its own.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is lets wrapped copies of a sentinel match via errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInsufficientFunds        = &Error{CodeInsufficientFunds, "wallet balance is insufficient to cover the deposit"}
	ErrInsufficientGrantBalance = &Error{CodeInsufficientGrantBalance, "credit grant balance is insufficient to cover the deposit"}
	ErrExpiredGrant             = &Error{CodeExpiredGrant, "gift grant expires before the rental ends"}
	ErrInvalidStateTransition   = &Error{CodeInvalidStateTransition, "rental request is not in a state that allows this transition"}
	ErrUnconfirmedFunding       = &Error{CodeUnconfirmedFunding, "the purchase backing this request has not been confirmed"}
	ErrProductAlreadyReserved   = &Error{CodeProductAlreadyReserved, "product is already under an active rental request"}
	ErrNotFound                 = &Error{CodeNotFound, "not found"}
	// ErrConcurrencyConflict means two operations raced on the same rows.
	// Safe for the caller to retry the whole operation.
	ErrConcurrencyConflict = &Error{CodeConcurrencyConflict, "a concurrent operation modified the same record, retry"}
	ErrUnauthorized        = &Error{CodeUnauthorized, "actor is not allowed to perform this operation"}
	ErrInvalidArgument     = &Error{CodeInvalidArgument, "invalid argument"}
)

// Errorf wraps a sentinel with call-site detail while keeping the stable
// code matchable through errors.Is.
func Errorf(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}
