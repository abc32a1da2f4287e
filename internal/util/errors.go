// internal/util/errors.go
package util

import "errors"

// Common application-specific errors. Callers wrap these with context using
// fmt.Errorf("%w: ...") and test for them with IsError.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input provided")
	ErrForbidden    = errors.New("operation not permitted")

	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrBelowMinimum          = errors.New("amount is below the minimum stake")
	ErrNotPending            = errors.New("request is not pending")
	ErrSignalNotOpen         = errors.New("signal is not open")
	ErrSignalAlreadyResolved = errors.New("signal is already resolved")
	ErrSignalNotExpired      = errors.New("signal has not reached its expiry")
	ErrAlreadyJoined         = errors.New("user already holds a pending stake on this signal")
	ErrMissingJustification  = errors.New("admin notes are required")

	// ErrInvariantViolation means accounting state has drifted. It is a defect,
	// never a user error.
	ErrInvariantViolation = errors.New("ledger invariant violation")
	// ErrStoreUnavailable is a transient infrastructure failure; the caller
	// owns the retry policy.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvariantViolation, "invariant_violation"},
	{ErrStoreUnavailable, "store_unavailable"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrBelowMinimum, "below_minimum"},
	{ErrNotPending, "not_pending"},
	{ErrSignalNotOpen, "signal_not_open"},
	{ErrSignalAlreadyResolved, "signal_already_resolved"},
	{ErrSignalNotExpired, "signal_not_expired"},
	{ErrAlreadyJoined, "already_joined"},
	{ErrMissingJustification, "missing_justification"},
	{ErrNotFound, "not_found"},
	{ErrInvalidInput, "invalid_input"},
	{ErrForbidden, "forbidden"},
}

// Kind returns the stable machine-readable name of err's category, or
// "internal" when err matches none of the sentinels above.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// IsUserError reports whether err is a validation failure detected before any
// mutation, as opposed to an infrastructure or accounting fault.
func IsUserError(err error) bool {
	switch Kind(err) {
	case "internal", "invariant_violation", "store_unavailable":
		return false
	}
	return true
}
