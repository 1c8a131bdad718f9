package apperr

import "errors"

// Sentinel errors for the ledger core. Services wrap them with
// fmt.Errorf("%w: ...") so callers can branch with errors.Is while
// still getting a descriptive message.
var (
	// ErrValidation means the input shape or value is bad.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a state-machine violation (double confirm, double webhook).
	ErrConflict = errors.New("conflict")
	// ErrPermission means the caller lacks the required role.
	ErrPermission = errors.New("permission denied")
	// ErrInsufficientFunds means a withdrawal exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrExternal means a downstream collaborator failed; the caller may retry.
	ErrExternal = errors.New("external service error")
)
