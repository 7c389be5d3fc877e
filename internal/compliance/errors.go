package compliance

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service for a caller mistake wraps
// exactly one of these; test with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

// Specific failures, each wrapping a kind.
var (
	ErrSameRole            = fmt.Errorf("%w: profiles share a role", ErrConflict)
	ErrSelfConnection      = fmt.Errorf("%w: cannot connect a profile to itself", ErrConflict)
	ErrDuplicateConnection = fmt.Errorf("%w: connection already exists", ErrConflict)
	ErrDuplicateCode       = fmt.Errorf("%w: unique code already taken", ErrConflict)
	ErrDuplicateEmail      = fmt.Errorf("%w: email already registered for role", ErrConflict)
	ErrNotConnected        = fmt.Errorf("%w: no active connection between buyer and supplier", ErrInvalidState)
	ErrAuditFinalized      = fmt.Errorf("%w: audit is already approved", ErrInvalidState)
)

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
