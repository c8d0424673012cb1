package relay_errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidState    = errors.New("invalid state")
	ErrStorageConflict = errors.New("storage conflict")
)

// Message lifecycle errors. Each wraps ErrInvalidState so callers can match
// either the broad category or the specific condition.
var (
	ErrEditWindowExpired      = fmt.Errorf("edit window expired: %w", ErrInvalidState)
	ErrRecallWindowExpired    = fmt.Errorf("recall window expired: %w", ErrInvalidState)
	ErrAlreadyRecalled        = fmt.Errorf("message already recalled: %w", ErrInvalidState)
	ErrMessageRecalled        = fmt.Errorf("message is recalled: %w", ErrInvalidState)
	ErrSystemMessageImmutable = fmt.Errorf("system messages are immutable: %w", ErrInvalidState)
)
