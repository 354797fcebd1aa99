package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation classifies input that breaks a ledger or chart invariant.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrConfiguration classifies a chart that cannot serve the requested step.
	ErrConfiguration = errors.New("accounting: configuration error")
	// ErrNotFound classifies references to missing rows.
	ErrNotFound = errors.New("accounting: not found")
	// ErrConcurrency classifies conflicting writes that kept failing after retries.
	ErrConcurrency = errors.New("accounting: concurrent update conflict")

	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: transaction entries must balance")
	// ErrTooFewEntries indicates less than two entries.
	ErrTooFewEntries = errors.New("accounting: transaction requires at least two entries")
	// ErrInvalidStatus indicates action can't proceed from the current status.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrSourceAlreadyLinked indicates the origination source was already posted.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrLocked indicates a protected system group or account.
	ErrLocked = errors.New("accounting: locked by system")
)

// ValidationError describes a rejected field or relationship.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("accounting: %s", e.Reason)
	}
	return fmt.Sprintf("accounting: %s: %s", e.Field, e.Reason)
}

// Is lets callers match both ErrValidation and the wrapped cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidBecause builds a ValidationError wrapping a sentinel cause.
func InvalidBecause(field string, cause error) error {
	return &ValidationError{Field: field, Reason: cause.Error(), Err: cause}
}

// ConfigurationError reports a missing or inconsistent chart element.
type ConfigurationError struct {
	Role   string
	Scope  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	msg := "accounting: configuration: " + e.Reason
	if e.Role != "" {
		msg += " (role " + e.Role + ")"
	}
	if e.Scope != "" {
		msg += " [" + e.Scope + "]"
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Misconfigured builds a ConfigurationError.
func Misconfigured(role, scope, reason string) error {
	return &ConfigurationError{Role: role, Scope: scope, Reason: reason}
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("accounting: %s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound builds a NotFoundError.
func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConcurrencyError wraps the last conflict after retries were exhausted.
type ConcurrencyError struct {
	Attempts int
	Err      error
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("accounting: write conflict after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrency
}

func (e *ConcurrencyError) Unwrap() error { return e.Err }

// IsNotFound reports whether err classifies as ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
