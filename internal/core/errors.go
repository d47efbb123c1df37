package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidKind       = errors.New("invalid transaction kind")
	ErrInvalidAssetClass = errors.New("invalid asset class")
	ErrEmptyAssetName    = errors.New("empty asset name")
	ErrUnknownPerson     = errors.New("unknown household member")
	ErrInvalidCeiling    = errors.New("budget ceiling must be positive")
)

// ValidationError rejects a record before it reaches the store.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidationError reports whether err (or anything it wraps) is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConfigurationError describes a budget entry that cannot be evaluated. Reports
// degrade around it instead of failing.
type ConfigurationError struct {
	Label string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("budget %q: %v", e.Label, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
