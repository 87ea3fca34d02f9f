/*
errors.go - Error types for the quota engine

PURPOSE:
  The engine fails in exactly two ways, both caller-recoverable and both
  deterministic for the same inputs:

  1. Invalid input - negative counts, empty required lists, unknown enums
  2. Missing year configuration - the requested year was never provisioned

  There are no retryable failures: the engine performs no I/O.

USAGE:
  if errors.Is(err, quota.ErrConfigNotFound) {
      // tell the caller which year is missing
  }

  var inv *quota.InvalidInputError
  if errors.As(err, &inv) {
      log.Printf("bad field %s: %s", inv.Field, inv.Reason)
  }
*/
package quota

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed or out-of-range arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfigNotFound is returned when no YearConfig exists for a year.
	ErrConfigNotFound = errors.New("year config not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// ConfigNotFoundError names the year that has no configuration.
type ConfigNotFoundError struct {
	Year int
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("no year config provisioned for %d", e.Year)
}

func (e *ConfigNotFoundError) Unwrap() error {
	return ErrConfigNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrConfigNotFound)
}

// IsNotFound returns true if the error indicates a missing year config.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}

func invalid(field, format string, args ...any) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func indexed(field string, i int) string {
	return fmt.Sprintf("%s[%d]", field, i)
}
