package types

import (
	"errors"
	"fmt"
)

// ValidationError describes an input outside its declared domain. Validation
// checks turn it into a failed TestResult; it is never returned past the dispatcher.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// IntegrationError wraps a failure reported by, or raised while calling, an external probe.
type IntegrationError struct {
	Endpoint string
	Err      error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration %s: %v", e.Endpoint, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if the error is or wraps a ValidationError
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return err != nil && errors.As(err, &vErr)
}

// IsIntegrationError checks if the error is or wraps an IntegrationError
func IsIntegrationError(err error) bool {
	var iErr *IntegrationError
	return err != nil && errors.As(err, &iErr)
}
