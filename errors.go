package auditor

import (
	"errors"
	"fmt"
)

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include configuration errors, unreachable stores, cancelled runs, etc.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// AuditFailureError represents a failed audit (exit code 1)
type AuditFailureError struct {
	Message string
}

func (e *AuditFailureError) Error() string {
	return fmt.Sprintf("audit failure: %s", e.Message)
}

// NewAuditFailureError creates a new AuditFailureError
func NewAuditFailureError(message string) *AuditFailureError {
	return &AuditFailureError{Message: message}
}

// IsAuditFailureError checks if the error is or wraps an AuditFailureError
func IsAuditFailureError(err error) bool {
	var auditErr *AuditFailureError
	return err != nil && errors.As(err, &auditErr)
}
