// Package exitcodes defines the exit codes used by payaudit.
package exitcodes

// Exit code constants used by payaudit:
//
// * Success (0): the audit passed
// * AuditFailure (1): the audit report failed or a critical test failed
// * RuntimeErr (2): configuration errors, panics, cancellation and other operational failures
const (
	Success      = 0 // Audit passed
	AuditFailure = 1 // Audit failures
	RuntimeErr   = 2 // Runtime errors
)
