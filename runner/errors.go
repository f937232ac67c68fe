package runner

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a run is started while another one is still active
var ErrRunInProgress = errors.New("run already in progress")

// OrchestrationError reports the phase that aborted a run
type OrchestrationError struct {
	Phase string
	Index int
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("phase %s (index %d) failed: %v", e.Phase, e.Index, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

// IsOrchestrationError checks if an error is an OrchestrationError
func IsOrchestrationError(err error) bool {
	var oerr *OrchestrationError
	return errors.As(err, &oerr)
}
