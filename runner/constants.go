package runner

import "time"

const (
	// DefaultSubSteps is the number of uniform sub-steps each phase is split into
	DefaultSubSteps = 10

	// DefaultStepDelay is the duration of one simulated sub-step
	DefaultStepDelay = 200 * time.Millisecond

	// DefaultInterTestDelay is the minimum spacing between test starts in batch mode
	DefaultInterTestDelay = 500 * time.Millisecond

	// DefaultProgressInterval is how often the console indicator logs progress
	DefaultProgressInterval = 30 * time.Second

	// PhaseEndpointPrefix prefixes the probe endpoint called by ProbeExecutor
	PhaseEndpointPrefix = "phase."
)
