package runner

import (
	"context"
	"errors"
	"time"

	"github.com/lipa-labs/payaudit/probe"
	"github.com/lipa-labs/payaudit/types"
)

// PhaseExecutor performs the work of one sub-step of a phase. Steps are
// numbered 1..total.
type PhaseExecutor interface {
	ExecuteStep(ctx context.Context, phase types.Phase, step, total int) error
}

// PhaseExecutorFunc adapts a function to the PhaseExecutor interface
type PhaseExecutorFunc func(ctx context.Context, phase types.Phase, step, total int) error

// ExecuteStep implements PhaseExecutor
func (f PhaseExecutorFunc) ExecuteStep(ctx context.Context, phase types.Phase, step, total int) error {
	return f(ctx, phase, step, total)
}

// SimulatedExecutor waits a fixed delay per sub-step
type SimulatedExecutor struct {
	StepDelay time.Duration
}

// NewSimulatedExecutor creates a simulated executor
func NewSimulatedExecutor(stepDelay time.Duration) *SimulatedExecutor {
	return &SimulatedExecutor{StepDelay: stepDelay}
}

// ExecuteStep implements PhaseExecutor
func (s *SimulatedExecutor) ExecuteStep(ctx context.Context, _ types.Phase, _, _ int) error {
	if s.StepDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.StepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ProbeExecutor calls the probe endpoint "phase.<id>" once per sub-step
type ProbeExecutor struct {
	Probe probe.Probe
}

// NewProbeExecutor creates a probe backed executor
func NewProbeExecutor(p probe.Probe) *ProbeExecutor {
	return &ProbeExecutor{Probe: p}
}

// PhaseEndpoint returns the probe endpoint of a phase
func PhaseEndpoint(phaseID string) string {
	return PhaseEndpointPrefix + phaseID
}

// ExecuteStep implements PhaseExecutor
func (p *ProbeExecutor) ExecuteStep(ctx context.Context, phase types.Phase, step, total int) error {
	endpoint := PhaseEndpoint(phase.ID)
	if p.Probe == nil {
		return &types.IntegrationError{Endpoint: endpoint, Err: errors.New("no probe configured")}
	}
	res, err := p.Probe.Invoke(ctx, endpoint, map[string]any{
		"phase":    phase.ID,
		"category": phase.Category,
		"step":     step,
		"steps":    total,
	})
	if err != nil {
		return &types.IntegrationError{Endpoint: endpoint, Err: err}
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "endpoint reported failure"
		}
		return &types.IntegrationError{Endpoint: endpoint, Err: errors.New(msg)}
	}
	return nil
}
