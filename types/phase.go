// Package types contains shared types used across the payaudit engine
package types

import (
	"fmt"
	"time"
)

// PhaseStatus represents the lifecycle state of an audit phase
type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusRunning   PhaseStatus = "running"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusFailed    PhaseStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s PhaseStatus) IsTerminal() bool {
	return s == PhaseStatusCompleted || s == PhaseStatusFailed
}

// Severity classifies how serious an issue is
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IsValid returns true if s is one of the known severities
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Finding is an issue discovered while executing a phase
type Finding struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// PhaseResult holds the per-category result data attached to a phase when it completes
type PhaseResult struct {
	TestsRun    int               `json:"testsRun"`
	TestsPassed int               `json:"testsPassed"`
	TestsFailed int               `json:"testsFailed"`
	Findings    []Finding         `json:"findings,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// Phase is a named, ordered stage of an audit run
type Phase struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Category          string        `json:"category"`
	Severity          Severity      `json:"severity"` // severity of the issue raised if the phase fails
	EstimatedDuration time.Duration `json:"estimatedDuration"`
	Status            PhaseStatus   `json:"status"`
	Results           *PhaseResult  `json:"results,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// NewPhase creates a pending phase from its configuration
func NewPhase(cfg PhaseConfig) Phase {
	severity := cfg.Severity
	if severity == "" {
		severity = SeverityHigh
	}
	return Phase{
		ID:                cfg.ID,
		Name:              cfg.Name,
		Description:       cfg.Description,
		Category:          cfg.Category,
		Severity:          severity,
		EstimatedDuration: cfg.EstimatedDuration,
		Status:            PhaseStatusPending,
	}
}

// Transition moves the phase to the next status, refusing any move that
// skips running or leaves a terminal state.
func (p *Phase) Transition(next PhaseStatus) error {
	ok := false
	switch p.Status {
	case PhaseStatusPending:
		ok = next == PhaseStatusRunning
	case PhaseStatusRunning:
		ok = next.IsTerminal()
	}
	if !ok {
		return fmt.Errorf("phase %s: illegal transition %s -> %s", p.ID, p.Status, next)
	}
	p.Status = next
	return nil
}

// Clone returns a deep copy of the phase
func (p Phase) Clone() Phase {
	if p.Results != nil {
		res := *p.Results
		res.Findings = append([]Finding(nil), p.Results.Findings...)
		if p.Results.Details != nil {
			res.Details = make(map[string]string, len(p.Results.Details))
			for k, v := range p.Results.Details {
				res.Details[k] = v
			}
		}
		p.Results = &res
	}
	return p
}
