package types

import (
	"fmt"
	"time"
)

// PlanConfig represents the complete audit plan loaded from YAML
type PlanConfig struct {
	Phases []PhaseConfig `yaml:"phases"`
	Tests  []TestConfig  `yaml:"tests"`
}

// PhaseConfig configures one audit phase. Phases run in file order.
type PhaseConfig struct {
	ID                string        `yaml:"id"`
	Name              string        `yaml:"name"`
	Description       string        `yaml:"description"`
	Category          string        `yaml:"category"`
	Severity          Severity      `yaml:"severity,omitempty"`
	EstimatedDuration time.Duration `yaml:"estimated_duration"`
}

// TestConfig selects a registered test and supplies its parameters
type TestConfig struct {
	ID       string         `yaml:"id"`
	Params   map[string]any `yaml:"params,omitempty"`
	Critical *bool          `yaml:"critical,omitempty"` // overrides the registered criticality
	Skip     bool           `yaml:"skip,omitempty"`
}

// Validate checks the plan for missing ids, duplicates and unknown severities
func (p *PlanConfig) Validate() error {
	seen := make(map[string]bool)
	for i, phase := range p.Phases {
		if phase.ID == "" {
			return fmt.Errorf("phase at index %d has no id", i)
		}
		if seen[phase.ID] {
			return fmt.Errorf("duplicate phase id %q", phase.ID)
		}
		seen[phase.ID] = true
		if phase.Severity != "" && !phase.Severity.IsValid() {
			return fmt.Errorf("phase %q has unknown severity %q", phase.ID, phase.Severity)
		}
		if phase.EstimatedDuration < 0 {
			return fmt.Errorf("phase %q has negative estimated duration", phase.ID)
		}
	}

	seenTests := make(map[string]bool)
	for i, test := range p.Tests {
		if test.ID == "" {
			return fmt.Errorf("test at index %d has no id", i)
		}
		if seenTests[test.ID] {
			return fmt.Errorf("duplicate test id %q", test.ID)
		}
		seenTests[test.ID] = true
	}
	return nil
}

// Params are the caller-supplied inputs for a single test execution
type Params map[string]any

// String returns the string value for key, or "" when missing
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Float returns the numeric value for key. Strings are not parsed.
func (p Params) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// Merge returns a copy of p with the entries of override applied on top
func (p Params) Merge(override map[string]any) Params {
	out := make(Params, len(p)+len(override))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
