package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lipa-labs/payaudit/types"
)

// DefaultPlanName selects the built-in plan instead of a file
const DefaultPlanName = "default"

// LoadPlan reads an audit plan from a YAML file
func LoadPlan(path string) (*types.PlanConfig, error) {
	if path == DefaultPlanName {
		return DefaultPlan(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan types.PlanConfig
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return &plan, nil
}

// Select returns a new registry holding the tests named by the plan, in plan
// order, with plan parameters merged over the registered defaults. An empty
// selection keeps every registered test.
func (r *Registry) Select(tests []types.TestConfig) (*Registry, error) {
	out := NewRegistry(Config{Log: r.log})
	if len(tests) == 0 {
		for _, id := range r.IDs() {
			e, _ := r.Lookup(id)
			if err := out.Register(e); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	for _, tc := range tests {
		if tc.Skip {
			r.log.Info("Skipping test from plan", "id", tc.ID)
			continue
		}
		e, ok := r.Lookup(tc.ID)
		if !ok {
			return nil, fmt.Errorf("plan references unknown test %q", tc.ID)
		}
		e.Params = e.Params.Merge(tc.Params)
		if tc.Critical != nil {
			e.Metadata.Critical = *tc.Critical
		}
		if err := out.Register(e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Phases creates the pending phase list for a run
func Phases(plan *types.PlanConfig) []types.Phase {
	phases := make([]types.Phase, 0, len(plan.Phases))
	for _, cfg := range plan.Phases {
		phases = append(phases, types.NewPhase(cfg))
	}
	return phases
}
