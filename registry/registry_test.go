package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipa-labs/payaudit/probe"
	"github.com/lipa-labs/payaudit/types"
)

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func passing(types.Params) types.TestResult {
	return types.TestResult{Success: true}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry(Config{Log: testLogger()})

	require.NoError(t, r.Register(Entry{Metadata: types.TestMetadata{ID: "b_second"}, Executor: ValidationCheck(passing)}))
	require.NoError(t, r.Register(Entry{Metadata: types.TestMetadata{ID: "a_first", Name: "First"}, Executor: ValidationCheck(passing)}))

	assert.Equal(t, []string{"b_second", "a_first"}, r.IDs(), "registration order is preserved")
	assert.Equal(t, 2, r.Len())

	e, ok := r.Lookup("b_second")
	require.True(t, ok)
	assert.Equal(t, "b_second", e.Metadata.Name, "name defaults to id")

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegisterRejectsInvalidEntries(t *testing.T) {
	r := NewRegistry(Config{Log: testLogger()})

	require.ErrorContains(t, r.Register(Entry{Executor: ValidationCheck(passing)}), "id is required")
	require.ErrorContains(t, r.Register(Entry{Metadata: types.TestMetadata{ID: "x"}}), "executor is required")

	require.NoError(t, r.Register(Entry{Metadata: types.TestMetadata{ID: "x"}, Executor: ValidationCheck(passing)}))
	require.ErrorContains(t, r.Register(Entry{Metadata: types.TestMetadata{ID: "x"}, Executor: ValidationCheck(passing)}), "already registered")
}

func TestIntegrationCheck(t *testing.T) {
	ctx := context.Background()
	p := probe.NewStaticProbe().
		Respond("ok", probe.Response{Success: true, Data: map[string]any{"id": "1"}}).
		Respond("declined", probe.Response{Success: false, Error: "insufficient funds"}).
		Fail("down", errors.New("connection refused"))

	res, err := IntegrationCheck{Endpoint: "ok", Probe: p}.Execute(ctx, types.Params{"amount": 1})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{"id": "1"}, res.Data)

	res, err = IntegrationCheck{Endpoint: "declined", Probe: p}.Execute(ctx, nil)
	require.Error(t, err)
	assert.True(t, types.IsIntegrationError(err))
	assert.False(t, res.Success)
	assert.Equal(t, "insufficient funds", res.Message)

	_, err = IntegrationCheck{Endpoint: "down", Probe: p}.Execute(ctx, nil)
	require.ErrorContains(t, err, "connection refused")
	assert.True(t, types.IsIntegrationError(err))

	_, err = IntegrationCheck{Endpoint: "ok"}.Execute(ctx, nil)
	require.ErrorContains(t, err, "no probe configured")

	_, err = IntegrationCheck{
		Endpoint: "ok",
		Probe:    p,
		Payload:  func(types.Params) map[string]any { return map[string]any{"custom": true} },
	}.Execute(ctx, types.Params{"ignored": 1})
	require.NoError(t, err)
	calls := p.Calls()
	assert.Equal(t, map[string]any{"custom": true}, calls[len(calls)-1].Payload)
}

func TestDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry(probe.NewStaticProbe(), testLogger())
	require.NoError(t, err)

	ids := r.IDs()
	require.Len(t, ids, 7)
	assert.Equal(t, "mpesa_phone_validation", ids[0])

	e, ok := r.Lookup("mpesa_phone_validation")
	require.True(t, ok)
	assert.True(t, e.Metadata.Critical)
	res, err := e.Executor.Execute(context.Background(), e.Params)
	require.NoError(t, err)
	assert.True(t, res.Success, "default params are valid")

	e, ok = r.Lookup("mpesa_amount_validation")
	require.True(t, ok)
	res, err = e.Executor.Execute(context.Background(), e.Params)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSelect(t *testing.T) {
	r, err := NewDefaultRegistry(nil, testLogger())
	require.NoError(t, err)

	notCritical := false
	sel, err := r.Select([]types.TestConfig{
		{ID: "mpesa_amount_validation", Params: map[string]any{"amount": 70001}},
		{ID: "paypal_create_order", Critical: &notCritical},
		{ID: "db_connection", Skip: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mpesa_amount_validation", "paypal_create_order"}, sel.IDs())

	e, _ := sel.Lookup("mpesa_amount_validation")
	assert.Equal(t, 70001, e.Params["amount"])
	res, _ := e.Executor.Execute(context.Background(), e.Params)
	assert.False(t, res.Success)

	e, _ = sel.Lookup("paypal_create_order")
	assert.False(t, e.Metadata.Critical)
	orig, _ := r.Lookup("paypal_create_order")
	assert.True(t, orig.Metadata.Critical, "selection does not mutate the source registry")

	all, err := r.Select(nil)
	require.NoError(t, err)
	assert.Equal(t, r.IDs(), all.IDs())

	_, err = r.Select([]types.TestConfig{{ID: "nope"}})
	require.ErrorContains(t, err, `unknown test "nope"`)
}

func TestLoadPlan(t *testing.T) {
	content := []byte(`
phases:
  - id: security
    name: Security Audit
    category: security
    severity: critical
    estimated_duration: 2m
  - id: performance
    name: Performance Testing
    category: performance
    estimated_duration: 90s
tests:
  - id: mpesa_phone_validation
    params:
      phone: "0712345678"
  - id: db_connection
    critical: false
`)
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, content, 0644))

	plan, err := LoadPlan(path)
	require.NoError(t, err)
	require.Len(t, plan.Phases, 2)
	assert.Equal(t, 2*time.Minute, plan.Phases[0].EstimatedDuration)
	assert.Equal(t, types.SeverityCritical, plan.Phases[0].Severity)
	require.Len(t, plan.Tests, 2)
	assert.Equal(t, "0712345678", plan.Tests[0].Params["phone"])
	require.NotNil(t, plan.Tests[1].Critical)
	assert.False(t, *plan.Tests[1].Critical)

	phases := Phases(plan)
	require.Len(t, phases, 2)
	assert.Equal(t, types.PhaseStatusPending, phases[1].Status)
	assert.Equal(t, types.SeverityHigh, phases[1].Severity)
}

func TestLoadPlanErrors(t *testing.T) {
	_, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "failed to read plan file")

	path := filepath.Join(t.TempDir(), "dup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("phases:\n  - id: a\n  - id: a\n"), 0644))
	_, err = LoadPlan(path)
	require.ErrorContains(t, err, "duplicate phase id")

	plan, err := LoadPlan(DefaultPlanName)
	require.NoError(t, err)
	assert.Len(t, plan.Phases, 6)
}

func TestLoadPlanPhoneParams(t *testing.T) {
	content := []byte(`
tests:
  - id: mpesa_phone_validation
    params:
      phone: +254712345678
`)
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, content, 0644))

	plan, err := LoadPlan(path)
	require.NoError(t, err)

	r, err := NewDefaultRegistry(nil, testLogger())
	require.NoError(t, err)

	tests := []struct {
		name  string
		phone any
		pass  bool
	}{
		{name: "unquoted number from yaml", phone: plan.Tests[0].Params["phone"], pass: false},
		{name: "unquoted leading zero", phone: 712345678, pass: false},
		{name: "quoted valid number", phone: "254712345678", pass: true},
		{name: "quoted plus prefix", phone: "+254712345678", pass: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := r.Select([]types.TestConfig{{ID: "mpesa_phone_validation", Params: map[string]any{"phone": tt.phone}}})
			require.NoError(t, err)
			e, ok := sel.Lookup("mpesa_phone_validation")
			require.True(t, ok)
			res, err := e.Executor.Execute(context.Background(), e.Params)
			require.NoError(t, err)
			assert.Equal(t, tt.pass, res.Success, res.Message)
		})
	}

	sel, err := r.Select(plan.Tests)
	require.NoError(t, err)
	e, _ := sel.Lookup("mpesa_phone_validation")
	res, err := e.Executor.Execute(context.Background(), e.Params)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "must be a string")
}
