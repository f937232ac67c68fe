package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipa-labs/payaudit/probe"
	"github.com/lipa-labs/payaudit/registry"
	"github.com/lipa-labs/payaudit/types"
	"github.com/lipa-labs/payaudit/validation"
)

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func phaseList(ids ...string) []types.Phase {
	phases := make([]types.Phase, len(ids))
	for i, id := range ids {
		phases[i] = types.NewPhase(types.PhaseConfig{
			ID:                id,
			Name:              "Phase " + id,
			Category:          "security",
			Severity:          types.SeverityCritical,
			EstimatedDuration: time.Minute,
		})
	}
	return phases
}

// progressRecorder collects every value handed to the sink
type progressRecorder struct {
	mu     sync.Mutex
	values []float64
}

func (r *progressRecorder) OnProgress(pct float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, pct)
}

func (r *progressRecorder) Values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.values...)
}

func instantExecutor() PhaseExecutor {
	return PhaseExecutorFunc(func(ctx context.Context, _ types.Phase, _, _ int) error {
		return ctx.Err()
	})
}

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Log == nil {
		cfg.Log = testLogger()
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.NewRegistry(registry.Config{Log: cfg.Log})
	}
	if cfg.Executor == nil {
		cfg.Executor = instantExecutor()
	}
	o, err := NewOrchestrator(cfg)
	require.NoError(t, err)
	return o
}

func TestNewOrchestrator_Validation(t *testing.T) {
	_, err := NewOrchestrator(Config{Log: testLogger()})
	require.Error(t, err)

	reg := registry.NewRegistry(registry.Config{Log: testLogger()})
	_, err = NewOrchestrator(Config{Log: testLogger(), Registry: reg, Phases: phaseList("a", "a")})
	require.ErrorContains(t, err, "duplicate phase id")

	_, err = NewOrchestrator(Config{Log: testLogger(), Registry: reg, InterTestDelay: -time.Second})
	require.Error(t, err)
}

func TestRunAll_ProgressScenario(t *testing.T) {
	// four phases of ten sub-steps: after the fifth sub-step of the first phase
	// the run is 12.5% done
	o := newTestOrchestrator(t, Config{Phases: phaseList("A", "B", "C", "D"), SubSteps: 10})
	rec := &progressRecorder{}

	require.NoError(t, o.RunAll(context.Background(), rec))

	values := rec.Values()
	require.Len(t, values, 40)
	assert.Equal(t, 12.5, values[4])
	assert.Equal(t, 25.0, values[9])
	assert.Equal(t, 100.0, values[len(values)-1])
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress decreased at call %d", i)
	}
	for _, p := range o.Phases() {
		assert.Equal(t, types.PhaseStatusCompleted, p.Status)
		require.NotNil(t, p.Results)
		assert.Equal(t, 45, p.Results.TestsRun)
	}
	assert.Equal(t, 100.0, o.Progress())
}

func TestRunAll_ReachesExactly100(t *testing.T) {
	for _, n := range []int{1, 3, 6, 7} {
		t.Run(fmt.Sprintf("%d phases", n), func(t *testing.T) {
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("p%d", i)
			}
			o := newTestOrchestrator(t, Config{Phases: phaseList(ids...), SubSteps: 7})
			rec := &progressRecorder{}
			require.NoError(t, o.RunAll(context.Background(), rec))
			values := rec.Values()
			assert.Equal(t, 100.0, values[len(values)-1])
		})
	}
}

func TestRunAll_NoPhases(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	rec := &progressRecorder{}
	require.NoError(t, o.RunAll(context.Background(), rec))
	assert.Equal(t, []float64{100}, rec.Values())
}

func TestRunAll_FailFast(t *testing.T) {
	boom := errors.New("gateway unreachable")
	executor := PhaseExecutorFunc(func(_ context.Context, phase types.Phase, step, _ int) error {
		if phase.ID == "B" && step == 3 {
			return boom
		}
		return nil
	})
	o := newTestOrchestrator(t, Config{Phases: phaseList("A", "B", "C", "D"), Executor: executor})
	rec := &progressRecorder{}

	err := o.RunAll(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, IsOrchestrationError(err))
	var oerr *OrchestrationError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "B", oerr.Phase)
	assert.Equal(t, 1, oerr.Index)
	assert.ErrorIs(t, err, boom)

	phases := o.Phases()
	assert.Equal(t, types.PhaseStatusCompleted, phases[0].Status)
	assert.Equal(t, types.PhaseStatusFailed, phases[1].Status)
	assert.Contains(t, phases[1].Error, "gateway unreachable")
	assert.Nil(t, phases[1].Results)
	assert.Equal(t, types.PhaseStatusPending, phases[2].Status)
	assert.Equal(t, types.PhaseStatusPending, phases[3].Status)

	// progress froze at the last completed sub-step of B
	values := rec.Values()
	assert.Equal(t, 30.0, values[len(values)-1])
	assert.Equal(t, 30.0, o.Progress())
}

func TestRunAll_RecoversPanics(t *testing.T) {
	executor := PhaseExecutorFunc(func(_ context.Context, phase types.Phase, _, _ int) error {
		if phase.ID == "A" {
			panic("nil pointer in check")
		}
		return nil
	})
	o := newTestOrchestrator(t, Config{Phases: phaseList("A", "B"), Executor: executor})

	err := o.RunAll(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, types.PhaseStatusFailed, o.Phases()[0].Status)
	assert.Equal(t, types.PhaseStatusPending, o.Phases()[1].Status)
}

func TestRunAll_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	executor := PhaseExecutorFunc(func(ctx context.Context, phase types.Phase, step, _ int) error {
		if phase.ID == "B" && step == 2 {
			cancel()
		}
		return nil
	})
	o := newTestOrchestrator(t, Config{Phases: phaseList("A", "B", "C"), Executor: executor})

	err := o.RunAll(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	phases := o.Phases()
	assert.Equal(t, types.PhaseStatusCompleted, phases[0].Status)
	assert.Equal(t, types.PhaseStatusFailed, phases[1].Status)
	assert.Equal(t, types.PhaseStatusPending, phases[2].Status)
}

func TestRunAll_NewRunDiscardsPrevious(t *testing.T) {
	fail := true
	executor := PhaseExecutorFunc(func(_ context.Context, phase types.Phase, _, _ int) error {
		if fail && phase.ID == "A" {
			return errors.New("first run fails")
		}
		return nil
	})
	o := newTestOrchestrator(t, Config{Phases: phaseList("A", "B"), Executor: executor})

	require.Error(t, o.RunAll(context.Background(), nil))
	fail = false
	require.NoError(t, o.RunAll(context.Background(), nil))
	for _, p := range o.Phases() {
		assert.Equal(t, types.PhaseStatusCompleted, p.Status)
		assert.Empty(t, p.Error)
	}
}

func TestRunAll_RejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	executor := PhaseExecutorFunc(func(ctx context.Context, _ types.Phase, _, _ int) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})
	o := newTestOrchestrator(t, Config{Phases: phaseList("A"), Executor: executor, SubSteps: 1})

	done := make(chan error, 1)
	go func() { done <- o.RunAll(context.Background(), nil) }()
	<-started

	assert.True(t, o.Running())
	assert.ErrorIs(t, o.RunAll(context.Background(), nil), ErrRunInProgress)
	// observers read a consistent snapshot mid-run
	assert.Equal(t, types.PhaseStatusRunning, o.Phases()[0].Status)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, o.Running())
}

func TestRunAll_ProbeExecutor(t *testing.T) {
	sp := probe.NewStaticProbe().
		Respond(PhaseEndpoint("A"), probe.Response{Success: true}).
		Respond(PhaseEndpoint("B"), probe.Response{Success: false, Error: "tls certificate expired"})
	o := newTestOrchestrator(t, Config{Phases: phaseList("A", "B"), Executor: NewProbeExecutor(sp), SubSteps: 2})

	err := o.RunAll(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, types.IsIntegrationError(err))
	assert.Contains(t, err.Error(), "tls certificate expired")

	calls := sp.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "phase.A", calls[0].Endpoint)
	assert.Equal(t, 2, calls[1].Payload["step"])
	assert.Equal(t, "phase.B", calls[2].Endpoint)
}

// registry helpers

func newTestRegistry(t *testing.T, entries ...registry.Entry) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry(registry.Config{Log: testLogger()})
	for _, e := range entries {
		require.NoError(t, reg.Register(e))
	}
	return reg
}

func entry(id string, critical bool, exec registry.Executor) registry.Entry {
	return registry.Entry{
		Metadata: types.TestMetadata{ID: id, Name: id, Category: "validation", Critical: critical},
		Executor: exec,
	}
}

func passing() registry.Executor {
	return registry.ValidationCheck(func(types.Params) types.TestResult {
		return types.TestResult{Success: true, Message: "ok"}
	})
}

func failing(msg string) registry.Executor {
	return registry.ValidationCheck(func(types.Params) types.TestResult {
		return types.TestResult{Success: false, Message: msg}
	})
}

type panicExecutor struct{}

func (panicExecutor) Execute(context.Context, types.Params) (types.TestResult, error) {
	panic("executor exploded")
}

func TestDispatch(t *testing.T) {
	reg := newTestRegistry(t,
		registry.Entry{
			Metadata: types.TestMetadata{ID: "mpesa_phone_validation", Name: "Phone", Category: "validation", Critical: true},
			Params:   types.Params{"phone": "254712345678"},
			Executor: registry.ValidationCheck(validation.PhoneCheck),
		},
		entry("mpesa_stk_push", true, registry.IntegrationCheck{
			Endpoint: "mpesa-stk-push",
			Probe:    probe.NewStaticProbe().Fail("mpesa-stk-push", errors.New("connection refused")),
		}),
		entry("db_panics", false, panicExecutor{}),
	)
	o := newTestOrchestrator(t, Config{Registry: reg})
	ctx := context.Background()

	res := o.Dispatch(ctx, "mpesa_phone_validation")
	assert.True(t, res.Success)

	res = o.Dispatch(ctx, "mpesa_stk_push")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection refused")

	res = o.Dispatch(ctx, "db_panics")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "executor exploded")

	res = o.Dispatch(ctx, "nope")
	assert.False(t, res.Success)

	cases := o.TestCases()
	require.Len(t, cases, 3, "unknown ids leave no record")
	assert.Equal(t, types.TestStatusPass, cases[0].Status)
	assert.Empty(t, cases[0].Error)
	assert.Equal(t, types.TestStatusFail, cases[1].Status)
	assert.Contains(t, cases[1].Error, "connection refused")
	assert.Equal(t, types.TestStatusFail, cases[2].Status)
	assert.Contains(t, cases[2].Error, "executor exploded")
}

func TestDispatch_RerunResetsRecord(t *testing.T) {
	ok := false
	reg := newTestRegistry(t, entry("db_connection", true, registry.ValidationCheck(func(types.Params) types.TestResult {
		return types.TestResult{Success: ok, Message: "checked"}
	})))
	o := newTestOrchestrator(t, Config{Registry: reg})

	o.Dispatch(context.Background(), "db_connection")
	assert.Equal(t, types.TestStatusFail, o.TestCases()[0].Status)

	ok = true
	o.Dispatch(context.Background(), "db_connection")
	cases := o.TestCases()
	require.Len(t, cases, 1)
	assert.Equal(t, types.TestStatusPass, cases[0].Status)
	assert.Empty(t, cases[0].Error)
}

func TestDispatchAll_AllPass(t *testing.T) {
	reg := newTestRegistry(t,
		entry("mpesa_a", true, passing()),
		entry("paypal_b", false, passing()),
		entry("db_c", true, passing()),
	)
	o := newTestOrchestrator(t, Config{Registry: reg})

	cases, err := o.DispatchAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, []string{"mpesa_a", "paypal_b", "db_c"}, []string{cases[0].ID, cases[1].ID, cases[2].ID})
	for _, tc := range cases {
		assert.Equal(t, types.TestStatusPass, tc.Status)
	}
}

func TestDispatchAll_OrderAndCriticalFailure(t *testing.T) {
	var mu sync.Mutex
	var order []string
	track := func(id string, success bool) registry.Executor {
		return registry.ValidationCheck(func(types.Params) types.TestResult {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return types.TestResult{Success: success, Message: id}
		})
	}
	reg := newTestRegistry(t,
		entry("a_first", false, track("a_first", true)),
		entry("b_critical", true, track("b_critical", false)),
		entry("c_last", false, track("c_last", true)),
	)
	o := newTestOrchestrator(t, Config{Registry: reg})

	cases, err := o.DispatchAll(context.Background(), []string{"c_last", "b_critical", "unknown", "a_first"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c_last", "b_critical", "a_first"}, order)
	require.Len(t, cases, 3)
	assert.Equal(t, "b_critical", cases[1].ID)
	assert.Equal(t, types.TestStatusFail, cases[1].Status)
	assert.True(t, cases[1].Critical)
	assert.Equal(t, "b_critical", cases[1].Error)
}

func TestDispatchAll_InitialisesPendingBeforeRunning(t *testing.T) {
	var o *Orchestrator
	var seen []types.TestCase
	reg := newTestRegistry(t,
		entry("first", false, registry.ValidationCheck(func(types.Params) types.TestResult {
			seen = o.TestCases()
			return types.TestResult{Success: true}
		})),
		entry("second", false, passing()),
		entry("third", false, passing()),
	)
	o = newTestOrchestrator(t, Config{Registry: reg})

	_, err := o.DispatchAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Equal(t, types.TestStatusRunning, seen[0].Status)
	assert.Equal(t, types.TestStatusPending, seen[1].Status)
	assert.Equal(t, types.TestStatusPending, seen[2].Status)
}

func TestDispatchAll_InterTestDelay(t *testing.T) {
	reg := newTestRegistry(t,
		entry("a", false, passing()),
		entry("b", false, passing()),
		entry("c", false, passing()),
	)
	o := newTestOrchestrator(t, Config{Registry: reg, InterTestDelay: 50 * time.Millisecond})

	start := time.Now()
	_, err := o.DispatchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

// slowExecutor runs for d and records when it started and finished
type slowExecutor struct {
	d          time.Duration
	mu         sync.Mutex
	start, end time.Time
}

func (s *slowExecutor) Execute(context.Context, types.Params) (types.TestResult, error) {
	s.mu.Lock()
	s.start = time.Now()
	s.mu.Unlock()
	time.Sleep(s.d)
	s.mu.Lock()
	s.end = time.Now()
	s.mu.Unlock()
	return types.TestResult{Success: true}, nil
}

func TestDispatchAll_DelayFollowsSlowTests(t *testing.T) {
	a := &slowExecutor{d: 150 * time.Millisecond}
	b := &slowExecutor{d: 150 * time.Millisecond}
	reg := newTestRegistry(t, entry("a", false, a), entry("b", false, b))
	o := newTestOrchestrator(t, Config{Registry: reg, InterTestDelay: 100 * time.Millisecond})

	_, err := o.DispatchAll(context.Background(), nil)
	require.NoError(t, err)

	gap := b.start.Sub(a.end)
	assert.GreaterOrEqual(t, gap, 90*time.Millisecond, "gap between end of a and start of b")
}

func TestDispatchAll_DelayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	reg := newTestRegistry(t, entry("a", false, passing()), entry("b", false, passing()))
	o := newTestOrchestrator(t, Config{Registry: reg, InterTestDelay: time.Hour})

	cases, err := o.DispatchAll(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, cases, 2)
	assert.Equal(t, types.TestStatusPass, cases[0].Status)
	assert.Equal(t, types.TestStatusPending, cases[1].Status)
}

func TestDispatchAll_DelayOutlastsDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	reg := newTestRegistry(t, entry("a", false, passing()), entry("b", false, passing()))
	o := newTestOrchestrator(t, Config{Registry: reg, InterTestDelay: time.Hour})

	cases, err := o.DispatchAll(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.TestStatusPending, cases[1].Status)
}

func TestDispatchAll_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := newTestRegistry(t,
		entry("a", false, registry.ValidationCheck(func(types.Params) types.TestResult {
			cancel()
			return types.TestResult{Success: true}
		})),
		entry("b", false, passing()),
	)
	o := newTestOrchestrator(t, Config{Registry: reg})

	cases, err := o.DispatchAll(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, cases, 2)
	assert.Equal(t, types.TestStatusPass, cases[0].Status)
	assert.Equal(t, types.TestStatusPending, cases[1].Status)
}

func TestDispatchAll_RejectsConcurrentBatch(t *testing.T) {
	var o *Orchestrator
	var nested error
	var nestedResult types.TestResult
	reg := newTestRegistry(t, entry("a", false, registry.ValidationCheck(func(types.Params) types.TestResult {
		_, nested = o.DispatchAll(context.Background(), nil)
		nestedResult = o.Dispatch(context.Background(), "a")
		return types.TestResult{Success: true}
	})))
	o = newTestOrchestrator(t, Config{Registry: reg})

	_, err := o.DispatchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrRunInProgress)
	assert.False(t, nestedResult.Success)
}
