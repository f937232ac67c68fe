package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/lipa-labs/payaudit/metrics"
	"github.com/lipa-labs/payaudit/registry"
	"github.com/lipa-labs/payaudit/reporting"
	"github.com/lipa-labs/payaudit/types"
)

// Config holds configuration for creating a new Orchestrator
type Config struct {
	Log      log.Logger
	Registry *registry.Registry
	// Phases is the ordered phase list every run starts from
	Phases         []types.Phase
	Executor       PhaseExecutor
	ResultBuilder  reporting.ResultBuilder
	SubSteps       int
	InterTestDelay time.Duration
	Progress       ProgressIndicator
}

// Orchestrator owns the phases and test cases of the current run. Only the
// goroutine executing RunAll, Dispatch or DispatchAll writes them; every reader
// gets a copy.
type Orchestrator struct {
	log            log.Logger
	registry       *registry.Registry
	plan           []types.Phase
	executor       PhaseExecutor
	buildResult    reporting.ResultBuilder
	subSteps       int
	interTestDelay time.Duration
	progress       ProgressIndicator
	tracer         trace.Tracer
	now            func() time.Time

	phaseRunning atomic.Bool
	testsRunning atomic.Bool

	mu        sync.RWMutex
	phases    []types.Phase
	cases     map[string]*types.TestCase
	caseOrder []string
	overall   float64
}

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Executor == nil {
		cfg.Executor = NewSimulatedExecutor(DefaultStepDelay)
	}
	if cfg.ResultBuilder == nil {
		cfg.ResultBuilder = reporting.BuildPhaseResult
	}
	if cfg.SubSteps <= 0 {
		cfg.SubSteps = DefaultSubSteps
	}
	if cfg.InterTestDelay < 0 {
		return nil, fmt.Errorf("inter-test delay must not be negative")
	}
	if cfg.Progress == nil {
		cfg.Progress = NewNoOpProgressIndicator()
	}

	seen := make(map[string]bool, len(cfg.Phases))
	plan := make([]types.Phase, 0, len(cfg.Phases))
	for _, p := range cfg.Phases {
		if p.ID == "" {
			return nil, fmt.Errorf("phase id is required")
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate phase id %q", p.ID)
		}
		seen[p.ID] = true
		p = p.Clone()
		p.Status = types.PhaseStatusPending
		p.Results = nil
		p.Error = ""
		plan = append(plan, p)
	}

	cfg.Log.Debug("NewOrchestrator()", "phases", len(plan), "tests", cfg.Registry.Len(),
		"subSteps", cfg.SubSteps, "interTestDelay", cfg.InterTestDelay)

	o := &Orchestrator{
		log:            cfg.Log,
		registry:       cfg.Registry,
		plan:           plan,
		executor:       cfg.Executor,
		buildResult:    cfg.ResultBuilder,
		subSteps:       cfg.SubSteps,
		interTestDelay: cfg.InterTestDelay,
		progress:       cfg.Progress,
		tracer:         otel.Tracer("audit orchestrator"),
		now:            time.Now,
		cases:          make(map[string]*types.TestCase),
	}
	o.phases = o.freshPhases()
	return o, nil
}

func (o *Orchestrator) freshPhases() []types.Phase {
	phases := make([]types.Phase, len(o.plan))
	for i, p := range o.plan {
		phases[i] = p.Clone()
	}
	return phases
}

// Phases returns a copy of the current phase collection
func (o *Orchestrator) Phases() []types.Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]types.Phase, len(o.phases))
	for i, p := range o.phases {
		out[i] = p.Clone()
	}
	return out
}

// TestCases returns a copy of the current test case collection in run order
func (o *Orchestrator) TestCases() []types.TestCase {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]types.TestCase, 0, len(o.caseOrder))
	for _, id := range o.caseOrder {
		out = append(out, *o.cases[id])
	}
	return out
}

// Progress returns the overall progress of the current or last phase run
func (o *Orchestrator) Progress() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.overall
}

// Running reports whether a phase run or a test batch is active
func (o *Orchestrator) Running() bool {
	return o.phaseRunning.Load() || o.testsRunning.Load()
}

// RunAll runs every phase in order, reporting overall progress to sink. The
// first failing phase aborts the run: later phases stay pending and the
// failure is returned as an *OrchestrationError.
func (o *Orchestrator) RunAll(ctx context.Context, sink ProgressSink) error {
	if !o.phaseRunning.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer o.phaseRunning.Store(false)

	ctx, span := o.tracer.Start(ctx, "audit run")
	defer span.End()

	o.mu.Lock()
	o.phases = o.freshPhases()
	o.overall = 0
	total := len(o.phases)
	o.mu.Unlock()
	metrics.RecordProgress(0)

	agg := NewProgressAggregator(total, o.subSteps, ProgressFunc(func(pct float64) {
		o.mu.Lock()
		o.overall = pct
		o.mu.Unlock()
		metrics.RecordProgress(pct)
		o.progress.UpdateProgress(pct)
		if sink != nil {
			sink.OnProgress(pct)
		}
	}))

	o.log.Info("Starting audit run", "phases", total, "subSteps", o.subSteps)
	o.progress.StartRun(total)

	for i := 0; i < total; i++ {
		if err := o.runPhase(ctx, i, agg); err != nil {
			span.RecordError(err)
			phaseID := o.phaseID(i)
			o.log.Error("Audit run aborted", "phase", phaseID, "index", i, "progress", agg.Current(), "err", err)
			return &OrchestrationError{Phase: phaseID, Index: i, Err: err}
		}
	}
	if total == 0 {
		agg.Complete()
	}

	o.progress.CompleteRun()
	o.log.Info("Audit run completed", "phases", total)
	return nil
}

func (o *Orchestrator) phaseID(i int) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.phases[i].ID
}

func (o *Orchestrator) runPhase(ctx context.Context, i int, agg *ProgressAggregator) error {
	o.mu.Lock()
	if err := o.phases[i].Transition(types.PhaseStatusRunning); err != nil {
		o.mu.Unlock()
		return err
	}
	phase := o.phases[i].Clone()
	o.mu.Unlock()

	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("phase %s", phase.ID))
	defer span.End()

	o.progress.StartPhase(phase)
	o.log.Debug("Running phase", "phase", phase.ID, "index", i, "category", phase.Category)

	result, err := o.executePhase(ctx, i, phase, agg)
	if err != nil {
		span.RecordError(err)
		o.finishPhase(i, types.PhaseStatusFailed, nil, err)
		o.progress.FailPhase(phase, err)
		return err
	}

	o.finishPhase(i, types.PhaseStatusCompleted, result, nil)
	o.progress.CompletePhase(phase)
	return nil
}

// executePhase runs the sub-steps of phase i and builds its result. Panics in
// the executor or result builder are returned as errors.
func (o *Orchestrator) executePhase(ctx context.Context, i int, phase types.Phase, agg *ProgressAggregator) (result *types.PhaseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("phase %s panicked: %v", phase.ID, r)
		}
	}()

	for k := 1; k <= o.subSteps; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := o.executor.ExecuteStep(ctx, phase, k, o.subSteps); err != nil {
			return nil, fmt.Errorf("sub-step %d/%d: %w", k, o.subSteps, err)
		}
		agg.Report(i, k)
	}
	return o.buildResult(phase), nil
}

func (o *Orchestrator) finishPhase(i int, status types.PhaseStatus, result *types.PhaseResult, cause error) {
	o.mu.Lock()
	p := &o.phases[i]
	if err := p.Transition(status); err != nil {
		o.log.Error("Failed to finish phase", "phase", p.ID, "err", err)
	}
	p.Results = result
	if cause != nil {
		p.Error = cause.Error()
	}
	id := p.ID
	o.mu.Unlock()

	metrics.RecordPhase(id, status)
}

// Dispatch executes one registered test and records its outcome. It never
// returns an error: unknown ids, executor errors and panics all come back as
// an unsuccessful TestResult.
func (o *Orchestrator) Dispatch(ctx context.Context, id string) types.TestResult {
	if !o.testsRunning.CompareAndSwap(false, true) {
		return types.TestResult{Success: false, Message: ErrRunInProgress.Error(), Error: ErrRunInProgress.Error()}
	}
	defer o.testsRunning.Store(false)

	entry, ok := o.registry.Lookup(id)
	if !ok {
		msg := fmt.Sprintf("unknown test %q", id)
		o.log.Warn("Dispatch of unknown test", "id", id)
		return types.TestResult{Success: false, Message: msg, Error: msg}
	}

	o.mu.Lock()
	o.resetCase(entry.Metadata)
	o.mu.Unlock()

	return o.dispatch(ctx, entry)
}

// resetCase installs a fresh pending record for a test. Caller holds o.mu.
func (o *Orchestrator) resetCase(meta types.TestMetadata) {
	tc := types.NewTestCase(meta, o.now())
	if _, exists := o.cases[meta.ID]; !exists {
		o.caseOrder = append(o.caseOrder, meta.ID)
	}
	o.cases[meta.ID] = &tc
}

func (o *Orchestrator) dispatch(ctx context.Context, entry registry.Entry) types.TestResult {
	id := entry.Metadata.ID
	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("test %s", id))
	defer span.End()

	o.mu.Lock()
	tc := o.cases[id]
	tc.Timestamp = o.now()
	if err := tc.Transition(types.TestStatusRunning); err != nil {
		o.log.Error("Failed to start test", "id", id, "err", err)
	}
	o.mu.Unlock()

	o.progress.StartTest(id)
	start := time.Now()
	result, err := o.execute(ctx, entry)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		result.Success = false
		if result.Error == "" {
			result.Error = err.Error()
		}
		if result.Message == "" {
			result.Message = err.Error()
		}
	}

	status := types.TestStatusPass
	if !result.Success {
		status = types.TestStatusFail
		if result.Error == "" {
			result.Error = result.Message
		}
	}

	o.mu.Lock()
	if terr := tc.Transition(status); terr != nil {
		o.log.Error("Failed to finish test", "id", id, "err", terr)
	}
	tc.Duration = duration
	tc.Details = result.Message
	if status == types.TestStatusFail {
		tc.Error = result.Error
	}
	snapshot := *tc
	o.mu.Unlock()

	metrics.RecordTestCase(snapshot)
	o.progress.UpdateTest(id, status)
	o.log.Info("Test finished", "id", id, "status", status, "critical", snapshot.Critical,
		"duration", duration, "err", snapshot.Error)
	return result
}

func (o *Orchestrator) execute(ctx context.Context, entry registry.Entry) (result types.TestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = types.TestResult{}
			err = fmt.Errorf("test %s panicked: %v", entry.Metadata.ID, r)
		}
	}()
	return entry.Executor.Execute(ctx, entry.Params)
}

// DispatchAll runs the given tests one after another, in order. Every known
// test is reset to pending before the first one starts. After each test
// finishes the batch waits the inter-test delay before starting the next. A nil ids runs every registered test. The error is
// non-nil only when ctx is cancelled; tests not reached stay pending.
func (o *Orchestrator) DispatchAll(ctx context.Context, ids []string) ([]types.TestCase, error) {
	if !o.testsRunning.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.testsRunning.Store(false)

	if ids == nil {
		ids = o.registry.IDs()
	}

	ctx, span := o.tracer.Start(ctx, "test batch")
	defer span.End()

	entries := make([]registry.Entry, 0, len(ids))
	o.mu.Lock()
	o.cases = make(map[string]*types.TestCase, len(ids))
	o.caseOrder = make([]string, 0, len(ids))
	for _, id := range ids {
		entry, ok := o.registry.Lookup(id)
		if !ok {
			o.log.Warn("Skipping unknown test", "id", id)
			continue
		}
		if _, dup := o.cases[id]; dup {
			continue
		}
		o.resetCase(entry.Metadata)
		entries = append(entries, entry)
	}
	o.mu.Unlock()

	o.log.Info("Starting test batch", "tests", len(entries), "interTestDelay", o.interTestDelay)
	start := time.Now()
	for i, entry := range entries {
		if i > 0 {
			if err := o.pause(ctx); err != nil {
				return o.abortBatch(ctx, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return o.abortBatch(ctx, err)
		}
		o.dispatch(ctx, entry)
	}

	cases := o.TestCases()
	summary := reporting.BuildTestReport(cases).Summary
	metrics.RecordBatch(summary, time.Since(start))
	o.log.Info("Test batch completed", "total", summary.Total, "passed", summary.Passed,
		"failed", summary.Failed, "criticalFailed", summary.CriticalFailed)
	return cases, nil
}

// pause blocks for the inter-test delay counted from now. The limiter is armed
// with its only token spent, so Wait returns one full interval later.
func (o *Orchestrator) pause(ctx context.Context) error {
	if o.interTestDelay <= 0 {
		return ctx.Err()
	}
	limiter := rate.NewLimiter(rate.Every(o.interTestDelay), 1)
	limiter.Allow()
	if err := limiter.Wait(ctx); err != nil {
		// Wait fails early when the delay would outlast the ctx deadline
		if ctx.Err() == nil {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return ctx.Err()
	}
	return nil
}

func (o *Orchestrator) abortBatch(ctx context.Context, err error) ([]types.TestCase, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	o.log.Warn("Test batch cancelled", "err", err)
	return o.TestCases(), fmt.Errorf("test batch cancelled: %w", err)
}
