package auditor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/lipa-labs/payaudit/exitcodes"
	"github.com/lipa-labs/payaudit/metrics"
	"github.com/lipa-labs/payaudit/probe"
	"github.com/lipa-labs/payaudit/registry"
	"github.com/lipa-labs/payaudit/reporting"
	"github.com/lipa-labs/payaudit/runner"
	"github.com/lipa-labs/payaudit/service"
	"github.com/lipa-labs/payaudit/store"
	"github.com/lipa-labs/payaudit/types"
)

// auditor implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &auditor{}

// RunResult holds the reports produced by one audit run. A report is nil when
// the run mode skipped it.
type RunResult struct {
	RunID      string
	Audit      *types.AuditReport
	Tests      *types.TestReport
	PhaseError error
}

// Failed reports whether the run should be treated as an audit failure
func (r *RunResult) Failed() bool {
	if r == nil {
		return false
	}
	if r.Audit != nil && r.Audit.OverallStatus == types.OverallStatusFail {
		return true
	}
	return r.Tests != nil && r.Tests.Summary.CriticalFailed > 0
}

func (r *RunResult) String() string {
	if r == nil {
		return "no run"
	}
	s := fmt.Sprintf("run %s", r.RunID)
	if r.Audit != nil {
		s += fmt.Sprintf(": audit %s (score %d, %d/%d passed)", r.Audit.OverallStatus, r.Audit.OverallScore, r.Audit.TestsPassed, r.Audit.TestsRun)
	}
	if r.Tests != nil {
		s += fmt.Sprintf(", tests %d/%d passed (%d critical failed)", r.Tests.Summary.Passed, r.Tests.Summary.Total, r.Tests.Summary.CriticalFailed)
	}
	return s
}

// auditor runs the payment audit against the configured endpoints, either
// once or at a fixed interval.
type auditor struct {
	ctx          context.Context
	config       *Config
	version      string
	orchestrator *runner.Orchestrator
	progress     runner.ProgressIndicator
	exporter     *reporting.Exporter
	reports      store.ReportStore
	redis        redis.UniversalClient
	service      *service.Service

	resultMu sync.RWMutex
	result   *RunResult

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*auditor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Check(); err != nil {
		return nil, err
	}

	config.Log.Debug("Creating auditor with config",
		"plan", config.PlanFile,
		"probeConfig", config.ProbeConfigFile,
		"mode", config.Mode,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"simulate", config.Simulate)

	plan, err := registry.LoadPlan(config.PlanFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	p, err := newProbe(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe: %w", err)
	}

	catalog, err := registry.NewDefaultRegistry(p, config.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}
	reg, err := catalog.Select(plan.Tests)
	if err != nil {
		return nil, fmt.Errorf("failed to select tests: %w", err)
	}

	var executor runner.PhaseExecutor
	if config.Simulate {
		executor = runner.NewSimulatedExecutor(config.StepDelay)
	} else {
		executor = runner.NewProbeExecutor(p)
	}

	progress := runner.NewNoOpProgressIndicator()
	if config.ShowProgress {
		progress = runner.NewConsoleProgressIndicator(config.Log, config.ProgressInterval)
	}

	orch, err := runner.NewOrchestrator(runner.Config{
		Log:            config.Log,
		Registry:       reg,
		Phases:         registry.Phases(plan),
		Executor:       executor,
		SubSteps:       config.SubSteps,
		InterTestDelay: config.InterTestDelay,
		Progress:       progress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	a := &auditor{
		ctx:              ctx,
		config:           config,
		version:          version,
		orchestrator:     orch,
		progress:         progress,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}

	if config.RedisURL != "" {
		client, err := store.NewRedisClient(config.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := store.CheckRedisConnection(client); err != nil {
			_ = client.Close()
			return nil, err
		}
		a.redis = client
		a.reports = store.NewRedisReportStore(client, store.DefaultKeyPrefix)
	} else {
		a.reports = store.NewMemoryReportStore()
	}

	sinks := []reporting.ArtifactSink{reporting.NewStdoutSink()}
	if config.ReportDir != "" {
		fs, err := reporting.NewFileSink(config.ReportDir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	a.exporter = reporting.NewExporter(config.Log, true, sinks...)

	a.service = service.New(service.Config{
		HealthzAddr: config.HealthzAddr,
		MetricsAddr: config.MetricsAddr,
		APIAddr:     config.APIAddr,
		API:         service.NewReportAPIHandler(a.reports, orch),
	})

	config.Log.Info("auditor.New: created registry and orchestrator",
		"phases", len(plan.Phases), "tests", reg.Len())
	return a, nil
}

func newProbe(config *Config) (probe.Probe, error) {
	if config.Simulate {
		return probe.NewSimulatedProbe(config.StepDelay), nil
	}
	probeCfg, err := probe.LoadConfig(config.ProbeConfigFile)
	if err != nil {
		return nil, err
	}
	return probe.NewHTTPProbe(probeCfg, nil, config.Log)
}

// Start runs the audit immediately and then periodically at the configured interval.
// Start implements the cliapp.Lifecycle interface.
func (a *auditor) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.ctx = ctx
	a.done = make(chan struct{})
	a.running.Store(true)
	a.service.Start(ctx)

	if a.config.RunOnce {
		a.config.Log.Info("Starting payaudit in run-once mode", "mode", a.config.Mode)
	} else {
		a.config.Log.Info("Starting payaudit in continuous mode", "mode", a.config.Mode, "interval", a.config.RunInterval)
	}

	result, err := a.runAudit(ctx)
	if err != nil {
		a.config.Log.Error("Runtime error running audit", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	if a.config.RunOnce {
		a.config.Log.Info("Audit completed, exiting (run-once mode)")
		if result.Failed() {
			a.config.Log.Warn("Run-once audit completed with failures, returning exit code 1")
			return NewAuditFailureError(result.String())
		}

		go func() {
			a.shutdownCallback(nil)
		}()
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.config.Log.Debug("Starting periodic audit goroutine", "interval", a.config.RunInterval)

		for {
			select {
			case <-time.After(a.config.RunInterval):
				if !a.running.Load() {
					a.config.Log.Debug("Service stopped, exiting periodic audit goroutine")
					return
				}

				a.config.Log.Info("Running periodic audit")
				if _, err := a.runAudit(ctx); err != nil {
					a.config.Log.Error("Error running periodic audit", "error", err)
				}
				a.config.Log.Info("Audit run interval", "interval", a.config.RunInterval)

			case <-a.done:
				a.config.Log.Debug("Done signal received, stopping periodic audit goroutine")
				return

			case <-ctx.Done():
				a.config.Log.Debug("Context canceled, stopping periodic audit goroutine")
				a.running.Store(false)
				return
			}
		}
	}()
	a.config.Log.Debug("payaudit started successfully")
	return nil
}

// runAudit runs the phases and the test batch as selected by the run mode,
// then exports and stores the reports. Phase failures end up in the audit
// report; only operational problems are returned as errors.
func (a *auditor) runAudit(ctx context.Context) (*RunResult, error) {
	result := &RunResult{RunID: uuid.New().String()}
	log := a.config.Log.New("run_id", result.RunID)

	if a.config.Mode.RunsPhases() {
		log.Info("Running audit phases...")
		start := time.Now()
		err := a.orchestrator.RunAll(ctx, nil)
		if err != nil {
			if ctx.Err() != nil || !runner.IsOrchestrationError(err) {
				return nil, NewRuntimeError(err)
			}
			log.Warn("Audit phases failed", "error", err)
			result.PhaseError = err
		}

		report := reporting.BuildAuditReport(a.orchestrator.Phases())
		report.RunID = result.RunID
		report.GeneratedAt = time.Now()
		result.Audit = report
		metrics.RecordAudit(report)
		a.publishAudit(ctx, report)
		log.Info("Audit phases completed", "status", report.OverallStatus, "score", report.OverallScore, "duration", time.Since(start))
	}

	if a.config.Mode.RunsTests() {
		log.Info("Running test batch...")
		cases, err := a.orchestrator.DispatchAll(ctx, nil)
		if err != nil {
			return nil, NewRuntimeError(err)
		}

		report := reporting.BuildTestReport(cases)
		report.RunID = result.RunID
		report.GeneratedAt = time.Now()
		result.Tests = report
		a.publishTests(ctx, report)
		log.Info("Test batch completed", "passed", report.Summary.Passed, "total", report.Summary.Total,
			"criticalFailed", report.Summary.CriticalFailed)
	}

	a.resultMu.Lock()
	a.result = result
	a.resultMu.Unlock()

	fmt.Println(result.String())
	return result, nil
}

// publishAudit exports and stores the audit report. Failures are logged so a
// broken sink never hides the verdict.
func (a *auditor) publishAudit(ctx context.Context, report *types.AuditReport) {
	if _, err := a.exporter.ExportAudit(report); err != nil {
		a.config.Log.Error("Failed to export audit report", "error", err)
		metrics.RecordErrorDetails("export_audit", err)
	}
	if err := a.reports.PutAudit(ctx, report); err != nil {
		a.config.Log.Error("Failed to store audit report", "error", err)
		metrics.RecordErrorDetails("store_audit", err)
	}
}

func (a *auditor) publishTests(ctx context.Context, report *types.TestReport) {
	if _, err := a.exporter.ExportTests(report); err != nil {
		a.config.Log.Error("Failed to export test report", "error", err)
		metrics.RecordErrorDetails("export_tests", err)
	}
	if err := a.reports.PutTests(ctx, report); err != nil {
		a.config.Log.Error("Failed to store test report", "error", err)
		metrics.RecordErrorDetails("store_tests", err)
	}
}

// LastResult returns the reports of the most recent completed run
func (a *auditor) LastResult() *RunResult {
	a.resultMu.RLock()
	defer a.resultMu.RUnlock()
	return a.result
}

// Stop stops the payaudit service.
// Stop implements the cliapp.Lifecycle interface.
func (a *auditor) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping payaudit")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	a.running.Store(false)

	a.config.Log.Debug("Sending done signal to goroutines")
	close(a.done)
	a.wg.Wait()

	a.progress.Stop()
	a.service.Shutdown()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.config.Log.Warn("Failed to close redis client", "error", err)
		}
	}

	a.config.Log.Info("payaudit stopped successfully")
	return nil
}

// Stopped returns true if the payaudit service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *auditor) Stopped() bool {
	return !a.running.Load()
}
