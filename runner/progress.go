package runner

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lipa-labs/payaudit/types"
)

// ProgressSink receives the overall progress of a run, in [0,100] and never decreasing
type ProgressSink interface {
	OnProgress(pct float64)
}

// ProgressFunc adapts a function to the ProgressSink interface
type ProgressFunc func(pct float64)

// OnProgress implements ProgressSink
func (f ProgressFunc) OnProgress(pct float64) {
	f(pct)
}

// ProgressAggregator converts a (phase, sub-step) position into the overall
// percentage of a run and forwards it to a sink. Reported values never decrease.
type ProgressAggregator struct {
	phases int
	steps  int
	sink   ProgressSink

	mu      sync.Mutex
	current float64
}

// NewProgressAggregator creates an aggregator for a run of phases x steps sub-steps
func NewProgressAggregator(phases, steps int, sink ProgressSink) *ProgressAggregator {
	if steps <= 0 {
		steps = DefaultSubSteps
	}
	return &ProgressAggregator{phases: phases, steps: steps, sink: sink}
}

// Overall returns i/N*100 + (k/K*100)/N for sub-step k of phase i. It is
// evaluated as (i*K+k)*100/(N*K) so the last sub-step lands on exactly 100.
func (a *ProgressAggregator) Overall(i, k int) float64 {
	if a.phases <= 0 {
		return 100
	}
	done := float64(i*a.steps + k)
	return done * 100 / float64(a.phases*a.steps)
}

// Report records sub-step k of phase i as done and notifies the sink
func (a *ProgressAggregator) Report(i, k int) float64 {
	return a.set(a.Overall(i, k))
}

// Complete marks the run as done
func (a *ProgressAggregator) Complete() float64 {
	return a.set(100)
}

// Current returns the last reported value
func (a *ProgressAggregator) Current() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *ProgressAggregator) set(pct float64) float64 {
	a.mu.Lock()
	if pct < a.current {
		pct = a.current
	}
	if pct > 100 {
		pct = 100
	}
	a.current = pct
	a.mu.Unlock()

	if a.sink != nil {
		a.sink.OnProgress(pct)
	}
	return pct
}

// ProgressIndicator interface for console updates
type ProgressIndicator interface {
	StartRun(totalPhases int)
	StartPhase(phase types.Phase)
	UpdateProgress(pct float64)
	CompletePhase(phase types.Phase)
	FailPhase(phase types.Phase, err error)
	CompleteRun()
	StartTest(id string)
	UpdateTest(id string, status types.TestStatus)
	Stop()
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) StartRun(totalPhases int)                      {}
func (n *noOpProgressIndicator) StartPhase(phase types.Phase)                  {}
func (n *noOpProgressIndicator) UpdateProgress(pct float64)                    {}
func (n *noOpProgressIndicator) CompletePhase(phase types.Phase)               {}
func (n *noOpProgressIndicator) FailPhase(phase types.Phase, err error)        {}
func (n *noOpProgressIndicator) CompleteRun()                                  {}
func (n *noOpProgressIndicator) StartTest(id string)                           {}
func (n *noOpProgressIndicator) UpdateTest(id string, status types.TestStatus) {}
func (n *noOpProgressIndicator) Stop()                                         {}

// consoleProgressIndicator periodically logs where a run is
type consoleProgressIndicator struct {
	logger   log.Logger
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex

	currentPhase    string
	completedPhases int
	totalPhases     int
	percent         float64
	runStartTime    time.Time
	phaseStartTime  time.Time

	runningTest      string
	runningTestStart time.Time
	completedTests   int
}

// NewConsoleProgressIndicator creates a progress indicator that shows updates in the console
func NewConsoleProgressIndicator(logger log.Logger, updateInterval time.Duration) ProgressIndicator {
	if updateInterval <= 0 {
		updateInterval = DefaultProgressInterval
	}

	indicator := &consoleProgressIndicator{
		logger: logger,
		ticker: time.NewTicker(updateInterval),
		stopCh: make(chan struct{}),
	}

	go indicator.progressReporter()

	return indicator
}

func (c *consoleProgressIndicator) StartRun(totalPhases int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalPhases = totalPhases
	c.completedPhases = 0
	c.percent = 0
	c.currentPhase = ""
	c.runStartTime = time.Now()

	c.logger.Info("Starting audit run", "phases", totalPhases)
}

func (c *consoleProgressIndicator) StartPhase(phase types.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentPhase = phase.ID
	c.phaseStartTime = time.Now()

	c.logger.Info("Starting phase", "phase", phase.ID, "name", phase.Name, "estimated", phase.EstimatedDuration)
}

func (c *consoleProgressIndicator) UpdateProgress(pct float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.percent = pct
}

func (c *consoleProgressIndicator) CompletePhase(phase types.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completedPhases++
	duration := time.Since(c.phaseStartTime).Truncate(time.Millisecond)
	c.logger.Info("Completed phase", "phase", phase.ID, "completed", c.completedPhases, "total", c.totalPhases, "duration", duration)
	c.currentPhase = ""
}

func (c *consoleProgressIndicator) FailPhase(phase types.Phase, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Since(c.phaseStartTime).Truncate(time.Millisecond)
	c.logger.Error("Phase failed", "phase", phase.ID, "duration", duration, "err", err)
	c.currentPhase = ""
}

func (c *consoleProgressIndicator) CompleteRun() {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Since(c.runStartTime).Truncate(time.Millisecond)
	c.logger.Info("Completed audit run", "phases", c.totalPhases, "duration", duration)
}

// StartTest tracks when a test starts running
func (c *consoleProgressIndicator) StartTest(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runningTest = id
	c.runningTestStart = time.Now()
	c.logger.Debug("Test started", "test", id)
}

func (c *consoleProgressIndicator) UpdateTest(id string, status types.TestStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runningTest = ""
	c.completedTests++
	c.logger.Debug("Test completed", "test", id, "status", status, "completed", c.completedTests)
}

// progressReporter runs in a goroutine and periodically reports progress
func (c *consoleProgressIndicator) progressReporter() {
	for {
		select {
		case <-c.ticker.C:
			c.reportProgress()
		case <-c.stopCh:
			return
		}
	}
}

func (c *consoleProgressIndicator) reportProgress() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.currentPhase == "" && c.runningTest == "" {
		return
	}

	logFields := []interface{}{
		"phase", c.currentPhase,
		"completed", c.completedPhases,
		"total", c.totalPhases,
		"percent", fmt.Sprintf("%.1f%%", c.percent),
	}
	if c.runningTest != "" {
		logFields = append(logFields,
			"test", c.runningTest,
			"testRunning", time.Since(c.runningTestStart).Truncate(time.Second))
	}

	c.logger.Info("Progress update", logFields...)
}

// Stop stops the progress indicator
func (c *consoleProgressIndicator) Stop() {
	c.stopOnce.Do(func() {
		c.ticker.Stop()
		close(c.stopCh)
	})
}
