package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lipa-labs/payaudit/types"
)

const (
	MetricsNamespace = "payaudit"
)

var (
	Debug                bool = true
	validTestResults          = []types.TestStatus{types.TestStatusPass, types.TestStatusFail}
	validPhaseResults         = []types.PhaseStatus{types.PhaseStatusCompleted, types.PhaseStatusFailed}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testCasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_cases_total",
		Help:      "Count of executed test cases",
	}, []string{
		"id",
		"category",
		"critical",
		"result",
	})

	testCaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_case_duration_seconds",
		Help:      "Duration of test case executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{
		"id",
	})

	phasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "phases_total",
		Help:      "Count of finished audit phases",
	}, []string{
		"phase",
		"result",
	})

	runProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_progress_percent",
		Help:      "Overall progress of the current audit run",
	})

	auditScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "audit_score",
		Help:      "Overall score of the latest audit report",
	}, []string{
		"run_id",
		"result",
	})

	auditIssues = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "audit_issues",
		Help:      "Issues of the latest audit report by severity",
	}, []string{
		"severity",
	})

	httpResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "http_responses_total",
		Help:      "Count of report API responses by route and status code",
	}, []string{
		"route",
		"status_code",
	})

	batchTestTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_test_total",
		Help:      "Total number of tests in the latest batch",
	})

	batchTestFailed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_test_failed",
		Help:      "Number of failed tests in the latest batch",
	})

	batchCriticalFailed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_critical_failed",
		Help:      "Number of failed critical tests in the latest batch",
	})

	batchSuccessRate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_success_rate",
		Help:      "Success rate of the latest batch in percent",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordTestCase records the outcome of a single dispatched test
func RecordTestCase(tc types.TestCase) {
	if !slices.Contains(validTestResults, tc.Status) {
		log.Error("RecordTestCase - invalid result", "id", tc.ID, "result", tc.Status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "test_cases_total",
			"id", tc.ID,
			"result", tc.Status)
	}
	testCasesTotal.WithLabelValues(tc.ID, tc.Category, fmt.Sprintf("%t", tc.Critical), string(tc.Status)).Inc()
	testCaseDuration.WithLabelValues(tc.ID).Observe(tc.Duration.Seconds())
}

// RecordPhase records a phase reaching a terminal status
func RecordPhase(phaseID string, status types.PhaseStatus) {
	if !slices.Contains(validPhaseResults, status) {
		log.Error("RecordPhase - invalid result", "phase", phaseID, "result", status)
		return
	}
	phasesTotal.WithLabelValues(phaseID, string(status)).Inc()
}

// RecordProgress sets the overall progress gauge
func RecordProgress(pct float64) {
	runProgress.Set(pct)
}

// RecordAudit publishes the headline numbers of an audit report
func RecordAudit(report *types.AuditReport) {
	auditScore.WithLabelValues(report.RunID, string(report.OverallStatus)).Set(float64(report.OverallScore))
	auditIssues.WithLabelValues(string(types.SeverityCritical)).Set(float64(report.CriticalIssues))
	auditIssues.WithLabelValues(string(types.SeverityHigh)).Set(float64(report.HighIssues))
	auditIssues.WithLabelValues(string(types.SeverityMedium)).Set(float64(report.MediumIssues))
	auditIssues.WithLabelValues(string(types.SeverityLow)).Set(float64(report.LowIssues))
}

// RecordBatch publishes the summary of a batch test report
func RecordBatch(summary types.TestSummary, duration time.Duration) {
	batchTestTotal.Set(float64(summary.Total))
	batchTestFailed.Set(float64(summary.Failed))
	batchCriticalFailed.Set(float64(summary.CriticalFailed))
	batchSuccessRate.Set(summary.SuccessRate)
	if Debug {
		log.Debug("batch recorded", "total", summary.Total, "failed", summary.Failed, "duration", duration)
	}
}

// RecordHTTPResponse counts a report API response
func RecordHTTPResponse(route string, statusCode int) {
	httpResponsesTotal.WithLabelValues(route, fmt.Sprintf("%d", statusCode)).Inc()
}
