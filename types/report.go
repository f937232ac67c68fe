package types

import "time"

// OverallStatus is the verdict of an audit report
type OverallStatus string

const (
	OverallStatusPass OverallStatus = "pass"
	OverallStatusFail OverallStatus = "fail"
)

// PhaseSummary is the per-phase entry of an AuditReport
type PhaseSummary struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Status  PhaseStatus  `json:"status"`
	Results *PhaseResult `json:"results,omitempty"`
}

// AuditReport is the phase-mode report, built once at the end of a completed or aborted run
type AuditReport struct {
	RunID                string         `json:"runId"`
	GeneratedAt          time.Time      `json:"generatedAt"`
	OverallScore         int            `json:"overallScore"`
	OverallStatus        OverallStatus  `json:"overallStatus"`
	TestsRun             int            `json:"testsRun"`
	TestsPassed          int            `json:"testsPassed"`
	TestsFailed          int            `json:"testsFailed"`
	CriticalIssues       int            `json:"criticalIssues"`
	HighIssues           int            `json:"highIssues"`
	MediumIssues         int            `json:"mediumIssues"`
	LowIssues            int            `json:"lowIssues"`
	ExecutionTimeMinutes float64        `json:"executionTimeMinutes"`
	Phases               []PhaseSummary `json:"phases"`
}

// TestSummary holds the counts of a batch test report
type TestSummary struct {
	Total          int     `json:"total"`
	Passed         int     `json:"passed"`
	Failed         int     `json:"failed"`
	CriticalFailed int     `json:"criticalFailed"`
	SuccessRate    float64 `json:"successRate"`
}

// TestReport is the batch-test report
type TestReport struct {
	RunID           string      `json:"runId"`
	GeneratedAt     time.Time   `json:"generatedAt"`
	Summary         TestSummary `json:"summary"`
	Results         []TestCase  `json:"results"`
	Recommendations []string    `json:"recommendations"`
}
