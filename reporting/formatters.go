package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lipa-labs/payaudit/types"
)

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// getPhaseStatusString returns a marked status string for a phase
func getPhaseStatusString(status types.PhaseStatus) string {
	switch status {
	case types.PhaseStatusCompleted:
		return "✓ completed"
	case types.PhaseStatusFailed:
		return "✗ failed"
	case types.PhaseStatusRunning:
		return "… running"
	default:
		return "- pending"
	}
}

// getTestStatusString returns a marked status string for a test case
func getTestStatusString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusFail:
		return "✗ fail"
	case types.TestStatusRunning:
		return "… running"
	default:
		return "- pending"
	}
}

func boolToMark(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// AuditTextFormatter renders an AuditReport as summary lines followed by a phase table
type AuditTextFormatter struct {
	Colored bool
}

// Format implements the formatter contract for audit reports
func (f AuditTextFormatter) Format(r *types.AuditReport) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Audit Report %s\n", r.RunID)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Overall Status: %s\n", strings.ToUpper(string(r.OverallStatus)))
	fmt.Fprintf(&b, "Overall Score: %d\n", r.OverallScore)
	fmt.Fprintf(&b, "Tests Run: %d\n", r.TestsRun)
	fmt.Fprintf(&b, "Tests Passed: %d\n", r.TestsPassed)
	fmt.Fprintf(&b, "Tests Failed: %d\n", r.TestsFailed)
	fmt.Fprintf(&b, "Critical Issues: %d\n", r.CriticalIssues)
	fmt.Fprintf(&b, "High Issues: %d\n", r.HighIssues)
	fmt.Fprintf(&b, "Medium Issues: %d\n", r.MediumIssues)
	fmt.Fprintf(&b, "Low Issues: %d\n", r.LowIssues)
	fmt.Fprintf(&b, "Execution Time (minutes): %.2f\n\n", r.ExecutionTimeMinutes)

	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Audit Phases (%s)", r.RunID))
	t.AppendHeader(table.Row{"#", "Phase", "Status", "Tests", "Passed", "Failed"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Phase", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
	})
	for i, p := range r.Phases {
		row := table.Row{i + 1, p.Name, getPhaseStatusString(p.Status), "-", "-", "-"}
		if p.Results != nil {
			row[3], row[4], row[5] = p.Results.TestsRun, p.Results.TestsPassed, p.Results.TestsFailed
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", "TOTAL", strings.ToUpper(string(r.OverallStatus)), r.TestsRun, r.TestsPassed, r.TestsFailed})
	f.applyStyle(t, r.OverallStatus == types.OverallStatusPass)

	b.WriteString(t.Render())
	b.WriteString("\n")
	return b.String(), nil
}

func (f AuditTextFormatter) applyStyle(t table.Writer, passed bool) {
	applyStyle(t, f.Colored, passed)
}

func applyStyle(t table.Writer, colored, passed bool) {
	switch {
	case !colored:
		t.SetStyle(table.StyleLight)
	case passed:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}
}

// TestTextFormatter renders a TestReport as summary lines, a result table and recommendations
type TestTextFormatter struct {
	Colored bool
}

// Format implements the formatter contract for test reports
func (f TestTextFormatter) Format(r *types.TestReport) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Test Report %s\n", r.RunID)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Tests Run: %d\n", r.Summary.Total)
	fmt.Fprintf(&b, "Tests Passed: %d\n", r.Summary.Passed)
	fmt.Fprintf(&b, "Tests Failed: %d\n", r.Summary.Failed)
	fmt.Fprintf(&b, "Critical Failed: %d\n", r.Summary.CriticalFailed)
	fmt.Fprintf(&b, "Success Rate: %.2f%%\n\n", r.Summary.SuccessRate)

	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Test Results (%s)", r.RunID))
	t.AppendHeader(table.Row{"ID", "Name", "Category", "Critical", "Duration", "Status", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "ID", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, tc := range r.Results {
		t.AppendRow(table.Row{
			tc.ID,
			tc.Name,
			tc.Category,
			boolToMark(tc.Critical),
			formatDuration(tc.Duration),
			getTestStatusString(tc.Status),
			tc.Error,
		})
	}
	t.AppendFooter(table.Row{"TOTAL", "", "", r.Summary.CriticalFailed, "", fmt.Sprintf("%d/%d", r.Summary.Passed, r.Summary.Total), ""})
	applyStyle(t, f.Colored, r.Summary.Failed == 0)

	b.WriteString(t.Render())
	b.WriteString("\n")

	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}
	return b.String(), nil
}

// JSONFormatter renders any report as indented JSON
type JSONFormatter struct{}

// Format marshals v with two space indentation
func (JSONFormatter) Format(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
