package types

import (
	"fmt"
	"strings"
	"time"
)

// TestStatus represents the possible states of a test case
type TestStatus string

const (
	TestStatusPending TestStatus = "pending"
	TestStatusRunning TestStatus = "running"
	TestStatusPass    TestStatus = "pass"
	TestStatusFail    TestStatus = "fail"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s TestStatus) IsTerminal() bool {
	return s == TestStatusPass || s == TestStatusFail
}

// TestMetadata is the static, immutable configuration of a test case
type TestMetadata struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Critical bool   `json:"critical"`
}

// Namespace returns the part of the id before the first underscore,
// e.g. "mpesa" for "mpesa_stk_push".
func (m TestMetadata) Namespace() string {
	return Namespace(m.ID)
}

// Namespace returns the namespace prefix of a test id.
func Namespace(id string) string {
	if i := strings.Index(id, "_"); i > 0 {
		return id[:i]
	}
	return id
}

// TestResult is what an executor returns for a single run
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestCase is a single named check together with the outcome of its latest execution
type TestCase struct {
	TestMetadata
	Status    TestStatus    `json:"status"`
	Duration  time.Duration `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
	Details   string        `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewTestCase creates a pending test case
func NewTestCase(meta TestMetadata, now time.Time) TestCase {
	return TestCase{
		TestMetadata: meta,
		Status:       TestStatusPending,
		Timestamp:    now,
	}
}

// Transition moves the case to the next status, refusing any move that
// skips running or leaves a terminal state.
func (tc *TestCase) Transition(next TestStatus) error {
	ok := false
	switch tc.Status {
	case TestStatusPending:
		ok = next == TestStatusRunning
	case TestStatusRunning:
		ok = next.IsTerminal()
	}
	if !ok {
		return fmt.Errorf("test %s: illegal transition %s -> %s", tc.ID, tc.Status, next)
	}
	tc.Status = next
	return nil
}

// Failed is true when the case finished with a failure
func (tc TestCase) Failed() bool {
	return tc.Status == TestStatusFail
}
