package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lipa-labs/payaudit/types"
)

// ErrNotFound is returned when no report of the requested kind has been stored yet
var ErrNotFound = errors.New("report not found")

// ReportStore keeps the most recent audit and test report. Storing a report
// replaces the previous one of the same kind.
type ReportStore interface {
	PutAudit(ctx context.Context, report *types.AuditReport) error
	LatestAudit(ctx context.Context) (*types.AuditReport, error)
	PutTests(ctx context.Context, report *types.TestReport) error
	LatestTests(ctx context.Context) (*types.TestReport, error)
}

const (
	kindAudit = "audit"
	kindTests = "tests"
)

// MemoryReportStore keeps the latest reports in local memory. Reports are held
// in encoded form so callers never share state with the store.
type MemoryReportStore struct {
	mtx     sync.RWMutex
	reports map[string][]byte
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[string][]byte)}
}

func (m *MemoryReportStore) PutAudit(_ context.Context, report *types.AuditReport) error {
	return m.put(kindAudit, report)
}

func (m *MemoryReportStore) LatestAudit(_ context.Context) (*types.AuditReport, error) {
	var report types.AuditReport
	if err := m.get(kindAudit, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (m *MemoryReportStore) PutTests(_ context.Context, report *types.TestReport) error {
	return m.put(kindTests, report)
}

func (m *MemoryReportStore) LatestTests(_ context.Context) (*types.TestReport, error) {
	var report types.TestReport
	if err := m.get(kindTests, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (m *MemoryReportStore) put(kind string, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode %s report: %w", kind, err)
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.reports[kind] = data
	return nil
}

func (m *MemoryReportStore) get(kind string, out any) error {
	m.mtx.RLock()
	data, ok := m.reports[kind]
	m.mtx.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, out)
}
