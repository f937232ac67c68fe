package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipa-labs/payaudit/store"
	"github.com/lipa-labs/payaudit/types"
)

type fakeSource struct {
	phases   []types.Phase
	cases    []types.TestCase
	progress float64
	running  bool
}

func (f *fakeSource) Phases() []types.Phase       { return f.phases }
func (f *fakeSource) TestCases() []types.TestCase { return f.cases }
func (f *fakeSource) Progress() float64           { return f.progress }
func (f *fakeSource) Running() bool               { return f.running }

type brokenStore struct {
	store.ReportStore
}

func (brokenStore) LatestAudit(context.Context) (*types.AuditReport, error) {
	return nil, errors.New("connection reset")
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReportAPI_LatestReports(t *testing.T) {
	reports := store.NewMemoryReportStore()
	h := NewReportAPIHandler(reports, &fakeSource{})

	rec := get(t, h, "/reports/audit/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ctx := context.Background()
	require.NoError(t, reports.PutAudit(ctx, &types.AuditReport{RunID: "r1", TestsRun: 195, OverallScore: 97}))
	require.NoError(t, reports.PutTests(ctx, &types.TestReport{RunID: "r1", Summary: types.TestSummary{Total: 7, Passed: 7, SuccessRate: 100}}))

	rec = get(t, h, "/reports/audit/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var audit types.AuditReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	assert.Equal(t, 195, audit.TestsRun)
	assert.Equal(t, 97, audit.OverallScore)

	rec = get(t, h, "/reports/tests/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var tests types.TestReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tests))
	assert.Equal(t, 100.0, tests.Summary.SuccessRate)
}

func TestReportAPI_StoreFailure(t *testing.T) {
	h := NewReportAPIHandler(brokenStore{}, &fakeSource{})
	rec := get(t, h, "/reports/audit/latest")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestReportAPI_Progress(t *testing.T) {
	src := &fakeSource{
		running:  true,
		progress: 12.5,
		phases: []types.Phase{
			{ID: "security", Status: types.PhaseStatusRunning},
			{ID: "payments", Status: types.PhaseStatusPending},
		},
	}
	h := NewReportAPIHandler(store.NewMemoryReportStore(), src)

	rec := get(t, h, "/progress")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ProgressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Running)
	assert.Equal(t, 12.5, resp.Progress)
	require.Len(t, resp.Phases, 2)
	assert.Equal(t, types.PhaseStatusRunning, resp.Phases[0].Status)
}

func TestReportAPI_Tests(t *testing.T) {
	src := &fakeSource{cases: []types.TestCase{
		{TestMetadata: types.TestMetadata{ID: "mpesa_stk_push", Critical: true}, Status: types.TestStatusFail, Error: "timeout"},
	}}
	h := NewReportAPIHandler(store.NewMemoryReportStore(), src)

	rec := get(t, h, "/tests")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TestsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tests, 1)

	rec = get(t, h, "/tests/mpesa_stk_push")
	require.Equal(t, http.StatusOK, rec.Code)
	var tc types.TestCase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tc))
	assert.Equal(t, "timeout", tc.Error)

	rec = get(t, h, "/tests/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportAPI_MethodNotAllowed(t *testing.T) {
	h := NewReportAPIHandler(store.NewMemoryReportStore(), &fakeSource{})
	req := httptest.NewRequest(http.MethodPost, "/progress", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthzHandle(t *testing.T) {
	h := &HealthzServer{}
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServiceShutdownWithoutStart(t *testing.T) {
	s := New(Config{API: NewReportAPIHandler(store.NewMemoryReportStore(), &fakeSource{})})
	s.Shutdown()
}

func TestServersShutdownRacingStart(t *testing.T) {
	servers := map[string]interface {
		Start(context.Context, string) error
		Shutdown() error
	}{
		"healthz": &HealthzServer{},
		"metrics": &MetricsServer{},
		"api":     NewAPIServer(NewReportAPIHandler(store.NewMemoryReportStore(), &fakeSource{})),
	}
	for name, srv := range servers {
		t.Run(name, func(t *testing.T) {
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(context.Background(), "127.0.0.1:0")
			}()
			require.NoError(t, srv.Shutdown())

			select {
			case err := <-errCh:
				assert.ErrorIs(t, err, http.ErrServerClosed)
			case <-time.After(2 * time.Second):
				t.Fatal("server kept running after shutdown")
			}
		})
	}
}

func TestServerStartAfterShutdown(t *testing.T) {
	h := &HealthzServer{}
	require.NoError(t, h.Shutdown())
	assert.ErrorIs(t, h.Start(context.Background(), "127.0.0.1:0"), http.ErrServerClosed)
}

func TestServerServesUntilShutdown(t *testing.T) {
	h := &HealthzServer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Start(context.Background(), "127.0.0.1:0")
	}()

	require.Eventually(t, func() bool {
		h.srv.mu.Lock()
		defer h.srv.mu.Unlock()
		return h.srv.server != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Shutdown())
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server kept running after shutdown")
	}
}
