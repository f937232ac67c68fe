package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/lipa-labs/payaudit/metrics"
	"github.com/lipa-labs/payaudit/store"
	"github.com/lipa-labs/payaudit/types"
)

// StatusSource exposes read-only snapshots of the run in flight
type StatusSource interface {
	Phases() []types.Phase
	TestCases() []types.TestCase
	Progress() float64
	Running() bool
}

type ProgressResponse struct {
	Running  bool          `json:"running"`
	Progress float64       `json:"progress"`
	Phases   []types.Phase `json:"phases"`
}

type TestsResponse struct {
	Running bool             `json:"running"`
	Tests   []types.TestCase `json:"tests"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ReportAPIHandler serves the latest reports and the live run state
type ReportAPIHandler struct {
	store  store.ReportStore
	source StatusSource
	router *mux.Router
}

func NewReportAPIHandler(reports store.ReportStore, source StatusSource) *ReportAPIHandler {
	h := &ReportAPIHandler{store: reports, source: source}

	r := mux.NewRouter()
	r.HandleFunc("/reports/audit/latest", h.handleLatestAudit).Methods(http.MethodGet)
	r.HandleFunc("/reports/tests/latest", h.handleLatestTests).Methods(http.MethodGet)
	r.HandleFunc("/progress", h.handleProgress).Methods(http.MethodGet)
	r.HandleFunc("/tests", h.handleTests).Methods(http.MethodGet)
	r.HandleFunc("/tests/{id}", h.handleTest).Methods(http.MethodGet)
	h.router = r
	return h
}

func (h *ReportAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, body any) {
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		log.Error("failed to marshal response", "path", r.URL.Path, "error", err)
		statusCode = http.StatusInternalServerError
		data = []byte(`{"error":"internal server error"}`)
	}

	route := r.URL.Path
	if cur := mux.CurrentRoute(r); cur != nil {
		if tmpl, err := cur.GetPathTemplate(); err == nil {
			route = tmpl
		}
	}
	metrics.RecordHTTPResponse(route, statusCode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		log.Error("failed to send response", "path", r.URL.Path, "error", err)
	}
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "no report available yet"})
		return
	}
	log.Error("failed to load report", "path", r.URL.Path, "error", err)
	writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "failed to load report"})
}

func (h *ReportAPIHandler) handleLatestAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.LatestAudit(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

func (h *ReportAPIHandler) handleLatestTests(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.LatestTests(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

func (h *ReportAPIHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, ProgressResponse{
		Running:  h.source.Running(),
		Progress: h.source.Progress(),
		Phases:   h.source.Phases(),
	})
}

func (h *ReportAPIHandler) handleTests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, TestsResponse{
		Running: h.source.Running(),
		Tests:   h.source.TestCases(),
	})
}

func (h *ReportAPIHandler) handleTest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	for _, tc := range h.source.TestCases() {
		if tc.ID == id {
			writeJSON(w, r, http.StatusOK, tc)
			return
		}
	}
	writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "unknown test"})
}

type APIServer struct {
	srv     httpServer
	handler http.Handler
}

func NewAPIServer(handler http.Handler) *APIServer {
	return &APIServer{handler: handler}
}

func (a *APIServer) Start(_ context.Context, addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	})
	return a.srv.listenAndServe(addr, c.Handler(a.handler))
}

func (a *APIServer) Shutdown() error {
	return a.srv.shutdown()
}
