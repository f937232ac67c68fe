package service

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the default Prometheus registry on /metrics
type MetricsServer struct {
	srv httpServer
}

func (m *MetricsServer) Start(_ context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return m.srv.listenAndServe(addr, mux)
}

func (m *MetricsServer) Shutdown() error {
	return m.srv.shutdown()
}
