package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lipa-labs/payaudit/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"

	APIHost = "0.0.0.0"
	APIPort = "8090"
)

var (
	DefaultHealthzAddr = net.JoinHostPort(HealthzHost, HealthzPort)
	DefaultMetricsAddr = net.JoinHostPort(MetricsHost, MetricsPort)
	DefaultAPIAddr     = net.JoinHostPort(APIHost, APIPort)
)

// Config selects the listeners to start. An empty address disables that server.
type Config struct {
	HealthzAddr string
	MetricsAddr string
	APIAddr     string
	API         http.Handler
}

type Service struct {
	cfg     Config
	Healthz *HealthzServer
	Metrics *MetricsServer
	API     *APIServer
}

func New(cfg Config) *Service {
	s := &Service{
		cfg:     cfg,
		Healthz: &HealthzServer{},
		Metrics: &MetricsServer{},
	}
	if cfg.API != nil {
		s.API = NewAPIServer(cfg.API)
	}
	return s
}

func (s *Service) Start(ctx context.Context) {
	log.Info("service starting")

	if addr := s.cfg.HealthzAddr; addr != "" {
		go func() {
			log.Info("starting healthz server", "addr", addr)
			if err := s.Healthz.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("error starting healthz server", "err", err)
				metrics.RecordErrorDetails("error starting healthz server", err)
			}
		}()
	}

	if addr := s.cfg.MetricsAddr; addr != "" {
		go func() {
			log.Info("starting metrics server", "addr", addr)
			if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("error starting metrics server", "err", err)
				metrics.RecordErrorDetails("error starting metrics server", err)
			}
		}()
	}

	if addr := s.cfg.APIAddr; addr != "" && s.API != nil {
		go func() {
			log.Info("starting report api server", "addr", addr)
			if err := s.API.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("error starting report api server", "err", err)
				metrics.RecordErrorDetails("error starting report api server", err)
			}
		}()
	}

	log.Info("service started")
}

func (s *Service) Shutdown() {
	log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	log.Info("metrics stopped")

	if s.API != nil {
		_ = s.API.Shutdown()
		log.Info("report api stopped")
	}

	log.Info("service stopped")
}
