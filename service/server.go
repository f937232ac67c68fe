package service

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const shutdownTimeout = 5 * time.Second

// httpServer owns one listener. Start and Shutdown run on different
// goroutines; a Shutdown that wins the race keeps the listener from opening.
type httpServer struct {
	mu     sync.Mutex
	server *http.Server
	closed bool
}

func (s *httpServer) listenAndServe(addr string, handler http.Handler) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Handler:           handler,
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()
	return srv.ListenAndServe()
}

func (s *httpServer) shutdown() error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
