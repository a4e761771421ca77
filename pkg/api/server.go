package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/fileshare/internal/logger"
)

// Server is the HTTP sidecar serving health probes and Prometheus
// metrics next to the wire protocol listener.
//
// The server supports graceful shutdown and is safe to stop more than
// once.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewServer creates the ops server on the given port. The registry feeds
// /metrics, checks feed /healthz/ready, and audit feeds /activity (nil
// disables the endpoint).
func NewServer(port int, registry *prometheus.Registry, checks map[string]HealthChecker, audit ActivitySource) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      NewRouter(registry, checks, audit),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		port: port,
	}
}

// Start serves until the context is cancelled or the listener fails.
// Returns nil on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", "port", s.port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("ops server shutdown signal received")
		// A fresh context: the cancelled one would abort the drain.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("ops server failed: %w", err)
	}
}

// Stop drains in-flight requests and closes the listener. Safe to call
// multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("ops server shutdown error: %w", err)
		} else {
			logger.Info("ops server stopped")
		}
	})
	return shutdownErr
}

// Port returns the configured HTTP port.
func (s *Server) Port() int {
	return s.port
}
