// Package server implements HTTP server for health checks and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	GetStatus() map[string]string
}

// Config holds listener settings. A server whose port is zero is not started.
type Config struct {
	HealthPort    int
	LivenessPath  string
	ReadinessPath string
	MetricsPort   int
	MetricsPath   string
}

// Server represents the HTTP server for health and metrics.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *zap.Logger
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, healthChecker HealthChecker, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if cfg.LivenessPath == "" {
		cfg.LivenessPath = "/health/live"
	}
	if cfg.ReadinessPath == "" {
		cfg.ReadinessPath = "/health/ready"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{logger: logger}

	if cfg.HealthPort > 0 {
		healthMux := http.NewServeMux()
		healthMux.HandleFunc(cfg.LivenessPath, LivenessHandler(healthChecker, logger))
		healthMux.HandleFunc(cfg.ReadinessPath, ReadinessHandler(healthChecker, logger))
		s.healthServer = newHTTPServer(cfg.HealthPort, healthMux)
	}

	if cfg.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		s.metricsServer = newHTTPServer(cfg.MetricsPort, metricsMux)
	}

	return s
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Start starts the configured HTTP servers.
func (s *Server) Start() {
	for name, srv := range s.servers() {
		go func() {
			s.logger.Info("Starting HTTP server", zap.String("server", name), zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server failed", zap.String("server", name), zap.Error(err))
			}
		}()
	}
}

// Shutdown gracefully shuts down the servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP servers")

	servers := s.servers()
	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			errChan <- srv.Shutdown(ctx)
		}()
	}

	var lastErr error
	for range servers {
		if err := <-errChan; err != nil {
			s.logger.Error("Error shutting down server", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

func (s *Server) servers() map[string]*http.Server {
	servers := make(map[string]*http.Server, 2)
	if s.healthServer != nil {
		servers["health"] = s.healthServer
	}
	if s.metricsServer != nil {
		servers["metrics"] = s.metricsServer
	}
	return servers
}
