// Package server exposes the storage-engine core's Prometheus metrics
// and Kubernetes-style liveness/readiness probes over one HTTP
// listener, separate from any future data-plane API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/health"
)

// MetricsServer serves Prometheus metrics and health probes via HTTP.
type MetricsServer struct {
	httpServer *http.Server
	logger     *zap.Logger
	stopChan   chan struct{}
}

// Config configures MetricsServer construction.
type Config struct {
	Port int
}

// New constructs a MetricsServer. gatherer is the Prometheus registry
// passed to obsmetrics.New; checker supplies liveness/readiness.
func New(cfg Config, gatherer prometheus.Gatherer, checker *health.Checker, logger *zap.Logger) *MetricsServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &MetricsServer{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:   logger,
		stopChan: make(chan struct{}),
	}

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if checker != nil {
		mux.HandleFunc("/health/live", checker.LivenessHandler)
		mux.HandleFunc("/health/ready", checker.ReadinessHandler)
	}
	return s
}

// Start launches the HTTP listener in the background.
func (s *MetricsServer) Start() error {
	s.logger.Info("server: starting metrics server", zap.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server: metrics server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP listener.
func (s *MetricsServer) Stop() error {
	s.logger.Info("server: stopping metrics server")
	close(s.stopChan)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	return nil
}
