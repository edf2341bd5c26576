package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chy506r/config"
)

// Server provides HTTP endpoints for monitoring
type Server struct {
	config *config.MonitoringConfig
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a new monitoring server
func NewServer(cfg *config.Config, version string, source Source, logger *slog.Logger) *Server {
	return &Server{
		config: &cfg.Monitoring,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Monitoring.Port),
			Handler:      NewHandler(cfg, version, source),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the monitoring mux
func NewHandler(cfg *config.Config, version string, source Source) http.Handler {
	mux := http.NewServeMux()

	// Health endpoint
	mux.Handle("/health", NewHealthHandler(cfg.App.InstanceID, version, source))

	// Metrics endpoint (Prometheus format)
	mux.Handle("/metrics", NewMetricsHandler(source))

	// Config endpoint
	mux.Handle("/api/config", NewConfigHandler(cfg))

	// Samples endpoint
	mux.Handle("/api/samples", NewSamplesHandler(source))

	// Serial ports endpoint
	mux.Handle("/api/ports", NewSysPortsHandler(source))

	return mux
}

// Start starts the monitoring server
func (s *Server) Start() error {
	s.logger.Info("Starting monitoring server", "port", s.config.Port)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Monitoring server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the monitoring server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping monitoring server")
	return s.server.Shutdown(ctx)
}
