package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath is where Prometheus metrics are served.
const MetricsPath = "/metrics"

// MetricsServer exposes the process metrics registry over HTTP.
type MetricsServer struct {
	server *http.Server
	addr   string
}

// NewMetricsServer creates a metrics server for host:port.
func NewMetricsServer(host string, port int, logger *slog.Logger) *MetricsServer {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.Handler())

	return &MetricsServer{
		addr: net.JoinHostPort(host, fmt.Sprint(port)),
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}
}

// Start binds the listener and serves until Shutdown.
func (s *MetricsServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	return s.Serve(listener)
}

// Serve serves metrics on an existing listener. It returns nil after Shutdown.
func (s *MetricsServer) Serve(listener net.Listener) error {
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting scrapes and waits for in-flight ones.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
