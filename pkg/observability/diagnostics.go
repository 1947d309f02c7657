package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"go.opentelemetry.io/otel/metric"
)

// DiagnosticsServer exposes /healthz, /readyz, and /metrics over HTTP: the
// Prometheus scrape endpoint cmd/asyncgitd's metrics-serve mode and
// DaemonConfig.Metrics turn on.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
	// Meter is the meter instruments registered against this server's
	// scrape endpoint (RED, cache, runtime) must be created from.
	Meter metric.Meter
}

// NewDiagnosticsServer starts an HTTP server at addr with /healthz,
// /readyz, and /metrics, and registers this process's RuntimeMetrics
// against the scrape meter. checks are run for /readyz.
func NewDiagnosticsServer(addr string, checks ...ReadyCheck) (*DiagnosticsServer, error) {
	mux := http.NewServeMux()

	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(checks...))

	metricsHandler, meter, err := PrometheusHandler()
	if err != nil {
		return nil, fmt.Errorf("create prometheus handler: %w", err)
	}

	mux.Handle("/metrics", metricsHandler)

	if _, err := NewRuntimeMetrics(meter); err != nil {
		return nil, fmt.Errorf("register runtime metrics: %w", err)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	return &DiagnosticsServer{server: srv, listener: listener, Meter: meter}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close gracefully shuts down the diagnostics server.
func (d *DiagnosticsServer) Close() error {
	if err := d.server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
