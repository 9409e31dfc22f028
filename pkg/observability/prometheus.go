package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	metricsPath = "/metrics"

	readHeaderTimeout = 5 * time.Second
)

// PrometheusEndpoint is a /metrics scrape endpoint fed by OTel instruments.
// Its Reader must be attached to the meter provider (Config.Readers);
// each endpoint owns an independent registry.
type PrometheusEndpoint struct {
	Reader  sdkmetric.Reader
	Handler http.Handler
}

// NewPrometheusEndpoint creates the exporter and its HTTP handler.
func NewPrometheusEndpoint() (*PrometheusEndpoint, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &PrometheusEndpoint{
		Reader:  exporter,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// Serve listens on addr and serves /metrics until ctx is cancelled. A ctx
// that is already done still binds addr and returns nil.
func (pe *PrometheusEndpoint) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	listener, err := (&net.ListenConfig{}).Listen(context.WithoutCancel(ctx), "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	return pe.serve(ctx, listener, logger)
}

func (pe *PrometheusEndpoint) serve(ctx context.Context, listener net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, pe.Handler)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	logger.Info("serving metrics", "addr", listener.Addr().String(), "path", metricsPath)

	err := server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}
