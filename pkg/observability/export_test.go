package observability

import (
	"context"
	"log/slog"
	"net"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// ResourceOf exposes newResource for testing.
func ResourceOf(cfg Config) (*resource.Resource, error) {
	return newResource(context.Background(), cfg)
}

// SamplesRootSpan reports whether a root span started under the sampler
// chosen for cfg reaches the exporter.
func SamplesRootSpan(cfg Config) bool {
	exporter := tracetest.NewInMemoryExporter()

	opts := []sdktrace.TracerProviderOption{sdktrace.WithSyncer(exporter)}
	if sampler := cfg.sampler(); sampler != nil {
		opts = append(opts, sdktrace.WithSampler(sampler))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	_, span := tp.Tracer("test").Start(context.Background(), "root")
	span.End()

	// Shutdown clears the exporter.
	sampled := len(exporter.GetSpans()) > 0

	if err := tp.Shutdown(context.Background()); err != nil {
		return false
	}

	return sampled
}

// ServeOn exposes serve for tests that need an ephemeral port.
func (pe *PrometheusEndpoint) ServeOn(ctx context.Context, listener net.Listener, logger *slog.Logger) error {
	return pe.serve(ctx, listener, logger)
}
