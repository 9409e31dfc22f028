package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/Sumatoshi-tech/rbmap"

// ErrInvalidLogLevel is returned by ParseLogLevel for unknown level names.
var ErrInvalidLogLevel = errors.New("invalid log level")

// Providers bundles the telemetry handles of a running process.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	flushTimeout time.Duration
	closers      []func(context.Context) error
}

// Shutdown flushes pending spans and metrics, newest provider first. It
// must run before the process exits.
func (p Providers) Shutdown(ctx context.Context) error {
	if len(p.closers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.flushTimeout)
	defer cancel()

	errs := make([]error, 0, len(p.closers))
	for _, closeFn := range slices.Backward(p.closers) {
		errs = append(errs, closeFn(ctx))
	}

	return errors.Join(errs...)
}

// Init builds the logger and the tracer and meter providers, and installs
// them as the OTel globals. Without a collector and readers both providers
// are no-ops.
func Init(cfg Config) (Providers, error) {
	providers := Providers{
		Logger:       newLogger(cfg),
		Tracer:       nooptrace.NewTracerProvider().Tracer(instrumentationName),
		Meter:        noopmetric.NewMeterProvider().Meter(instrumentationName),
		flushTimeout: cfg.FlushTimeout,
	}

	if providers.flushTimeout <= 0 {
		providers.flushTimeout = defaultFlushTimeout
	}

	if !cfg.exporting() {
		return providers, nil
	}

	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return Providers{}, err
	}

	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		return Providers{}, err
	}

	otel.SetMeterProvider(mp)
	providers.Meter = mp.Meter(instrumentationName)
	providers.closers = append(providers.closers, mp.Shutdown)

	if cfg.Collector.enabled() {
		tp, tpErr := newTracerProvider(ctx, cfg, res)
		if tpErr != nil {
			return Providers{}, errors.Join(tpErr, providers.Shutdown(ctx))
		}

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

		providers.Tracer = tp.Tracer(instrumentationName)
		providers.closers = append(providers.closers, tp.Shutdown)
	}

	return providers, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		attribute.String("app.mode", string(cfg.Mode)),
	}

	if cfg.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Collector.Endpoint)}

	if cfg.Collector.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.Collector.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Collector.Headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	}

	if sampler := cfg.sampler(); sampler != nil {
		tpOpts = append(tpOpts, sdktrace.WithSampler(sampler))
	}

	return sdktrace.NewTracerProvider(tpOpts...), nil
}

// sampler returns nil when the SDK should pick the sampler from the
// OTEL_TRACES_SAMPLER environment.
func (cfg Config) sampler() sdktrace.Sampler {
	switch {
	case cfg.SampleAll:
		return sdktrace.AlwaysSample()
	case cfg.SampleRatio > 0:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	default:
		return nil
	}
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	for _, reader := range cfg.Readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	if cfg.Collector.enabled() {
		exportOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Collector.Endpoint)}

		if cfg.Collector.Insecure {
			exportOpts = append(exportOpts, otlpmetricgrpc.WithInsecure())
		}

		if len(cfg.Collector.Headers) > 0 {
			exportOpts = append(exportOpts, otlpmetricgrpc.WithHeaders(cfg.Collector.Headers))
		}

		exporter, err := otlpmetricgrpc.New(ctx, exportOpts...)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	return sdkmetric.NewMeterProvider(opts...), nil
}

func newLogger(cfg Config) *slog.Logger {
	out := cfg.Logs.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.Logs.Level}

	var inner slog.Handler = slog.NewTextHandler(out, handlerOpts)
	if cfg.Logs.JSON {
		inner = slog.NewJSONHandler(out, handlerOpts)
	}

	return slog.New(NewTracingHandler(inner, serviceName, cfg.Environment, cfg.Mode))
}

// ParseLogLevel maps a level name (debug, info, warn, error) to a slog level.
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(name))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}

	return level, nil
}

// ParseOTLPHeaders reads the "key=value,key=value" form of collector
// headers. Pairs without "=" are skipped; nil means no headers.
func ParseOTLPHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return headers
}
