// Package observability wires the telemetry of the rbmap binary: the slog
// logger, OpenTelemetry tracer and meter providers exported over OTLP, and
// any extra metric readers such as the Prometheus scrape endpoint.
package observability

import (
	"io"
	"log/slog"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeCLI is a one-shot command such as run or dump.
	ModeCLI AppMode = "cli"
	// ModeMCP is the long-running MCP stdio server.
	ModeMCP AppMode = "mcp"
)

const (
	serviceName         = "rbmap"
	defaultFlushTimeout = 5 * time.Second
)

// Collector addresses an OTLP gRPC collector. The zero value disables export.
type Collector struct {
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

func (c Collector) enabled() bool {
	return c.Endpoint != ""
}

// Logs selects the slog handler.
type Logs struct {
	Level slog.Level
	JSON  bool

	// Output defaults to stderr. Stdout carries command output and the MCP
	// transport.
	Output io.Writer
}

// Config describes the telemetry of one rbmap process.
type Config struct {
	Version     string
	Environment string
	Mode        AppMode

	Collector Collector
	Logs      Logs

	// SampleAll records every trace whatever the sampler settings.
	SampleAll bool

	// SampleRatio, when positive, samples that share of root traces.
	// Otherwise the OTEL_TRACES_SAMPLER environment decides.
	SampleRatio float64

	// Readers receive metrics alongside the collector.
	Readers []sdkmetric.Reader

	// FlushTimeout bounds Shutdown.
	FlushTimeout time.Duration
}

// DefaultConfig returns the configuration of an rbmap command without a
// config file: info logs as text, no export.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeCLI,
		Logs:         Logs{Level: slog.LevelInfo},
		FlushTimeout: defaultFlushTimeout,
	}
}

func (cfg Config) exporting() bool {
	return cfg.Collector.enabled() || len(cfg.Readers) > 0
}
