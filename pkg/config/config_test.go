package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/pkg/config"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rbmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Allocator.MaxNodes)
	assert.Equal(t, 0, cfg.Allocator.HibernationThreshold)
	assert.Equal(t, 1, cfg.Allocator.Shards)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Observability.OTLPEndpoint)
	assert.Empty(t, cfg.Observability.MetricsAddr)
	assert.Zero(t, cfg.Observability.SampleRatio)
	assert.True(t, cfg.Script.Strict)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
allocator:
  max_nodes: 1000
  hibernation_threshold: 64
  shards: 4

logging:
  level: debug
  format: json

observability:
  otlp_endpoint: "localhost:4317"
  otlp_headers: "x-team=trees"
  otlp_insecure: true
  metrics_addr: ":9464"
  sample_ratio: 0.25

script:
  strict: false
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Allocator.MaxNodes)
	assert.Equal(t, 64, cfg.Allocator.HibernationThreshold)
	assert.Equal(t, 4, cfg.Allocator.Shards)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9464", cfg.Observability.MetricsAddr)
	assert.False(t, cfg.Script.Strict)

	obsCfg := cfg.ObservabilityConfig(observability.ModeMCP, "1.2.3")
	assert.Equal(t, observability.ModeMCP, obsCfg.Mode)
	assert.Equal(t, "1.2.3", obsCfg.Version)
	assert.InDelta(t, 0.25, obsCfg.SampleRatio, 0)
	assert.Equal(t, observability.Collector{
		Endpoint: "localhost:4317",
		Headers:  map[string]string{"x-team": "trees"},
		Insecure: true,
	}, obsCfg.Collector)
	assert.True(t, obsCfg.Logs.JSON)
	assert.Equal(t, slog.LevelDebug, obsCfg.Logs.Level)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("RBMAP_ALLOCATOR_MAX_NODES", "77")
	t.Setenv("RBMAP_LOGGING_FORMAT", "json")

	cfg, err := config.LoadConfig(writeConfig(t, "allocator:\n  max_nodes: 5\n"))
	require.NoError(t, err)

	assert.Equal(t, 77, cfg.Allocator.MaxNodes)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"negative_max_nodes", "allocator:\n  max_nodes: -1\n", config.ErrInvalidMaxNodes},
		{"negative_threshold", "allocator:\n  hibernation_threshold: -5\n", config.ErrInvalidThreshold},
		{"zero_shards", "allocator:\n  shards: 0\n", config.ErrInvalidShards},
		{"bad_format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"bad_level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"ratio_above_one", "observability:\n  sample_ratio: 1.5\n", config.ErrInvalidRatio},
		{"negative_ratio", "observability:\n  sample_ratio: -0.1\n", config.ErrInvalidRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfigInvalidLevelKeepsCause(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "logging:\n  level: loud\n"))
	require.ErrorIs(t, err, config.ErrInvalidLogLevel)
	require.ErrorIs(t, err, observability.ErrInvalidLogLevel)
	assert.Contains(t, err.Error(), `"loud"`)
}
