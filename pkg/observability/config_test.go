package observability_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()

	assert.Equal(t, observability.ModeCLI, cfg.Mode)
	assert.Equal(t, slog.LevelInfo, cfg.Logs.Level)
	assert.False(t, cfg.Logs.JSON)
	assert.Nil(t, cfg.Logs.Output)
	assert.Equal(t, observability.Collector{}, cfg.Collector)
	assert.Empty(t, cfg.Readers)
	assert.Equal(t, 5*time.Second, cfg.FlushTimeout)
}
