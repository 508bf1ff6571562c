package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundwatch/noise-monitor-service/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		level  string
		debug  bool
		info   bool
		warn   bool
		format string
	}{
		{level: "DEBUG", debug: true, info: true, warn: true, format: "text"},
		{level: "info", debug: false, info: true, warn: true, format: "json"},
		{level: "warning", debug: false, info: false, warn: true, format: "json"},
		{level: "bogus", debug: false, info: true, warn: true, format: "text"},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: tt.level, LogFormat: tt.format})
			require.NotNil(t, logger)
			assert.Equal(t, tt.debug, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.info, logger.Enabled(ctx, slog.LevelInfo))
			assert.Equal(t, tt.warn, logger.Enabled(ctx, slog.LevelWarn))
		})
	}
}

func TestNewLogger_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	NewLogger(&config.Config{LogLevel: "error", LogFormat: "json"})
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.Relabeled.Inc()
	a.Classifications.WithLabelValues("fixed", "quiet").Inc()

	assert.InDelta(t, 1.0, testutil.ToFloat64(a.Relabeled), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.Relabeled), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(a.Classifications.WithLabelValues("fixed", "quiet")), 1e-9)
}
