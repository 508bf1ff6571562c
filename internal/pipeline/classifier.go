package pipeline

import (
	"context"
	"log/slog"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
	"github.com/soundwatch/noise-monitor-service/internal/observability"
)

// HistoryStore supplies the most recent real levels, newest first.
type HistoryStore interface {
	RecentRealLevels(ctx context.Context, limit int) ([]float64, error)
}

// Classifier labels levels with the configured strategy. In adaptive mode it
// fetches a fresh history window on every call; nothing is carried between calls.
type Classifier struct {
	mode    domain.Mode
	history HistoryStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClassifier creates a Classifier. history may be nil in fixed mode.
func NewClassifier(mode domain.Mode, history HistoryStore, logger *slog.Logger, metrics *observability.Metrics) *Classifier {
	return &Classifier{
		mode:    mode,
		history: history,
		logger:  logger,
		metrics: metrics,
	}
}

// Mode returns the strategy in use.
func (c *Classifier) Mode() domain.Mode { return c.mode }

// Classify returns the label for level. It never fails: history errors are
// logged and treated as an empty window, which selects the fixed cutoffs.
func (c *Classifier) Classify(ctx context.Context, level float64) domain.Label {
	var label domain.Label
	if c.mode == domain.ModeAdaptive && c.history != nil {
		label = domain.ClassifyAdaptive(level, c.historyFunc(ctx))
	} else {
		label = domain.ClassifyFixed(level)
	}
	c.metrics.Classifications.WithLabelValues(string(c.mode), string(label)).Inc()
	return label
}

// historyFunc binds the store to ctx and records window size and fallbacks.
func (c *Classifier) historyFunc(ctx context.Context) domain.HistoryFunc {
	return func() []float64 {
		levels, err := c.history.RecentRealLevels(ctx, domain.HistoryWindow)
		if err != nil {
			c.logger.Warn("history fetch failed, using fixed thresholds", "error", err)
			c.metrics.HistoryFetchErrors.Inc()
			levels = nil
		}
		c.metrics.HistorySamples.Observe(float64(len(levels)))
		if len(levels) < domain.MinHistorySamples {
			c.metrics.AdaptiveFallbacks.Inc()
		}
		return levels
	}
}
