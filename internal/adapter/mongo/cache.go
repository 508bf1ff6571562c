package mongo

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/soundwatch/noise-monitor-service/internal/observability"
)

// HistorySource supplies the most recent real levels.
type HistorySource interface {
	RecentRealLevels(ctx context.Context, limit int) ([]float64, error)
}

// CachedHistory wraps a HistorySource with a per-limit TTL cache. A window is
// served for at most ttl after it was fetched; fetch errors are not cached.
type CachedHistory struct {
	inner   HistorySource
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu      sync.Mutex
	windows map[int]cachedWindow
}

type cachedWindow struct {
	levels    []float64
	fetchedAt time.Time
}

// NewCachedHistory creates a cache decorator around a history source. A nil
// clock uses real time.
func NewCachedHistory(inner HistorySource, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedHistory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedHistory{
		inner:   inner,
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
		windows: make(map[int]cachedWindow),
	}
}

func (c *CachedHistory) RecentRealLevels(ctx context.Context, limit int) ([]float64, error) {
	if levels, ok := c.get(limit); ok {
		c.metrics.HistoryCache.WithLabelValues("hit").Inc()
		return levels, nil
	}
	c.metrics.HistoryCache.WithLabelValues("miss").Inc()

	levels, err := c.inner.RecentRealLevels(ctx, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.windows[limit] = cachedWindow{levels: slices.Clone(levels), fetchedAt: c.clock.Now()}
	c.mu.Unlock()
	return levels, nil
}

// get returns a copy of a fresh window for limit.
func (c *CachedHistory) get(limit int) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[limit]
	if !ok || c.clock.Since(w.fetchedAt) >= c.ttl {
		return nil, false
	}
	return slices.Clone(w.levels), true
}
