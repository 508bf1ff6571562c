package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
	"github.com/soundwatch/noise-monitor-service/internal/observability"
)

// LabelStore finds unlabeled real readings and labels them.
type LabelStore interface {
	Unlabeled(ctx context.Context, limit int) ([]domain.Reading, error)
	// SetLabel labels the reading only if it is still unlabeled and reports
	// whether it did.
	SetLabel(ctx context.Context, id string, label domain.Label) (bool, error)
}

// Relabeler periodically labels real readings that were stored without one.
type Relabeler struct {
	store      LabelStore
	classifier LevelClassifier
	clock      clockwork.Clock
	interval   time.Duration
	batchSize  int
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewRelabeler creates a Relabeler. A nil clock uses real time.
func NewRelabeler(store LabelStore, classifier LevelClassifier, clock clockwork.Clock, interval time.Duration, batchSize int, logger *slog.Logger, metrics *observability.Metrics) *Relabeler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Relabeler{
		store:      store,
		classifier: classifier,
		clock:      clock,
		interval:   interval,
		batchSize:  batchSize,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run relabels once immediately and then on every tick until ctx is cancelled.
func (r *Relabeler) Run(ctx context.Context) error {
	r.logger.Info("relabeler started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.RelabelOnce(ctx)
		switch {
		case ctx.Err() != nil:
			r.logger.Info("relabeler stopping")
			return nil
		case err != nil:
			r.logger.Error("relabel pass failed", "error", err)
		case n > 0:
			r.logger.Info("relabel pass complete", "labeled", n)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relabeler stopping")
			return nil
		case <-ticker.Chan():
		}
	}
}

// RelabelOnce labels up to one batch of unlabeled readings and returns how
// many it labeled. Readings labeled concurrently elsewhere are skipped.
func (r *Relabeler) RelabelOnce(ctx context.Context) (int, error) {
	pending, err := r.store.Unlabeled(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unlabeled readings: %w", err)
	}

	labeled := 0
	for _, reading := range pending {
		label := r.classifier.Classify(ctx, reading.LevelDB)
		ok, err := r.store.SetLabel(ctx, reading.ID, label)
		if err != nil {
			return labeled, fmt.Errorf("label reading %s: %w", reading.ID, err)
		}
		if !ok {
			r.logger.Debug("reading already labeled", "id", reading.ID)
			continue
		}
		labeled++
		r.metrics.Relabeled.Inc()
	}
	return labeled, nil
}
