package pipeline

import (
	"context"
	"log/slog"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

// LevelClassifier labels a single level.
type LevelClassifier interface {
	Classify(ctx context.Context, level float64) domain.Label
}

// ReadingTransformer implements Transformer. Synthetic readings are labeled on
// arrival; real readings keep a device-supplied label or are left for the
// Relabeler.
type ReadingTransformer struct {
	classifier LevelClassifier
	logger     *slog.Logger
}

// NewTransformer creates a ReadingTransformer.
func NewTransformer(classifier LevelClassifier, logger *slog.Logger) *ReadingTransformer {
	return &ReadingTransformer{
		classifier: classifier,
		logger:     logger,
	}
}

func (t *ReadingTransformer) Transform(ctx context.Context, raw domain.RawReading) (domain.Reading, error) {
	r, err := domain.ParseRawReading(raw)
	if err != nil {
		return domain.Reading{}, err
	}

	if r.Source == domain.SourceSynthetic && !r.Labeled() {
		r = r.WithLabel(t.classifier.Classify(ctx, r.LevelDB))
		t.logger.Debug("labeled synthetic reading", "id", r.ID, "level_db", r.LevelDB, "label", *r.Label)
	}
	return r, nil
}
