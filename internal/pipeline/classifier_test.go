package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
	"github.com/soundwatch/noise-monitor-service/internal/observability"
	"github.com/soundwatch/noise-monitor-service/internal/pipeline"
)

type fakeHistory struct {
	levels []float64
	err    error
	limits []int
}

func (f *fakeHistory) RecentRealLevels(_ context.Context, limit int) ([]float64, error) {
	f.limits = append(f.limits, limit)
	return f.levels, f.err
}

// loudRoom clusters onto 60, 70, 80, 90 and 100 dB.
func loudRoom() []float64 {
	var h []float64
	for _, c := range []float64{60, 70, 80, 90, 100} {
		h = append(h, c-1, c, c+1)
	}
	return h
}

func TestClassifier_FixedIgnoresHistory(t *testing.T) {
	history := &fakeHistory{levels: loudRoom()}
	metrics := observability.NewMetricsForTesting()
	c := pipeline.NewClassifier(domain.ModeFixed, history, slog.Default(), metrics)

	assert.Equal(t, domain.LabelLoud, c.Classify(context.Background(), 61))
	assert.Empty(t, history.limits, "fixed mode never fetches history")
	assert.Equal(t, domain.ModeFixed, c.Mode())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Classifications.WithLabelValues("fixed", "loud")), 1e-9)
}

func TestClassifier_AdaptiveUsesHistoryWindow(t *testing.T) {
	history := &fakeHistory{levels: loudRoom()}
	metrics := observability.NewMetricsForTesting()
	c := pipeline.NewClassifier(domain.ModeAdaptive, history, slog.Default(), metrics)

	assert.Equal(t, domain.LabelSilent, c.Classify(context.Background(), 61))
	assert.Equal(t, domain.LabelVeryLoud, c.Classify(context.Background(), 99))
	assert.Equal(t, []int{domain.HistoryWindow, domain.HistoryWindow}, history.limits, "one fetch per call")
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.AdaptiveFallbacks), 1e-9)
}

func TestClassifier_AdaptiveFallsBackOnShortHistory(t *testing.T) {
	history := &fakeHistory{levels: []float64{90, 91, 92}}
	metrics := observability.NewMetricsForTesting()
	c := pipeline.NewClassifier(domain.ModeAdaptive, history, slog.Default(), metrics)

	assert.Equal(t, domain.ClassifyFixed(61), c.Classify(context.Background(), 61))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.AdaptiveFallbacks), 1e-9)
}

func TestClassifier_AdaptiveFallsBackOnFetchError(t *testing.T) {
	history := &fakeHistory{levels: loudRoom(), err: errors.New("connection refused")}
	metrics := observability.NewMetricsForTesting()
	c := pipeline.NewClassifier(domain.ModeAdaptive, history, slog.Default(), metrics)

	assert.Equal(t, domain.LabelLoud, c.Classify(context.Background(), 61))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.HistoryFetchErrors), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.AdaptiveFallbacks), 1e-9)
}

func TestClassifier_AdaptiveWithoutStore(t *testing.T) {
	c := pipeline.NewClassifier(domain.ModeAdaptive, nil, slog.Default(), observability.NewMetricsForTesting())
	assert.Equal(t, domain.LabelQuiet, c.Classify(context.Background(), 30))
}
