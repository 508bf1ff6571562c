package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "soundwatch"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion
// and classification.
type Metrics struct {
	ReadingsConsumed prometheus.Counter
	ReadingsStored   prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Classification metrics.
	Classifications    *prometheus.CounterVec // labels: mode={fixed,adaptive}, label
	AdaptiveFallbacks  prometheus.Counter
	HistoryFetchErrors prometheus.Counter
	HistorySamples     prometheus.Histogram
	HistoryCache       *prometheus.CounterVec // labels: result={hit,miss}
	Relabeled          prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReadingsConsumed,
		m.ReadingsStored,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.Classifications,
		m.AdaptiveFallbacks,
		m.HistoryFetchErrors,
		m.HistorySamples,
		m.HistoryCache,
		m.Relabeled,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_consumed_total",
			Help:      "Total raw readings read from the ingestion source.",
		}),
		ReadingsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_stored_total",
			Help:      "Total readings written to the store.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total raw readings that failed to parse.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the ingestion pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of readings per extracted batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-classify-store cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Readings classified by mode and resulting label.",
		}, []string{"mode", "label"}),
		AdaptiveFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adaptive_fallbacks_total",
			Help:      "Adaptive classifications that used fixed cutoffs for lack of history.",
		}),
		HistoryFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_fetch_errors_total",
			Help:      "Failed history window fetches.",
		}),
		HistorySamples: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_samples",
			Help:      "Number of real readings in each fetched history window.",
			Buckets:   []float64{0, 10, 50, 100, 250, 500},
		}),
		HistoryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_cache_total",
			Help:      "History window cache lookups by result.",
		}, []string{"result"}),
		Relabeled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relabeled_total",
			Help:      "Real readings labeled by the background relabel pass.",
		}),
	}
}
