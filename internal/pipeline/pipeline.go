package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
	"github.com/soundwatch/noise-monitor-service/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw readings from an ingestion source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawReading, error)
}

// Transformer parses and, where appropriate, labels a raw reading.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawReading) (domain.Reading, error)
}

// BatchLoader writes readings to their destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, readings []domain.Reading) error
}

// Pipeline moves readings from an ingestion source through the transformer
// into the store.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has stored at least one reading.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.Ready() {
		return errors.New("pipeline has not stored any readings yet")
	}
	return nil
}

// Ready reports whether at least one batch has been stored.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Run processes batches until the context is cancelled. Source and store
// failures are retried with exponential backoff; Run only returns on shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	delay := initialBackoff
	for ctx.Err() == nil {
		if err := p.runBatch(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error("batch failed", "error", err, "retry_in", delay)
			if !retry.SleepWithContext(ctx, delay) {
				break
			}
			delay = retry.NextBackoff(delay, maxBackoff)
			continue
		}
		delay = initialBackoff
	}

	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// runBatch extracts one batch, transforms it, stores the successes and then
// acknowledges every reading that was either stored or rejected as unparseable.
// Readings in a batch that failed to store are left unacknowledged.
func (p *Pipeline) runBatch(ctx context.Context) error {
	start := time.Now()

	raws, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(raws) == 0 {
		return nil
	}
	p.metrics.ReadingsConsumed.Add(float64(len(raws)))
	p.metrics.BatchSize.Observe(float64(len(raws)))

	readings := make([]domain.Reading, 0, len(raws))
	stored := make([]domain.RawReading, 0, len(raws))
	for _, raw := range raws {
		r, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("transform failed, skipping reading",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commit(ctx, raw)
			continue
		}
		readings = append(readings, r)
		stored = append(stored, raw)
	}
	if len(readings) == 0 {
		return nil
	}

	if err := p.loader.LoadBatch(ctx, readings); err != nil {
		return err
	}
	p.metrics.ReadingsStored.Add(float64(len(readings)))
	for _, raw := range stored {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return nil
}

// commit acknowledges the raw reading if its source supports it.
func (p *Pipeline) commit(ctx context.Context, raw domain.RawReading) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
