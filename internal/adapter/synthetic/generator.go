// Package synthetic generates fake sound readings for environments without a device.
package synthetic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

// Generator emits one synthetic reading immediately and then one per interval.
// It implements pipeline.BatchExtractor. It is not safe for concurrent use.
type Generator struct {
	rng      *rand.Rand
	clock    clockwork.Clock
	interval time.Duration
	location string
	logger   *slog.Logger
	ticker   clockwork.Ticker
}

// NewGenerator creates a Generator. A nil clock uses real time.
func NewGenerator(rng *rand.Rand, clock clockwork.Clock, interval time.Duration, location string, logger *slog.Logger) *Generator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if location == "" {
		location = domain.DefaultLocation
	}
	return &Generator{
		rng:      rng,
		clock:    clock,
		interval: interval,
		location: location,
		logger:   logger,
	}
}

// NewSeededRand returns a deterministic generator source for seed.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// ExtractBatch returns a single reading, waiting for the next tick after the
// first call. batchSize is ignored.
func (g *Generator) ExtractBatch(ctx context.Context, _ int) ([]domain.RawReading, error) {
	if g.ticker == nil {
		g.ticker = g.clock.NewTicker(g.interval)
	} else {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-g.ticker.Chan():
		}
	}

	raw, err := g.next()
	if err != nil {
		return nil, err
	}
	return []domain.RawReading{raw}, nil
}

// Reading builds one synthetic reading stamped with the generator clock.
func (g *Generator) Reading() domain.Reading {
	return domain.NewSyntheticReading(g.rng, g.location, g.clock.Now())
}

func (g *Generator) next() (domain.RawReading, error) {
	r := g.Reading()
	value, err := json.Marshal(r)
	if err != nil {
		return domain.RawReading{}, fmt.Errorf("encode synthetic reading: %w", err)
	}
	g.logger.Debug("generated synthetic reading", "level_db", r.LevelDB, "location", r.Location)
	return domain.RawReading{
		Key:       []byte(r.Location),
		Value:     value,
		Headers:   map[string]string{domain.HeaderSource: string(domain.SourceSynthetic)},
		Topic:     "synthetic",
		Timestamp: r.Time(),
	}, nil
}

// Close stops the interval ticker.
func (g *Generator) Close() {
	if g.ticker != nil {
		g.ticker.Stop()
	}
}
