package domain

import (
	"math"
	"math/rand/v2"
	"time"
)

// Synthetic level distribution: a steady background with occasional spikes.
const (
	backgroundMinDB = 30.0
	backgroundMaxDB = 45.0
	spikeMinDB      = 50.0
	spikeMaxDB      = 80.0
	spikeChance     = 0.2
)

// FakeDecibels draws a plausible level rounded to 0.1 dB.
func FakeDecibels(r *rand.Rand) float64 {
	level := uniform(r, backgroundMinDB, backgroundMaxDB)
	if r.Float64() < spikeChance {
		level = uniform(r, spikeMinDB, spikeMaxDB)
	}
	return math.Round(level*10) / 10
}

// NewSyntheticReading builds an unlabeled synthetic reading taken at now.
func NewSyntheticReading(r *rand.Rand, location string, now time.Time) Reading {
	if location == "" {
		location = DefaultLocation
	}
	ts := EpochSeconds(now)
	level := FakeDecibels(r)
	return Reading{
		ID:        ReadingID(location, ts, level),
		Timestamp: ts,
		LevelDB:   level,
		Location:  location,
		Source:    SourceSynthetic,
	}
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
