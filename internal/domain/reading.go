package domain

import (
	"context"
	"time"
)

// Source distinguishes device measurements from generated test data.
type Source string

const (
	SourceReal      Source = "real"
	SourceSynthetic Source = "synthetic"
)

// Mode selects the classification strategy.
type Mode string

const (
	ModeFixed    Mode = "fixed"
	ModeAdaptive Mode = "adaptive"
)

// ParseMode validates a classifier mode name.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeFixed, ModeAdaptive:
		return Mode(s), true
	}
	return "", false
}

// Reading is a single timestamped sound-level measurement.
// Label is nil until the reading is classified and is set at most once.
type Reading struct {
	ID        string  `json:"id" bson:"_id"`
	Timestamp float64 `json:"timestamp" bson:"timestamp"` // seconds since epoch
	LevelDB   float64 `json:"level_db" bson:"level_db"`
	Label     *Label  `json:"label" bson:"label"`
	Location  string  `json:"location" bson:"location"`
	Source    Source  `json:"source" bson:"source"`
}

// Labeled reports whether the reading carries a label.
func (r Reading) Labeled() bool { return r.Label != nil }

// WithLabel returns a copy of r labeled l.
func (r Reading) WithLabel(l Label) Reading {
	r.Label = &l
	return r
}

// Time returns the reading timestamp as a time.Time in UTC.
func (r Reading) Time() time.Time {
	sec := int64(r.Timestamp)
	nsec := int64((r.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// EpochSeconds converts t to fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// RawReading is an unparsed message from an ingestion source.
type RawReading struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// BandSummary aggregates readings that share a label. Unlabeled readings are
// reported with an empty label.
type BandSummary struct {
	Label      Label   `json:"label"`
	Count      int64   `json:"count"`
	AvgLevelDB float64 `json:"avg_level_db"`
}

// Summary is the dashboard view of readings since a point in time.
type Summary struct {
	Since float64       `json:"since"`
	Total int64         `json:"total"`
	Bands []BandSummary `json:"bands"`
}
