package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Header keys understood by ParseRawReading.
const (
	HeaderLocation = "location"
	HeaderSource   = "source"
)

// DefaultLocation is used when neither the payload nor the headers name one.
const DefaultLocation = "default"

// readingNamespace scopes derived reading IDs.
var readingNamespace = uuid.MustParse("6f1c1f8e-5a3b-4c1e-9d0a-2b7e4f3c8a10")

// ErrInvalidLevel is returned for payloads whose level is missing or not finite.
var ErrInvalidLevel = errors.New("invalid sound level")

// rawPayload is the JSON shape devices and upstream services publish.
// Decibels is accepted as an alias for LevelDB.
type rawPayload struct {
	ID        string   `json:"id"`
	Timestamp *float64 `json:"timestamp"`
	LevelDB   *float64 `json:"level_db"`
	Decibels  *float64 `json:"decibels"`
	Label     string   `json:"label"`
	Location  string   `json:"location"`
	Source    string   `json:"source"`
}

// ParseRawReading decodes a raw message into a Reading.
//
// The payload is either a bare decimal level ("42.5") or a JSON object.
// Location and source fall back to message headers. The timestamp falls back to
// the message time and then to the package clock. A missing ID is derived from
// location, timestamp and level so replays produce the same ID.
func ParseRawReading(raw RawReading) (Reading, error) {
	var p rawPayload
	body := strings.TrimSpace(string(raw.Value))
	if v, err := strconv.ParseFloat(body, 64); err == nil {
		p.LevelDB = &v
	} else if err := json.Unmarshal(raw.Value, &p); err != nil {
		return Reading{}, fmt.Errorf("parse raw reading: %w", err)
	}

	level, err := payloadLevel(p)
	if err != nil {
		return Reading{}, err
	}

	r := Reading{
		ID:       p.ID,
		LevelDB:  level,
		Location: firstNonEmpty(p.Location, raw.Headers[HeaderLocation], DefaultLocation),
		Source:   parseSource(firstNonEmpty(p.Source, raw.Headers[HeaderSource])),
	}

	switch {
	case p.Timestamp != nil && *p.Timestamp > 0:
		r.Timestamp = *p.Timestamp
	case !raw.Timestamp.IsZero():
		r.Timestamp = EpochSeconds(raw.Timestamp)
	default:
		r.Timestamp = EpochSeconds(clock.Now())
	}

	if l, ok := ParseLabel(p.Label); ok {
		r.Label = &l
	}
	if r.ID == "" {
		r.ID = ReadingID(r.Location, r.Timestamp, r.LevelDB)
	}
	return r, nil
}

// ReadingID derives a deterministic ID for a reading.
func ReadingID(location string, timestamp, level float64) string {
	key := fmt.Sprintf("%s|%.6f|%.2f", location, timestamp, level)
	return uuid.NewSHA1(readingNamespace, []byte(key)).String()
}

func payloadLevel(p rawPayload) (float64, error) {
	v := p.LevelDB
	if v == nil {
		v = p.Decibels
	}
	if v == nil {
		return 0, fmt.Errorf("%w: missing level_db", ErrInvalidLevel)
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidLevel, *v)
	}
	return *v, nil
}

func parseSource(s string) Source {
	if Source(strings.ToLower(s)) == SourceSynthetic {
		return SourceSynthetic
	}
	return SourceReal
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
