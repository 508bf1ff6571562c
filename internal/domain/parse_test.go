package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLocation  = "lab-3"
	testReadingID = "reading-123"
)

func TestParseRawReading(t *testing.T) {
	msgTime := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	t.Run("bare decimal payload", func(t *testing.T) {
		raw := RawReading{
			Value:     []byte(" 42.5\n"),
			Headers:   map[string]string{HeaderLocation: testLocation},
			Timestamp: msgTime,
		}
		r, err := ParseRawReading(raw)

		require.NoError(t, err)
		assert.Equal(t, 42.5, r.LevelDB)
		assert.Equal(t, testLocation, r.Location)
		assert.Equal(t, SourceReal, r.Source)
		assert.Equal(t, EpochSeconds(msgTime), r.Timestamp)
		assert.Nil(t, r.Label)
		assert.NotEmpty(t, r.ID)
	})

	t.Run("json payload", func(t *testing.T) {
		raw := RawReading{
			Value:   []byte(`{"id":"reading-123","timestamp":1700000000.5,"level_db":61.2,"location":"hall","source":"synthetic","label":"loud"}`),
			Headers: map[string]string{HeaderLocation: testLocation},
		}
		r, err := ParseRawReading(raw)

		require.NoError(t, err)
		assert.Equal(t, testReadingID, r.ID)
		assert.Equal(t, 1700000000.5, r.Timestamp)
		assert.Equal(t, 61.2, r.LevelDB)
		assert.Equal(t, "hall", r.Location, "payload location wins over header")
		assert.Equal(t, SourceSynthetic, r.Source)
		require.NotNil(t, r.Label)
		assert.Equal(t, LabelLoud, *r.Label)
	})

	t.Run("decibels alias", func(t *testing.T) {
		r, err := ParseRawReading(RawReading{Value: []byte(`{"decibels":33.3}`), Timestamp: msgTime})
		require.NoError(t, err)
		assert.Equal(t, 33.3, r.LevelDB)
		assert.Equal(t, DefaultLocation, r.Location)
	})

	t.Run("invalid label is dropped", func(t *testing.T) {
		r, err := ParseRawReading(RawReading{Value: []byte(`{"level_db":40,"label":"deafening"}`), Timestamp: msgTime})
		require.NoError(t, err)
		assert.Nil(t, r.Label)
	})

	t.Run("source header", func(t *testing.T) {
		r, err := ParseRawReading(RawReading{
			Value:     []byte("40"),
			Headers:   map[string]string{HeaderSource: "synthetic"},
			Timestamp: msgTime,
		})
		require.NoError(t, err)
		assert.Equal(t, SourceSynthetic, r.Source)
	})

	t.Run("missing level", func(t *testing.T) {
		_, err := ParseRawReading(RawReading{Value: []byte(`{"location":"hall"}`)})
		require.ErrorIs(t, err, ErrInvalidLevel)
	})

	t.Run("non-finite level", func(t *testing.T) {
		_, err := ParseRawReading(RawReading{Value: []byte("NaN")})
		require.ErrorIs(t, err, ErrInvalidLevel)

		_, err = ParseRawReading(RawReading{Value: []byte("+Inf")})
		require.ErrorIs(t, err, ErrInvalidLevel)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawReading(RawReading{Value: []byte("{not json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse raw reading")
	})
}

func TestParseRawReading_ClockFallback(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	SetClock(fakeClock)
	t.Cleanup(func() { SetClock(nil) })

	r, err := ParseRawReading(RawReading{Value: []byte("50")})
	require.NoError(t, err)
	assert.Equal(t, EpochSeconds(fakeClock.Now()), r.Timestamp)
}

func TestReadingID_Deterministic(t *testing.T) {
	a := ReadingID(testLocation, 1700000000.25, 41.7)
	b := ReadingID(testLocation, 1700000000.25, 41.7)
	c := ReadingID(testLocation, 1700000000.25, 41.8)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestReading_WithLabelAndTime(t *testing.T) {
	r := Reading{Timestamp: 1700000000.5}
	assert.False(t, r.Labeled())

	labeled := r.WithLabel(LabelQuiet)
	assert.True(t, labeled.Labeled())
	assert.False(t, r.Labeled(), "original is unchanged")
	assert.Equal(t, time.Unix(1700000000, 500_000_000).UTC(), r.Time())
}
