package mqtt

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return subscribeQoS }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newTestSubscriber(bufferSize int, clock clockwork.Clock) *Subscriber {
	return NewSubscriber(nil, "sensor/+/sound", bufferSize, time.Second, clock, slog.Default())
}

func TestExtractDeviceID(t *testing.T) {
	assert.Equal(t, "esp32-kitchen", extractDeviceID("sensor/esp32-kitchen/sound"))
	assert.Empty(t, extractDeviceID("sensor"))
	assert.Empty(t, extractDeviceID("sensor/only"))
}

func TestHandleMessage_BuffersRawReading(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s := newTestSubscriber(4, clock)

	s.handleMessage(nil, fakeMessage{topic: "sensor/esp32-kitchen/sound", payload: []byte("47.3")})

	batch, err := s.ExtractBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, "esp32-kitchen", raw.Headers[domain.HeaderLocation])
	assert.Equal(t, clock.Now(), raw.Timestamp)
	assert.Nil(t, raw.Commit)

	r, err := domain.ParseRawReading(raw)
	require.NoError(t, err)
	assert.Equal(t, "esp32-kitchen", r.Location)
	assert.Equal(t, domain.SourceReal, r.Source)
	assert.InDelta(t, 47.3, r.LevelDB, 1e-9)
	assert.InDelta(t, domain.EpochSeconds(clock.Now()), r.Timestamp, 1e-6)
}

func TestHandleMessage_DropsWhenFull(t *testing.T) {
	s := newTestSubscriber(2, clockwork.NewFakeClock())
	for range 5 {
		s.handleMessage(nil, fakeMessage{topic: "sensor/a/sound", payload: []byte("40")})
	}
	assert.Len(t, s.messages, 2)
}

func TestHandleMessage_IgnoresTopicWithoutDevice(t *testing.T) {
	s := newTestSubscriber(2, clockwork.NewFakeClock())
	s.handleMessage(nil, fakeMessage{topic: "sound", payload: []byte("40")})
	assert.Empty(t, s.messages)
}

func TestExtractBatch_RespectsBatchSize(t *testing.T) {
	s := newTestSubscriber(10, clockwork.NewFakeClock())
	for range 5 {
		s.handleMessage(nil, fakeMessage{topic: "sensor/a/sound", payload: []byte("40")})
	}

	batch, err := s.ExtractBatch(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, batch, 3)

	batch, err = s.ExtractBatch(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestExtractBatch_EmptyAfterFlushInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestSubscriber(1, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		batch []domain.RawReading
		err   error
	}
	done := make(chan result, 1)
	go func() {
		batch, err := s.ExtractBatch(ctx, 10)
		done <- result{batch, err}
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	res := <-done
	require.NoError(t, res.err)
	assert.Empty(t, res.batch)
}

func TestExtractBatch_Cancelled(t *testing.T) {
	s := newTestSubscriber(1, clockwork.NewFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ExtractBatch(ctx, 10)
	require.ErrorIs(t, err, context.Canceled)
}
