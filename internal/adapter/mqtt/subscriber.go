package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

const subscribeQoS = 1

// Subscriber buffers messages from a device topic pattern such as
// sensor/+/sound and hands them out in batches.
// It implements pipeline.BatchExtractor.
type Subscriber struct {
	client        paho.Client
	topic         string
	messages      chan domain.RawReading
	flushInterval time.Duration
	clock         clockwork.Clock
	logger        *slog.Logger
}

// NewSubscriber creates a Subscriber holding at most bufferSize undelivered
// messages. Messages that arrive while the buffer is full are dropped.
func NewSubscriber(client paho.Client, topic string, bufferSize int, flushInterval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Subscriber {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Subscriber{
		client:        client,
		topic:         topic,
		messages:      make(chan domain.RawReading, bufferSize),
		flushInterval: flushInterval,
		clock:         clock,
		logger:        logger,
	}
}

// Subscribe registers the message handler with the broker.
func (s *Subscriber) Subscribe() error {
	token := s.client.Subscribe(s.topic, subscribeQoS, s.handleMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
	}
	s.logger.Info("subscribed to device topic", "topic", s.topic)
	return nil
}

func (s *Subscriber) handleMessage(_ paho.Client, msg paho.Message) {
	deviceID := extractDeviceID(msg.Topic())
	if deviceID == "" {
		s.logger.Warn("could not extract device id from topic", "topic", msg.Topic())
		return
	}

	raw := domain.RawReading{
		Key:       []byte(deviceID),
		Value:     msg.Payload(),
		Headers:   map[string]string{domain.HeaderLocation: deviceID},
		Topic:     msg.Topic(),
		Timestamp: s.clock.Now(),
	}

	select {
	case s.messages <- raw:
	default:
		s.logger.Warn("message buffer full, dropping reading", "device", deviceID)
	}
}

// ExtractBatch waits up to the flush interval for the first message and then
// drains whatever else is buffered, up to batchSize.
func (s *Subscriber) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawReading, error) {
	batch := make([]domain.RawReading, 0, batchSize)

	timer := s.clock.NewTimer(s.flushInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.Chan():
		return batch, nil
	case raw := <-s.messages:
		batch = append(batch, raw)
	}

	for len(batch) < batchSize {
		select {
		case raw := <-s.messages:
			batch = append(batch, raw)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Close unsubscribes from the device topic.
func (s *Subscriber) Close() error {
	token := s.client.Unsubscribe(s.topic)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("unsubscribe timed out")
	}
	return token.Error()
}

// extractDeviceID returns the second segment of topics like sensor/{device_id}/sound.
func extractDeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}
