package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/soundwatch/noise-monitor-service/internal/config"
	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

const headerLabel = "label"

// Writer produces messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes readings to the sink topic in a single
// WriteMessages call. Messages are keyed by location so each location's
// readings stay ordered within one partition.
func (w *Writer) LoadBatch(ctx context.Context, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(readings))
	for i := range readings {
		msg, err := serializeToMessage(readings[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish readings: %w", err)
	}
	w.logger.Debug("published readings", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Reading into a Kafka message. The label header
// is only present on labeled readings.
func serializeToMessage(r domain.Reading) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading: %w", err)
	}
	headers := []kafkago.Header{
		{Key: domain.HeaderSource, Value: []byte(r.Source)},
		{Key: domain.HeaderLocation, Value: []byte(r.Location)},
	}
	if r.Labeled() {
		headers = append(headers, kafkago.Header{Key: headerLabel, Value: []byte(*r.Label)})
	}
	return kafkago.Message{
		Key:     []byte(r.Location),
		Value:   data,
		Headers: headers,
		Time:    r.Time(),
	}, nil
}
