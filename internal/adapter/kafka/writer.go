package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

// Writer publishes persisted readings to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:  kafkago.TCP(brokers...),
		Topic: topic,
		// Keyed by station and timestamp so re-ingested readings land on one partition.
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishReadings writes one message per reading in a single WriteMessages call.
func (w *Writer) PublishReadings(ctx context.Context, variant domain.SchemaVariant, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	ingestedAt := domain.Now().UTC()
	msgs := make([]kafkago.Message, len(readings))
	for i := range readings {
		msg, err := serializeReading(readings[i], variant, ingestedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d readings: %w", len(msgs), err)
	}
	w.logger.Debug("readings published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeReading marshals a Reading into a Kafka message.
func serializeReading(r domain.Reading, variant domain.SchemaVariant, ingestedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading %s: %w", r.Key(), err)
	}
	return kafkago.Message{
		Key:   []byte(r.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "variant", Value: []byte(variant.String())},
			{Key: "ingested_at", Value: []byte(ingestedAt.Format(time.RFC3339))},
		},
	}, nil
}
