package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces weather messages to a Kafka topic. It implements monitor.Sink.
type Writer struct {
	writer messageWriter
	units  domain.Units
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, units domain.Units, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, units: units, logger: logger}
}

// Publish sends a cleaned batch in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(obs))
	for i := range obs {
		msg, err := w.serialize(obs[i].City, obs[i].ObservedAt, obs[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish batch: %w", err)
	}
	w.logger.Debug("batch published", "messages", len(msgs))
	return nil
}

// Append publishes one monitor record.
func (w *Writer) Append(ctx context.Context, rec domain.WeatherRecord) error {
	msg, err := w.serialize(rec.City, rec.ObservedAt, rec)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serialize marshals v into a message keyed by city, so that every
// observation of a city lands on the same partition.
func (w *Writer) serialize(city string, observedAt time.Time, v any) (kafkago.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(city),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "units", Value: []byte(w.units)},
			{Key: "observed_at", Value: []byte(observedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
