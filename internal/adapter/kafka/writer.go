// Package kafka publishes analysis results to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/aqi-correlation/internal/config"
	"github.com/couchcryptid/aqi-correlation/internal/pipeline"
)

// Writer produces one message per completed analysis.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured results topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishResult serializes the result summary and publishes it, keyed by the
// dataset source so consumers can compact per dataset.
func (w *Writer) PublishResult(ctx context.Context, res *pipeline.Result) error {
	msg, err := serializeToMessage(res)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write result message: %w", err)
	}
	w.logger.Debug("result published", "topic", w.writer.Topic, "source", res.Source)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a result summary into a Kafka message.
func serializeToMessage(res *pipeline.Result) (kafkago.Message, error) {
	data, err := json.Marshal(res.Summary())
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(res.Source),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "generated_at", Value: []byte(res.GeneratedAt.UTC().Format(time.RFC3339))},
			{Key: "columns", Value: []byte(strconv.Itoa(len(res.Columns)))},
			{Key: "rows", Value: []byte(strconv.Itoa(res.Rows))},
		},
	}, nil
}
