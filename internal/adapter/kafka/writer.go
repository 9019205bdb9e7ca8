package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/cyclone-hazard/internal/config"
	"github.com/couchcryptid/cyclone-hazard/internal/domain"
	"github.com/couchcryptid/cyclone-hazard/internal/pipeline"
)

// Writer publishes run lifecycle events to a Kafka topic.
// It implements pipeline.EventSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured run events topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// runEvent is the wire form of a lifecycle event: the run metadata flattened
// alongside an event discriminator, with the final report attached once the
// run completes.
type runEvent struct {
	Event string `json:"event"`
	pipeline.RunInfo
	Report *pipeline.Report `json:"report,omitempty"`
}

// PublishRunStarted announces a new hazard run on the events topic.
func (w *Writer) PublishRunStarted(ctx context.Context, info pipeline.RunInfo) error {
	msg, err := serializeToMessage("run_started", info, nil)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

// PublishRunCompleted publishes the run's final report.
func (w *Writer) PublishRunCompleted(ctx context.Context, info pipeline.RunInfo, report pipeline.Report) error {
	msg, err := serializeToMessage("run_completed", info, &report)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one lifecycle event into a Kafka message keyed
// by run ID, so all events of a run land on the same partition in order.
func serializeToMessage(event string, info pipeline.RunInfo, report *pipeline.Report) (kafkago.Message, error) {
	data, err := json.Marshal(runEvent{Event: event, RunInfo: info, Report: report})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("kafka: serialize %s event: %w", event, err)
	}
	return kafkago.Message{
		Key:   []byte(info.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event)},
			{Key: "produced_at", Value: []byte(domain.Now().Format(time.RFC3339))},
		},
	}, nil
}
