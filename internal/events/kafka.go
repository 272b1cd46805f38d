// Package events exports committed stage transitions to Kafka so downstream
// systems (reporting, ERP sync) can follow the pipeline without polling the
// database. Export is best-effort and never blocks or fails a transition.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

const defaultTopic = "order-pipeline.stage-changes"

// Exporter publishes stage change events. Implementations must be safe for
// concurrent use.
type Exporter interface {
	ExportStageChange(ctx context.Context, event domain.StageChangedEvent) error
	Close() error
}

// KafkaExporter writes stage change events to a Kafka topic, keyed by order
// ID so per-order ordering is preserved.
type KafkaExporter struct {
	writer *kafka.Writer
}

var _ Exporter = (*KafkaExporter)(nil)

func NewKafkaExporter(brokers []string, topic string) (*KafkaExporter, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		topic = defaultTopic
	}

	return &KafkaExporter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}, nil
}

func (e *KafkaExporter) ExportStageChange(ctx context.Context, event domain.StageChangedEvent) error {
	if e == nil || e.writer == nil {
		return fmt.Errorf("kafka exporter is not initialized")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stage change event: %w", err)
	}

	err = e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write stage change event: %w", err)
	}

	return nil
}

func (e *KafkaExporter) Close() error {
	if e == nil || e.writer == nil {
		return nil
	}
	return e.writer.Close()
}

// NopExporter is used when no Kafka brokers are configured.
type NopExporter struct{}

var _ Exporter = NopExporter{}

func (NopExporter) ExportStageChange(context.Context, domain.StageChangedEvent) error { return nil }

func (NopExporter) Close() error { return nil }
