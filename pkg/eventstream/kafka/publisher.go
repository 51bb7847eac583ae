// Package kafka publishes canvas events to an Apache Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/weave/pkg/eventstream"
)

// Config holds the Kafka publisher settings.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the topic canvas events are written to.
	Topic string

	// ClientID identifies this producer to the cluster.
	ClientID string

	// BatchTimeout bounds how long the writer buffers before flushing.
	BatchTimeout time.Duration

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Publisher implements eventstream.Publisher on a kafka.Writer.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka-backed canvas event publisher.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	batchTimeout := c.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 100 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	if c.ClientID != "" {
		writer.Transport = &kafka.Transport{ClientID: c.ClientID}
	}

	return &Publisher{writer: writer, logger: logger}, nil
}

// Publish writes one canvas event to the topic. Events for the same
// session share a message key, so per-session ordering survives
// partitioning.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.CanvasEvent) error {
	if event == nil {
		return eventstream.ErrNilCanvasEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling canvas event: %w", err)
	}

	key := event.SessionID
	if key == "" {
		key = event.EventType
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publishing canvas event: %w", err)
	}

	p.logger.Debug("canvas event published",
		zap.String("event_type", event.EventType),
		zap.String("event_id", event.EventID),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
