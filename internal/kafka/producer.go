package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/UmarSaeed090/sensors-backend/internal/config"
	"github.com/UmarSaeed090/sensors-backend/internal/logger"
	"github.com/UmarSaeed090/sensors-backend/internal/metrics"
	"github.com/UmarSaeed090/sensors-backend/internal/models"
)

// Producer errors
var (
	ErrProducerClosed  = errors.New("producer is closed")
	ErrSerializeFailed = errors.New("failed to serialize alert event")
)

// AlertPublisher exports alert events to downstream consumers
type AlertPublisher interface {
	PublishAlert(ctx context.Context, event *models.AlertEvent) error
	Close() error
}

// Producer publishes alert events to a Kafka topic, keyed by tag number so
// each device's alerts stay ordered within a partition.
type Producer struct {
	cfg    config.KafkaConfig
	writer *kafka.Writer
	closed atomic.Bool

	messagesSent   atomic.Uint64
	messagesFailed atomic.Uint64
}

// NewProducer creates a Kafka producer for the alert event stream
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // Partition by key
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  cfg.MaxRetries + 1,
		Async:        false,
	}

	return &Producer{cfg: cfg, writer: writer}, nil
}

// PublishAlert sends one alert event with bounded retries
func (p *Producer) PublishAlert(ctx context.Context, event *models.AlertEvent) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed.Add(1)
		metrics.AlertExportTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.TagNumber),
		Value: data,
		Headers: []kafka.Header{
			{Key: "tag_number", Value: []byte(event.TagNumber)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
		Time: event.TriggeredAt,
	}

	if err := p.publishWithRetry(ctx, msg); err != nil {
		p.messagesFailed.Add(1)
		metrics.AlertExportTotal.WithLabelValues("failed").Inc()
		return err
	}

	p.messagesSent.Add(1)
	metrics.AlertExportTotal.WithLabelValues("success").Inc()
	return nil
}

func (p *Producer) publishWithRetry(ctx context.Context, msg kafka.Message) error {
	log := logger.WithComponent("kafka_producer")
	var lastErr error
	backoff := p.cfg.RetryBackoff

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying alert publish")

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}

		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

// Stats returns producer counters
func (p *Producer) Stats() Stats {
	return Stats{
		MessagesSent:   p.messagesSent.Load(),
		MessagesFailed: p.messagesFailed.Load(),
	}
}

// Stats holds producer counters
type Stats struct {
	MessagesSent   uint64 `json:"messages_sent"`
	MessagesFailed uint64 `json:"messages_failed"`
}

// Close closes the underlying writer
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
