// Package kafka publishes run events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/segmentio/kafka-go"
)

// Publisher errors
var (
	ErrNoBrokers = errors.New("at least one broker is required")
	ErrNoTopic   = errors.New("topic is required")
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is the JSON payload of one published event.
type Message struct {
	RunID string       `json:"run_id"`
	Event domain.Event `json:"event"`
}

// Publisher implements ports.EventPublisher and ports.ReportWriter.
// Messages are keyed by channel so one channel's events stay in one partition, in order.
type Publisher struct {
	writer    messageWriter
	batchSize int
}

// PublisherOption configures the publisher.
type PublisherOption func(*Publisher)

// WithBatchSize bounds the number of messages per write call.
func WithBatchSize(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// NewPublisher creates a publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string, opts ...PublisherOption) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, ErrNoTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return newPublisher(w, opts...), nil
}

func newPublisher(w messageWriter, opts ...PublisherOption) *Publisher {
	p := &Publisher{writer: w, batchSize: 500}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends the events in order.
func (p *Publisher) Publish(ctx context.Context, runID string, events []domain.Event) error {
	batch := make([]kafka.Message, 0, min(len(events), p.batchSize))
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.WriteMessages(ctx, batch...); err != nil {
			return fmt.Errorf("kafka: write %d messages: %w", len(batch), err)
		}
		batch = batch[:0]
		return nil
	}

	for _, ev := range events {
		value, err := json.Marshal(Message{RunID: runID, Event: ev})
		if err != nil {
			return fmt.Errorf("kafka: failed to serialize event %d: %w", ev.Seq, err)
		}
		batch = append(batch, kafka.Message{
			Key:   []byte(ev.Channel),
			Value: value,
			Time:  ev.Timestamp,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(ev.Kind)},
				{Key: "run_id", Value: []byte(runID)},
			},
		})
		if len(batch) == p.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Write publishes the report's events.
func (p *Publisher) Write(ctx context.Context, report *domain.Report) error {
	return p.Publish(ctx, report.RunID, report.Events)
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
