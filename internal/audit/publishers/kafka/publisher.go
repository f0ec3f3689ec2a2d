// Package kafka ships audit events to a Kafka topic as JSON records. It
// satisfies audit.Store so it can back an audit.Publisher; listing is not
// supported, Kafka is a write-only sink here.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"consentgate/internal/audit"
	"consentgate/pkg/platform/sentinel"
)

const defaultTopic = "consentgate.audit"

type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithTopic overrides the destination topic.
func WithTopic(topic string) Option {
	return func(p *Publisher) { p.topic = topic }
}

// WithLogger installs a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// New creates a Kafka audit publisher against the given seed brokers.
func New(brokers []string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &Publisher{
		client: client,
		topic:  defaultTopic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// record is the JSON wire form of an audit event.
type record struct {
	ID               string `json:"id"`
	Timestamp        string `json:"timestamp"`
	Category         string `json:"category"`
	Action           string `json:"action"`
	Purpose          string `json:"purpose,omitempty"`
	Decision         string `json:"decision,omitempty"`
	Reason           string `json:"reason,omitempty"`
	TelemetryEventID string `json:"telemetry_event_id,omitempty"`
}

// Append produces one audit event and waits for broker acknowledgement.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(record{
		ID:               event.ID.String(),
		Timestamp:        event.Timestamp.Format(time.RFC3339Nano),
		Category:         string(event.Action.Category()),
		Action:           string(event.Action),
		Purpose:          event.Purpose,
		Decision:         event.Decision,
		Reason:           event.Reason,
		TelemetryEventID: event.TelemetryEventID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	rec := &kgo.Record{
		Topic: p.topic,
		// Key by action so records for one gate decision type stay ordered.
		Key:   []byte(event.Action),
		Value: payload,
	}

	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

// List is not supported for the Kafka sink.
func (p *Publisher) List(_ context.Context) ([]audit.Event, error) {
	return nil, fmt.Errorf("kafka audit sink: %w", sentinel.ErrUnsupported)
}

// Close flushes buffered records and shuts the client down.
func (p *Publisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("kafka audit sink closed with unflushed records", "error", err)
	}
	p.client.Close()
}

var _ audit.Store = (*Publisher)(nil)
