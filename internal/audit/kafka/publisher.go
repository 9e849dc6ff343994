// Package kafka produces the registry change feed to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"workerhub/internal/audit"
	"workerhub/internal/platform/metrics"
	"workerhub/pkg/platform/circuit"
	"workerhub/pkg/platform/sentinel"
)

// DefaultTopic receives change feed events unless configured otherwise.
const DefaultTopic = "workerhub.registry"

const (
	defaultMaxBuffered     = 10000
	defaultDeliveryTimeout = 30 * time.Second
	defaultRecordRetries   = 10
)

// Publisher produces audit events asynchronously. Publish never blocks on the
// broker: a full produce buffer fails the record at once, and records that
// cannot be delivered within the delivery timeout fail from the produce
// callback. After a run of failed deliveries the breaker opens and events are
// dropped until a probe succeeds.
type Publisher struct {
	client          *kgo.Client
	topic           string
	breaker         *circuit.Breaker
	logger          *slog.Logger
	metrics         *metrics.Metrics
	maxBuffered     int
	deliveryTimeout time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics counts delivery failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBreaker replaces the default delivery circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

// WithMaxBufferedRecords caps how many records may wait for delivery.
func WithMaxBufferedRecords(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.maxBuffered = n
		}
	}
}

// WithDeliveryTimeout bounds how long a record may wait for delivery before
// it fails.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.deliveryTimeout = d
		}
	}
}

// New connects a producer to brokers.
func New(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	p := &Publisher{
		topic:           topic,
		breaker:         circuit.New("kafka-feed"),
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxBuffered:     defaultMaxBuffered,
		deliveryTimeout: defaultDeliveryTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.MaxBufferedRecords(p.maxBuffered),
		kgo.RecordDeliveryTimeout(p.deliveryTimeout),
		kgo.RecordRetries(defaultRecordRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p.client = client
	return p, nil
}

// EnsureTopic creates the feed topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish encodes event as JSON keyed by its type and hands it to the
// producer without waiting for buffer space. It returns
// sentinel.ErrUnavailable while the breaker is open.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	if !p.breaker.Allow() {
		return fmt.Errorf("kafka feed circuit open: %w", sentinel.ErrUnavailable)
	}
	event = audit.Stamp(event)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{Key: []byte(event.Type), Value: data}
	p.client.TryProduce(ctx, record, func(r *kgo.Record, err error) {
		if err == nil {
			if _, change := p.breaker.RecordSuccess(); change.Closed {
				p.logger.Info("kafka feed recovered", "topic", r.Topic)
			}
			return
		}
		p.metrics.IncFeedPublishFailures()
		p.logger.Error("failed to produce audit event", "error", err, "topic", r.Topic, "event_id", event.ID)
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.Warn("kafka feed circuit opened", "topic", r.Topic, "breaker", p.breaker.Name())
		}
	})
	return nil
}

// Close flushes buffered records and closes the client.
func (p *Publisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
