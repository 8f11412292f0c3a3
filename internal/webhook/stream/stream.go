// Package stream mirrors delivery log rows to a Kafka topic so downstream
// consumers (billing, anomaly detection, tenant-facing dashboards) can
// follow webhook traffic without polling the database.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"signet/internal/webhook/models"
)

const inboxSize = 256

// Publisher produces delivery attempt records, keyed by subscription id so
// one subscription's attempts stay ordered within a partition. Records flow
// through an inbox channel: Publish never blocks the delivery path, and a
// full inbox drops the record rather than stall a dispatcher goroutine.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	inbox  chan *models.DeliveryAttempt
}

// New connects a Publisher to the given brokers. Empty brokers mean the
// stream is not configured; callers get nil and skip wiring it.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		client: client,
		topic:  topic,
		logger: logger,
		inbox:  make(chan *models.DeliveryAttempt, inboxSize),
	}, nil
}

// Publish enqueues one attempt record. Non-blocking: when the inbox is full
// the record is dropped and counted as a log line, never as back-pressure
// on delivery.
func (p *Publisher) Publish(ctx context.Context, a *models.DeliveryAttempt) {
	select {
	case p.inbox <- a:
	default:
		p.logger.WarnContext(ctx, "delivery stream inbox full, dropping record",
			"subscription_id", a.SubscriptionID,
			"attempt_id", a.ID)
	}
}

// Run drains the inbox and produces records until ctx is cancelled. Produce
// failures are logged and dropped; the stream is an observer, not a
// participant, of the delivery pipeline.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-p.inbox:
			p.produce(ctx, a)
		}
	}
}

func (p *Publisher) produce(ctx context.Context, a *models.DeliveryAttempt) {
	value, err := json.Marshal(a)
	if err != nil {
		p.logger.ErrorContext(ctx, "delivery stream marshal failed", "error", err)
		return
	}

	record := &kgo.Record{
		Key:   []byte(a.SubscriptionID.String()),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.ErrorContext(ctx, "delivery stream produce failed",
				"subscription_id", a.SubscriptionID,
				"attempt_id", a.ID,
				"error", err)
		}
	})
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("delivery stream flush failed", "error", err)
	}
	p.client.Close()
}
