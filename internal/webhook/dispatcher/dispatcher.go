// Package dispatcher fans a document lifecycle event out to every matching
// webhook subscription, with signing, bounded retry, and an append-only
// delivery log.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"signet/internal/platform/config"
	"signet/internal/webhook/metrics"
	"signet/internal/webhook/models"
	"signet/internal/webhook/store/attempt"
	"signet/internal/webhook/store/subscription"
	id "signet/pkg/domain"
)

// Payload is the canonical wire body. Every subscription matched by one
// SendEvent call receives these exact bytes; the signature covers them.
type Payload struct {
	Event      string  `json:"event"`
	DocumentID string  `json:"document_id"`
	Status     string  `json:"status"`
	SignedBy   *string `json:"signed_by"`
	Timestamp  string  `json:"timestamp"`
}

// AttemptPublisher mirrors delivery log rows to an external sink.
type AttemptPublisher interface {
	Publish(ctx context.Context, a *models.DeliveryAttempt)
}

// Sleeper waits out the retry backoff; injectable so tests don't.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Dispatcher delivers events to subscribed endpoints. Each matched
// subscription gets its own concurrent delivery cycle; one slow endpoint
// never delays another.
type Dispatcher struct {
	subs        subscription.Store
	attempts    attempt.Store
	client      *http.Client
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	sleep       Sleeper
	publisher   AttemptPublisher
	maxAttempts int
}

type Option func(d *Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

func WithSleeper(sleep Sleeper) Option {
	return func(d *Dispatcher) {
		d.sleep = sleep
	}
}

func WithAttemptPublisher(p AttemptPublisher) Option {
	return func(d *Dispatcher) {
		d.publisher = p
	}
}

// New constructs a Dispatcher.
func New(subs subscription.Store, attempts attempt.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subs:        subs,
		attempts:    attempts,
		client:      &http.Client{Timeout: config.DeliveryTimeout},
		logger:      slog.Default(),
		tracer:      otel.Tracer("signet/webhook"),
		sleep:       defaultSleep,
		maxAttempts: config.MaxDeliveryAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendEvent fans one event occurrence out to every subscription of the
// tenant that covers the event type. It blocks until every matched
// subscription's delivery cycle, including its log writes, has finished.
//
// Delivery failures are recorded and logged, never returned: a broken
// receiver endpoint is the receiver's problem. Subscription lookup failures
// are logged and swallowed the same way so a registry outage cannot fail
// the document mutation that triggered the event.
func (d *Dispatcher) SendEvent(ctx context.Context, tenantID id.TenantID, event models.EventType, documentID, status, signedBy string) {
	ctx, span := d.tracer.Start(ctx, "webhook.send_event", trace.WithAttributes(
		attribute.String("tenant.id", tenantID.String()),
		attribute.String("event.type", string(event)),
		attribute.String("document.id", documentID),
	))
	defer span.End()

	subs, err := d.subs.ListByTenantAndEvent(ctx, tenantID, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.ErrorContext(ctx, "webhook subscription lookup failed",
			"tenant_id", tenantID,
			"event", event,
			"error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload := Payload{
		Event:      string(event),
		DocumentID: documentID,
		Status:     status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	// Events with no actor carry an explicit null.
	if signedBy != "" {
		payload.SignedBy = &signedBy
	}
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		d.logger.ErrorContext(ctx, "webhook payload marshal failed", "error", err)
		return
	}

	span.SetAttributes(attribute.Int("subscriptions.matched", len(subs)))

	var g errgroup.Group
	for _, sub := range subs {
		g.Go(func() error {
			d.deliver(ctx, sub, event, documentID, body)
			return nil
		})
	}
	_ = g.Wait()
}

// deliver runs one subscription's delivery cycle: up to maxAttempts tries
// with exponential backoff, one log row per try, stopping at the first
// success.
func (d *Dispatcher) deliver(ctx context.Context, sub *models.Subscription, event models.EventType, documentID string, body []byte) {
	ctx, span := d.tracer.Start(ctx, "webhook.deliver", trace.WithAttributes(
		attribute.String("subscription.id", sub.ID.String()),
		attribute.String("event.type", string(event)),
	))
	defer span.End()

	start := time.Now()
	signature := Sign(sub.Secret, body)

	for n := 1; n <= d.maxAttempts; n++ {
		ok, response := d.attemptOnce(ctx, sub.URL, signature, body)

		attemptStatus := models.AttemptFailed
		if ok {
			attemptStatus = models.AttemptSuccess
		}
		d.record(ctx, sub.ID, event, documentID, attemptStatus, n, response)
		d.metrics.IncrementDeliveryAttempt(string(event), string(attemptStatus))

		if ok {
			d.metrics.ObserveDeliveryLatency(string(event), time.Since(start))
			d.logger.DebugContext(ctx, "webhook delivered",
				"subscription_id", sub.ID,
				"event", event,
				"attempt", n)
			return
		}

		d.logger.WarnContext(ctx, "webhook delivery attempt failed",
			"subscription_id", sub.ID,
			"event", event,
			"attempt", n,
			"response", response)

		if n < d.maxAttempts {
			backoff := time.Duration(1<<(n-1)) * time.Second
			if err := d.sleep(ctx, backoff); err != nil {
				span.RecordError(err)
				return
			}
		}
	}

	span.SetStatus(codes.Error, "delivery exhausted all attempts")
	d.metrics.IncrementDeliveryExhausted(string(event))
	d.metrics.ObserveDeliveryLatency(string(event), time.Since(start))
	d.logger.ErrorContext(ctx, "webhook delivery exhausted",
		"subscription_id", sub.ID,
		"event", event,
		"attempts", d.maxAttempts)
}

// attemptOnce performs a single signed POST. The summary string becomes the
// log row's response column: "HTTP <code>" on success, "<code>: <detail>" or
// "N/A: <error>" on failure.
func (d *Dispatcher) attemptOnce(ctx context.Context, url, signature string, body []byte) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("N/A: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("N/A: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return false, fmt.Sprintf("%d: %s", resp.StatusCode, resp.Status)
}

// record appends one delivery log row. A failed write is logged and
// swallowed: the log is an audit trail, not a delivery precondition.
func (d *Dispatcher) record(ctx context.Context, subID id.SubscriptionID, event models.EventType, documentID string, status models.AttemptStatus, n int, response string) {
	a := &models.DeliveryAttempt{
		ID:             id.NewAttemptID(),
		SubscriptionID: subID,
		Event:          event,
		DocumentID:     documentID,
		Status:         status,
		Attempt:        n,
		Response:       response,
		CreatedAt:      time.Now().UTC(),
	}
	if err := d.attempts.Create(ctx, a); err != nil {
		d.logger.WarnContext(ctx, "delivery log write failed",
			"subscription_id", subID,
			"event", event,
			"attempt", n,
			"error", err)
	}
	if d.publisher != nil {
		d.publisher.Publish(ctx, a)
	}
}
