// Package notifier turns document mutations into webhook fan-outs. It sits
// between whatever persists documents and the dispatcher: callers hand it
// before/after snapshots, it derives the events and delivers them in order.
package notifier

import (
	"context"
	"log/slog"
	"sync"

	"signet/internal/webhook/detector"
	"signet/internal/webhook/metrics"
	"signet/internal/webhook/models"
	id "signet/pkg/domain"
)

// EventSender is the dispatch capability the notifier drives.
type EventSender interface {
	SendEvent(ctx context.Context, tenantID id.TenantID, event models.EventType, documentID, status, signedBy string)
}

// Notifier derives events from document transitions and hands them to the
// dispatcher. Fan-outs run in the background relative to the mutating
// caller; within one mutation the events are delivered strictly in order,
// so every document.signed fan-out has fully finished before the paired
// document.completed fan-out starts.
type Notifier struct {
	sender  EventSender
	logger  *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

type Option func(n *Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

// New constructs a Notifier.
func New(sender EventSender, opts ...Option) *Notifier {
	n := &Notifier{sender: sender, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// DocumentSaved reports a document mutation. A nil previous snapshot means
// the document was just created. The derived fan-out runs in the background;
// the call returns immediately so delivery latency never lands on the
// mutation path.
func (n *Notifier) DocumentSaved(ctx context.Context, documentID string, previous *models.DocumentSnapshot, current models.DocumentSnapshot, signedBy string) {
	events := detector.Detect(previous, current)
	if len(events) == 0 {
		return
	}
	for _, event := range events {
		n.metrics.IncrementEventDetected(string(event))
	}
	n.dispatchAsync(ctx, current.TenantID, documentID, signedBy, events)
}

// DocumentViewed reports an explicit view, with the viewer as signed_by.
func (n *Notifier) DocumentViewed(ctx context.Context, tenantID id.TenantID, documentID, viewedBy string) {
	n.metrics.IncrementEventDetected(string(models.EventDocumentViewed))
	n.dispatchAsync(ctx, tenantID, documentID, viewedBy, []models.EventType{models.EventDocumentViewed})
}

// DocumentDeclined reports an explicit decline, with the decliner as
// signed_by.
func (n *Notifier) DocumentDeclined(ctx context.Context, tenantID id.TenantID, documentID, declinedBy string) {
	n.metrics.IncrementEventDetected(string(models.EventDocumentDeclined))
	n.dispatchAsync(ctx, tenantID, documentID, declinedBy, []models.EventType{models.EventDocumentDeclined})
}

// Wait blocks until every in-flight fan-out has finished. Used on shutdown
// to drain background deliveries.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatchAsync(ctx context.Context, tenantID id.TenantID, documentID, signedBy string, events []models.EventType) {
	// Detach from the caller's cancellation: the mutation response must not
	// abort deliveries already owed to subscribers.
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for _, event := range events {
			// Sequential on purpose: each SendEvent blocks until its whole
			// fan-out, log writes included, has finished.
			n.sender.SendEvent(ctx, tenantID, event, documentID, event.Status(), signedBy)
		}
		n.logger.DebugContext(ctx, "document fan-out finished",
			"tenant_id", tenantID,
			"document_id", documentID,
			"events", events)
	}()
}
