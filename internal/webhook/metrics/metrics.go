package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the webhook module.
type Metrics struct {
	// Registry mutations by operation: "create", "update", "delete"
	SubscriptionOps *prometheus.CounterVec

	// Delivery attempts by event and outcome
	DeliveryAttempts *prometheus.CounterVec

	// Deliveries that exhausted every retry
	DeliveriesExhausted *prometheus.CounterVec

	// End-to-end latency of one delivery cycle including retries
	DeliveryLatency *prometheus.HistogramVec

	// Events detected from document transitions
	EventsDetected *prometheus.CounterVec
}

// New creates a new Metrics instance with all webhook metrics registered.
func New() *Metrics {
	return &Metrics{
		SubscriptionOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signet_webhook_subscription_ops_total",
			Help: "Total subscription registry mutations by operation",
		}, []string{"operation"}),

		DeliveryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signet_webhook_delivery_attempts_total",
			Help: "Total webhook delivery attempts by event and status",
		}, []string{"event", "status"}),

		DeliveriesExhausted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signet_webhook_deliveries_exhausted_total",
			Help: "Total deliveries that failed every retry",
		}, []string{"event"}),

		DeliveryLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signet_webhook_delivery_duration_seconds",
			Help:    "Duration of one delivery cycle including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"event"}),

		EventsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signet_webhook_events_detected_total",
			Help: "Total lifecycle events detected from document transitions",
		}, []string{"event"}),
	}
}

// IncrementSubscriptionOp records a registry mutation.
func (m *Metrics) IncrementSubscriptionOp(operation string) {
	if m != nil {
		m.SubscriptionOps.WithLabelValues(operation).Inc()
	}
}

// IncrementDeliveryAttempt records one HTTP try.
func (m *Metrics) IncrementDeliveryAttempt(event, status string) {
	if m != nil {
		m.DeliveryAttempts.WithLabelValues(event, status).Inc()
	}
}

// IncrementDeliveryExhausted records a delivery that failed every retry.
func (m *Metrics) IncrementDeliveryExhausted(event string) {
	if m != nil {
		m.DeliveriesExhausted.WithLabelValues(event).Inc()
	}
}

// ObserveDeliveryLatency records the duration of a full delivery cycle.
func (m *Metrics) ObserveDeliveryLatency(event string, d time.Duration) {
	if m != nil {
		m.DeliveryLatency.WithLabelValues(event).Observe(d.Seconds())
	}
}

// IncrementEventDetected records a detected lifecycle event.
func (m *Metrics) IncrementEventDetected(event string) {
	if m != nil {
		m.EventsDetected.WithLabelValues(event).Inc()
	}
}
