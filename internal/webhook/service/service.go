// Package service orchestrates the webhook subscription registry.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"signet/internal/platform/middleware"
	"signet/internal/webhook/metrics"
	"signet/internal/webhook/models"
	"signet/internal/webhook/store/attempt"
	"signet/internal/webhook/store/subscription"
	id "signet/pkg/domain"
	dErrors "signet/pkg/domain-errors"
	"signet/pkg/platform/sentinel"
	"signet/pkg/secrets"
)

// deliveryLogLimit caps how much of the delivery log one request returns.
const deliveryLogLimit = 100

// Service owns subscription lifecycle and delivery log reads. All operations
// are tenant-scoped: a tenant can never observe another tenant's
// subscriptions or deliveries.
type Service struct {
	subs     subscription.Store
	attempts attempt.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(subs subscription.Store, attempts attempt.Store, opts ...Option) *Service {
	s := &Service{subs: subs, attempts: attempts, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a webhook subscription. When the request carries no
// secret, a fresh one is generated and returned exactly once in the created
// subscription.
func (s *Service) Create(ctx context.Context, tenantID id.TenantID, req *models.CreateSubscriptionRequest) (*models.Subscription, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid subscription request")
	}

	secret := req.Secret
	if secret == "" {
		var err error
		secret, err = secrets.Generate()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate webhook secret")
		}
	}

	sub, err := models.NewSubscription(id.NewSubscriptionID(), tenantID, req.URL, req.Events, secret, time.Now().UTC())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "subscription already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create subscription")
	}

	s.logEvent(ctx, "webhook subscription created",
		"tenant_id", tenantID,
		"subscription_id", sub.ID,
		"events", sub.Events)
	s.metrics.IncrementSubscriptionOp("create")

	return sub, nil
}

// List returns the tenant's subscriptions, newest first.
func (s *Service) List(ctx context.Context, tenantID id.TenantID) ([]*models.Subscription, error) {
	subs, err := s.subs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subscriptions")
	}
	return subs, nil
}

// Get returns one subscription within the tenant's scope.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) (*models.Subscription, error) {
	sub, err := s.subs.FindByTenantAndID(ctx, tenantID, subID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "subscription not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get subscription")
	}
	return sub, nil
}

// Update applies a partial update to a subscription. Absent fields keep
// their current values.
func (s *Service) Update(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID, req *models.UpdateSubscriptionRequest) (*models.Subscription, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid update request")
	}

	sub, err := s.Get(ctx, tenantID, subID)
	if err != nil {
		return nil, err
	}

	if req.URL != nil {
		sub.URL = *req.URL
	}
	if req.Events != nil {
		sub.Events = *req.Events
	}
	if req.Secret != nil {
		sub.Secret = *req.Secret
	}
	sub.UpdatedAt = time.Now().UTC()

	if err := s.subs.Update(ctx, sub); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "subscription not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update subscription")
	}

	s.logEvent(ctx, "webhook subscription updated",
		"tenant_id", tenantID,
		"subscription_id", subID)
	s.metrics.IncrementSubscriptionOp("update")

	return sub, nil
}

// Delete removes a subscription. Its delivery log rows are retained.
func (s *Service) Delete(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) error {
	if err := s.subs.Delete(ctx, tenantID, subID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "subscription not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete subscription")
	}

	s.logEvent(ctx, "webhook subscription deleted",
		"tenant_id", tenantID,
		"subscription_id", subID)
	s.metrics.IncrementSubscriptionOp("delete")

	return nil
}

// ListDeliveries returns the most recent delivery attempts for a
// subscription, newest first. The subscription lookup enforces tenant scope
// before the log is read.
func (s *Service) ListDeliveries(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) ([]*models.DeliveryAttempt, error) {
	if _, err := s.Get(ctx, tenantID, subID); err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListBySubscription(ctx, subID, deliveryLogLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list deliveries")
	}
	return attempts, nil
}

func (s *Service) logEvent(ctx context.Context, msg string, attributes ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, attributes...)
}
