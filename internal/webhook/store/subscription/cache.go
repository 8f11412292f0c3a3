package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"signet/internal/platform/redis"
	"signet/internal/webhook/models"
	id "signet/pkg/domain"
)

// matchTTL keeps stale match results short-lived; invalidation on mutation
// handles the common case, the TTL bounds the window when it doesn't.
const matchTTL = 30 * time.Second

// Cached wraps a store with a Redis read-through cache for the dispatch hot
// path (tenant, event) -> subscriptions lookup. Registry mutations pass
// through and invalidate the tenant's cached matches. Cache failures degrade
// to the inner store, never to an error.
type Cached struct {
	inner  Store
	client *redis.Client
	logger *slog.Logger
}

// Store is the capability set the cache wraps and re-exposes.
type Store interface {
	Create(ctx context.Context, sub *models.Subscription) error
	FindByTenantAndID(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) (*models.Subscription, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Subscription, error)
	ListByTenantAndEvent(ctx context.Context, tenantID id.TenantID, event models.EventType) ([]*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
	Delete(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) error
}

// NewCached layers a match cache over inner. A nil client returns inner
// unchanged: an unconfigured cache is not an error, it is absence.
func NewCached(inner Store, client *redis.Client, logger *slog.Logger) Store {
	if client == nil {
		return inner
	}
	return &Cached{inner: inner, client: client, logger: logger}
}

func matchKey(tenantID id.TenantID, event models.EventType) string {
	return fmt.Sprintf("signet:match:%s:%s", tenantID, event)
}

func tenantPattern(tenantID id.TenantID) string {
	return fmt.Sprintf("signet:match:%s:*", tenantID)
}

func (c *Cached) ListByTenantAndEvent(ctx context.Context, tenantID id.TenantID, event models.EventType) ([]*models.Subscription, error) {
	key := matchKey(tenantID, event)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var subs []*models.Subscription
		if jsonErr := json.Unmarshal(raw, &subs); jsonErr == nil {
			return subs, nil
		}
		// Corrupt entry: fall through and repopulate.
	}

	subs, err := c.inner.ListByTenantAndEvent(ctx, tenantID, event)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(subs); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, matchTTL).Err(); setErr != nil {
			c.logger.WarnContext(ctx, "subscription cache write failed", "error", setErr)
		}
	}
	return subs, nil
}

func (c *Cached) Create(ctx context.Context, sub *models.Subscription) error {
	if err := c.inner.Create(ctx, sub); err != nil {
		return err
	}
	c.invalidate(ctx, sub.TenantID)
	return nil
}

func (c *Cached) Update(ctx context.Context, sub *models.Subscription) error {
	if err := c.inner.Update(ctx, sub); err != nil {
		return err
	}
	c.invalidate(ctx, sub.TenantID)
	return nil
}

func (c *Cached) Delete(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) error {
	if err := c.inner.Delete(ctx, tenantID, subID); err != nil {
		return err
	}
	c.invalidate(ctx, tenantID)
	return nil
}

func (c *Cached) FindByTenantAndID(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) (*models.Subscription, error) {
	return c.inner.FindByTenantAndID(ctx, tenantID, subID)
}

func (c *Cached) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Subscription, error) {
	return c.inner.ListByTenant(ctx, tenantID)
}

// invalidate drops every cached match set for the tenant. Failure only means
// a stale read until the TTL expires, so it is logged and swallowed.
func (c *Cached) invalidate(ctx context.Context, tenantID id.TenantID) {
	iter := c.client.Scan(ctx, 0, tenantPattern(tenantID), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WarnContext(ctx, "subscription cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "subscription cache invalidation failed", "error", err)
	}
}
