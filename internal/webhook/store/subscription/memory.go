package subscription

import (
	"context"
	"sort"
	"sync"

	"signet/internal/webhook/models"
	id "signet/pkg/domain"
	"signet/pkg/platform/sentinel"
)

// InMemory is the test double and the default store when no DATABASE_URL is
// configured. Safe for concurrent use.
type InMemory struct {
	mu   sync.RWMutex
	subs map[id.SubscriptionID]*models.Subscription
}

func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[id.SubscriptionID]*models.Subscription)}
}

func (s *InMemory) Create(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subs[sub.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := cloneSubscription(sub)
	s.subs[sub.ID] = cp
	return nil
}

func (s *InMemory) FindByTenantAndID(_ context.Context, tenantID id.TenantID, subID id.SubscriptionID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[subID]
	if !ok || sub.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return cloneSubscription(sub), nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Subscription
	for _, sub := range s.subs {
		if sub.TenantID == tenantID {
			out = append(out, cloneSubscription(sub))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) ListByTenantAndEvent(_ context.Context, tenantID id.TenantID, event models.EventType) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Subscription
	for _, sub := range s.subs {
		if sub.TenantID == tenantID && sub.Subscribes(event) {
			out = append(out, cloneSubscription(sub))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) Update(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.subs[sub.ID]
	if !ok || existing.TenantID != sub.TenantID {
		return sentinel.ErrNotFound
	}
	s.subs[sub.ID] = cloneSubscription(sub)
	return nil
}

func (s *InMemory) Delete(_ context.Context, tenantID id.TenantID, subID id.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.subs[subID]
	if !ok || existing.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	delete(s.subs, subID)
	return nil
}

// cloneSubscription keeps callers from aliasing store-internal state.
func cloneSubscription(sub *models.Subscription) *models.Subscription {
	cp := *sub
	cp.Events = append([]models.EventType(nil), sub.Events...)
	return &cp
}

func sortNewestFirst(subs []*models.Subscription) {
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
}
