// Package attempt persists the append-only webhook delivery log. One record
// is written per delivery attempt and records are never updated or deleted.
package attempt

import (
	"context"
	"sort"
	"sync"

	"signet/internal/webhook/models"
	id "signet/pkg/domain"
	"signet/pkg/platform/sentinel"
)

// Store is the delivery log capability set.
type Store interface {
	Create(ctx context.Context, attempt *models.DeliveryAttempt) error
	ListBySubscription(ctx context.Context, subID id.SubscriptionID, limit int) ([]*models.DeliveryAttempt, error)
}

// InMemory is a thread-safe in-memory delivery log for tests and local runs.
type InMemory struct {
	mu       sync.RWMutex
	attempts map[id.AttemptID]*models.DeliveryAttempt
}

func NewInMemory() *InMemory {
	return &InMemory{attempts: make(map[id.AttemptID]*models.DeliveryAttempt)}
}

func (s *InMemory) Create(_ context.Context, a *models.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.attempts[a.ID]; exists {
		return sentinel.ErrConflict
	}
	s.attempts[a.ID] = cloneAttempt(a)
	return nil
}

func (s *InMemory) ListBySubscription(_ context.Context, subID id.SubscriptionID, limit int) ([]*models.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.DeliveryAttempt
	for _, a := range s.attempts {
		if a.SubscriptionID == subID {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneAttempt(a *models.DeliveryAttempt) *models.DeliveryAttempt {
	clone := *a
	return &clone
}
