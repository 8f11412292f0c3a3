package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"signet/internal/webhook/models"
	id "signet/pkg/domain"
	"signet/pkg/platform/sentinel"
)

// Postgres is the durable subscription store. Events are stored as a text
// array so matching can happen in SQL with ANY().
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO webhook_subscriptions (id, tenant_id, url, events, secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(sub.ID),
		uuid.UUID(sub.TenantID),
		sub.URL,
		pq.Array(eventStrings(sub.Events)),
		sub.Secret,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *Postgres) FindByTenantAndID(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) (*models.Subscription, error) {
	query := `
		SELECT id, tenant_id, url, events, secret, created_at, updated_at
		FROM webhook_subscriptions
		WHERE tenant_id = $1 AND id = $2
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(subID))
	return scanSubscription(row)
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Subscription, error) {
	query := `
		SELECT id, tenant_id, url, events, secret, created_at, updated_at
		FROM webhook_subscriptions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *Postgres) ListByTenantAndEvent(ctx context.Context, tenantID id.TenantID, event models.EventType) ([]*models.Subscription, error) {
	query := `
		SELECT id, tenant_id, url, events, secret, created_at, updated_at
		FROM webhook_subscriptions
		WHERE tenant_id = $1 AND $2 = ANY(events)
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID), string(event))
	if err != nil {
		return nil, fmt.Errorf("query subscriptions by event: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *Postgres) Update(ctx context.Context, sub *models.Subscription) error {
	query := `
		UPDATE webhook_subscriptions
		SET url = $3, events = $4, secret = $5, updated_at = $6
		WHERE tenant_id = $1 AND id = $2
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(sub.TenantID),
		uuid.UUID(sub.ID),
		sub.URL,
		pq.Array(eventStrings(sub.Events)),
		sub.Secret,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM webhook_subscriptions WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(tenantID), uuid.UUID(subID))
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub      models.Subscription
		subID    uuid.UUID
		tenantID uuid.UUID
		events   []string
	)
	err := row.Scan(&subID, &tenantID, &sub.URL, pq.Array(&events), &sub.Secret, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.ID = id.SubscriptionID(subID)
	sub.TenantID = id.TenantID(tenantID)
	sub.Events = eventTypes(events)
	return &sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

func eventStrings(events []models.EventType) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}

func eventTypes(events []string) []models.EventType {
	out := make([]models.EventType, len(events))
	for i, e := range events {
		out[i] = models.EventType(e)
	}
	return out
}
