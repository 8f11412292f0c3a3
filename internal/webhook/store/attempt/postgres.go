package attempt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"signet/internal/webhook/models"
	id "signet/pkg/domain"
	"signet/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists delivery attempts in the webhook_logs table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Create(ctx context.Context, a *models.DeliveryAttempt) error {
	query := `
		INSERT INTO webhook_logs (id, subscription_id, event, document_id, status, attempt, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := p.db.ExecContext(ctx, query,
		a.ID.String(),
		a.SubscriptionID.String(),
		string(a.Event),
		a.DocumentID,
		string(a.Status),
		a.Attempt,
		a.Response,
		a.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert delivery attempt: %w", err)
	}
	return nil
}

func (p *Postgres) ListBySubscription(ctx context.Context, subID id.SubscriptionID, limit int) ([]*models.DeliveryAttempt, error) {
	query := `
		SELECT id, subscription_id, event, document_id, status, attempt, response, created_at
		FROM webhook_logs
		WHERE subscription_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := p.db.QueryContext(ctx, query, subID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	defer rows.Close()

	var out []*models.DeliveryAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery attempts: %w", err)
	}
	return out, nil
}

func scanAttempt(rows *sql.Rows) (*models.DeliveryAttempt, error) {
	var (
		a                models.DeliveryAttempt
		attemptID, subID string
		event, status    string
	)
	if err := rows.Scan(&attemptID, &subID, &event, &a.DocumentID, &status, &a.Attempt, &a.Response, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan delivery attempt: %w", err)
	}

	parsedAttemptID, err := id.ParseAttemptID(attemptID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt id: %w", err)
	}
	parsedSubID, err := id.ParseSubscriptionID(subID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription id: %w", err)
	}

	a.ID = parsedAttemptID
	a.SubscriptionID = parsedSubID
	a.Event = models.EventType(event)
	a.Status = models.AttemptStatus(status)
	return &a, nil
}
