package handler

import (
	"time"

	"signet/internal/webhook/models"
)

// SubscriptionResponse is the subscription shape returned by list and
// update. It never carries the secret.
type SubscriptionResponse struct {
	ID        string             `json:"id"`
	URL       string             `json:"url"`
	Events    []models.EventType `json:"events"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// CreatedSubscriptionResponse is the creation response. The secret appears
// here and nowhere else: callers who lose it re-register.
type CreatedSubscriptionResponse struct {
	SubscriptionResponse
	Secret string `json:"secret"`
}

// DeliveryResponse is one delivery log row.
type DeliveryResponse struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	DocumentID string    `json:"document_id"`
	Status     string    `json:"status"`
	Attempt    int       `json:"attempt"`
	Response   string    `json:"response"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromSubscription converts a domain subscription to its response shape.
func FromSubscription(sub *models.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:        sub.ID.String(),
		URL:       sub.URL,
		Events:    sub.Events,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

// FromSubscriptions converts a list of subscriptions.
func FromSubscriptions(subs []*models.Subscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, FromSubscription(sub))
	}
	return out
}

// FromAttempts converts delivery log rows.
func FromAttempts(attempts []*models.DeliveryAttempt) []DeliveryResponse {
	out := make([]DeliveryResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, DeliveryResponse{
			ID:         a.ID.String(),
			Event:      string(a.Event),
			DocumentID: a.DocumentID,
			Status:     string(a.Status),
			Attempt:    a.Attempt,
			Response:   a.Response,
			CreatedAt:  a.CreatedAt,
		})
	}
	return out
}
