package models

import (
	"net/url"
	"strings"
	"time"

	id "signet/pkg/domain"
	dErrors "signet/pkg/domain-errors"
)

// EventType enumerates the document lifecycle events a subscription can
// receive. The set is closed; receivers reject anything else.
type EventType string

const (
	EventDocumentCreated   EventType = "document.created"
	EventDocumentSent      EventType = "document.sent"
	EventDocumentViewed    EventType = "document.viewed"
	EventDocumentSigned    EventType = "document.signed"
	EventDocumentCompleted EventType = "document.completed"
	EventDocumentDeclined  EventType = "document.declined"
)

// EventTypes returns the closed enum in a stable order.
func EventTypes() []EventType {
	return []EventType{
		EventDocumentCreated,
		EventDocumentSent,
		EventDocumentViewed,
		EventDocumentSigned,
		EventDocumentCompleted,
		EventDocumentDeclined,
	}
}

// Valid reports whether e is a member of the closed enum.
func (e EventType) Valid() bool {
	switch e {
	case EventDocumentCreated, EventDocumentSent, EventDocumentViewed,
		EventDocumentSigned, EventDocumentCompleted, EventDocumentDeclined:
		return true
	}
	return false
}

// Status is the lifecycle word carried in the payload status field
// ("document.signed" -> "signed").
func (e EventType) Status() string {
	return strings.TrimPrefix(string(e), "document.")
}

// Subscription is a tenant-registered HTTPS endpoint plus the event types it
// wants notified about.
//
// Invariants:
//   - URL parses and uses the https scheme
//   - Events is non-empty and a subset of the closed enum
//   - Secret is non-empty (generated server-side when the caller omits it)
//   - TenantID is set; a subscription belongs to exactly one tenant
type Subscription struct {
	ID        id.SubscriptionID `json:"id"`
	TenantID  id.TenantID       `json:"tenant_id"`
	URL       string            `json:"url"`
	Events    []EventType       `json:"events"`
	Secret    string            `json:"secret"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewSubscription constructs a Subscription, enforcing invariants.
func NewSubscription(subID id.SubscriptionID, tenantID id.TenantID, rawURL string, events []EventType, secret string, now time.Time) (*Subscription, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subscription must belong to a tenant")
	}
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	if err := ValidateEvents(events); err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subscription secret cannot be empty")
	}
	return &Subscription{
		ID:        subID,
		TenantID:  tenantID,
		URL:       rawURL,
		Events:    events,
		Secret:    secret,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Subscribes reports whether the subscription wants the given event type.
func (s *Subscription) Subscribes(event EventType) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// ValidateURL enforces the HTTPS-only endpoint rule.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return dErrors.New(dErrors.CodeValidation, "url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "url is not a valid URL")
	}
	if parsed.Scheme != "https" {
		return dErrors.New(dErrors.CodeValidation, "url must be https")
	}
	if parsed.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "url must have a host")
	}
	return nil
}

// ValidateEvents enforces the non-empty-subset-of-enum rule.
func ValidateEvents(events []EventType) error {
	if len(events) == 0 {
		return dErrors.New(dErrors.CodeValidation, "events cannot be empty")
	}
	for _, e := range events {
		if !e.Valid() {
			return dErrors.Newf(dErrors.CodeValidation, "invalid event: %s", e)
		}
	}
	return nil
}

// Event is a semantic lifecycle occurrence. It is transient: produced by the
// detector or an explicit trigger, consumed immediately by the dispatcher,
// never persisted as its own entity.
type Event struct {
	Type       EventType
	TenantID   id.TenantID
	DocumentID string
	Status     string
	SignedBy   string
	Timestamp  time.Time
}

// AttemptStatus is the outcome of a single HTTP try.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// DeliveryAttempt is one immutable row in the delivery log: one HTTP try
// against one subscription for one event occurrence.
type DeliveryAttempt struct {
	ID             id.AttemptID      `json:"id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	Event          EventType         `json:"event"`
	DocumentID     string            `json:"document_id"`
	Status         AttemptStatus     `json:"status"`
	Attempt        int               `json:"attempt"`
	Response       string            `json:"response"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Signer is the per-recipient slice of a document snapshot.
type Signer struct {
	IsSigned bool
}

// DocumentSnapshot is the read-only document state the external store hands
// us around every mutation. Only the fields event detection needs.
type DocumentSnapshot struct {
	TenantID   id.TenantID
	IsSend     bool
	IsDeclined bool
	Signers    []Signer
}

// AllSigned reports whether every signer has signed. Vacuously true for a
// document with zero signers.
func (d DocumentSnapshot) AllSigned() bool {
	for _, s := range d.Signers {
		if !s.IsSigned {
			return false
		}
	}
	return true
}
