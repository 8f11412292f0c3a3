// Package domain defines typed identifiers shared across the service.
//
// IDs are distinct types over uuid.UUID so the compiler rejects cross-type
// assignment: a SubscriptionID can never be passed where a TenantID is
// expected. Parse functions enforce the trust-boundary invariant that IDs
// are valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "signet/pkg/domain-errors"
)

type (
	// TenantID identifies the isolation boundary every subscription and
	// document belongs to.
	TenantID uuid.UUID

	// SubscriptionID identifies a registered webhook endpoint.
	SubscriptionID uuid.UUID

	// AttemptID identifies one row in the delivery log.
	AttemptID uuid.UUID
)

func (id TenantID) String() string       { return uuid.UUID(id).String() }
func (id SubscriptionID) String() string { return uuid.UUID(id).String() }
func (id AttemptID) String() string      { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id SubscriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AttemptID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// The text representations keep IDs as canonical UUID strings in JSON
// bodies, cache entries, and stream records.

func (id TenantID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id SubscriptionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id AttemptID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(text []byte) error {
	parsed, err := ParseTenantID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *SubscriptionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSubscriptionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AttemptID) UnmarshalText(text []byte) error {
	parsed, err := ParseAttemptID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewTenantID returns a fresh random TenantID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewSubscriptionID returns a fresh random SubscriptionID.
func NewSubscriptionID() SubscriptionID { return SubscriptionID(uuid.New()) }

// NewAttemptID returns a fresh random AttemptID.
func NewAttemptID() AttemptID { return AttemptID(uuid.New()) }

// ParseTenantID parses and validates a tenant identifier.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseID(s)
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(u), nil
}

// ParseSubscriptionID parses and validates a subscription identifier.
func ParseSubscriptionID(s string) (SubscriptionID, error) {
	u, err := parseID(s)
	if err != nil {
		return SubscriptionID{}, err
	}
	return SubscriptionID(u), nil
}

// ParseAttemptID parses and validates a delivery attempt identifier.
func ParseAttemptID(s string) (AttemptID, error) {
	u, err := parseID(s)
	if err != nil {
		return AttemptID{}, err
	}
	return AttemptID(u), nil
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
