package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "signet/pkg/domain"
	dErrors "signet/pkg/domain-errors"
)

func TestEventTypeValid(t *testing.T) {
	for _, e := range EventTypes() {
		assert.True(t, e.Valid(), "expected %s to be valid", e)
	}
	assert.False(t, EventType("document.shredded").Valid())
	assert.False(t, EventType("").Valid())
}

func TestEventTypeStatus(t *testing.T) {
	assert.Equal(t, "signed", EventDocumentSigned.Status())
	assert.Equal(t, "created", EventDocumentCreated.Status())
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid https", "https://example.com/hook", false},
		{"https with port", "https://example.com:8443/hook", false},
		{"http rejected", "http://example.com/hook", true},
		{"empty rejected", "", true},
		{"no host rejected", "https://", true},
		{"garbage rejected", "://not a url", true},
		{"relative rejected", "/hook", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateEvents(t *testing.T) {
	require.NoError(t, ValidateEvents([]EventType{EventDocumentSigned}))

	err := ValidateEvents(nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	err = ValidateEvents([]EventType{EventDocumentSigned, "document.burned"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestNewSubscriptionInvariants(t *testing.T) {
	now := time.Now()
	tenantID := id.NewTenantID()

	t.Run("valid subscription", func(t *testing.T) {
		sub, err := NewSubscription(id.NewSubscriptionID(), tenantID,
			"https://example.com/hook", []EventType{EventDocumentSigned}, "s3cret", now)
		require.NoError(t, err)
		assert.Equal(t, now, sub.CreatedAt)
		assert.Equal(t, now, sub.UpdatedAt)
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		_, err := NewSubscription(id.NewSubscriptionID(), id.TenantID{},
			"https://example.com/hook", []EventType{EventDocumentSigned}, "s3cret", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := NewSubscription(id.NewSubscriptionID(), tenantID,
			"https://example.com/hook", []EventType{EventDocumentSigned}, "", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestSubscribes(t *testing.T) {
	sub := Subscription{Events: []EventType{EventDocumentSigned, EventDocumentCompleted}}
	assert.True(t, sub.Subscribes(EventDocumentSigned))
	assert.False(t, sub.Subscribes(EventDocumentViewed))
}

func TestAllSigned(t *testing.T) {
	assert.True(t, DocumentSnapshot{}.AllSigned(), "zero signers is vacuously all-signed")
	assert.False(t, DocumentSnapshot{Signers: []Signer{{IsSigned: true}, {IsSigned: false}}}.AllSigned())
	assert.True(t, DocumentSnapshot{Signers: []Signer{{IsSigned: true}, {IsSigned: true}}}.AllSigned())
}
