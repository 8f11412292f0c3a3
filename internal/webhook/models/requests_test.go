package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "signet/pkg/domain-errors"
)

func TestCreateSubscriptionRequest(t *testing.T) {
	t.Run("normalize trims whitespace", func(t *testing.T) {
		req := CreateSubscriptionRequest{URL: "  https://example.com/hook  ", Secret: " abc "}
		req.Normalize()
		assert.Equal(t, "https://example.com/hook", req.URL)
		assert.Equal(t, "abc", req.Secret)
	})

	t.Run("normalize dedupes events", func(t *testing.T) {
		req := CreateSubscriptionRequest{
			URL:    "https://example.com/hook",
			Events: []EventType{EventDocumentCreated, EventDocumentSigned, EventDocumentCreated},
		}
		req.Normalize()
		assert.Equal(t, []EventType{EventDocumentCreated, EventDocumentSigned}, req.Events)
	})

	t.Run("valid request", func(t *testing.T) {
		req := CreateSubscriptionRequest{
			URL:    "https://example.com/hook",
			Events: []EventType{EventDocumentCreated},
		}
		require.NoError(t, req.Validate())
	})

	t.Run("rejects http url", func(t *testing.T) {
		req := CreateSubscriptionRequest{
			URL:    "http://example.com/hook",
			Events: []EventType{EventDocumentCreated},
		}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects empty events", func(t *testing.T) {
		req := CreateSubscriptionRequest{URL: "https://example.com/hook"}
		require.Error(t, req.Validate())
	})
}

func TestUpdateSubscriptionRequest(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	t.Run("rejects empty patch", func(t *testing.T) {
		req := UpdateSubscriptionRequest{}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("url revalidated as in create", func(t *testing.T) {
		req := UpdateSubscriptionRequest{URL: strPtr("http://example.com")}
		require.Error(t, req.Validate())

		req = UpdateSubscriptionRequest{URL: strPtr("https://example.com")}
		require.NoError(t, req.Validate())
	})

	t.Run("events revalidated as in create", func(t *testing.T) {
		bad := []EventType{"document.faxed"}
		req := UpdateSubscriptionRequest{Events: &bad}
		require.Error(t, req.Validate())

		empty := []EventType{}
		req = UpdateSubscriptionRequest{Events: &empty}
		require.Error(t, req.Validate())
	})

	t.Run("normalize dedupes events in patch", func(t *testing.T) {
		events := []EventType{EventDocumentSent, EventDocumentSent}
		req := UpdateSubscriptionRequest{Events: &events}
		req.Normalize()
		assert.Equal(t, []EventType{EventDocumentSent}, *req.Events)
	})

	t.Run("explicit empty secret rejected", func(t *testing.T) {
		req := UpdateSubscriptionRequest{Secret: strPtr("")}
		require.Error(t, req.Validate())
	})
}
