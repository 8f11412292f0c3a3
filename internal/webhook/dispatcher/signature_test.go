package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignKnownVector(t *testing.T) {
	body := []byte(`{"event":"document.signed","document_id":"doc-1","status":"signed","signed_by":"alice@example.com","timestamp":"2026-01-02T15:04:05Z"}`)

	got := Sign("abc123", body)
	assert.Equal(t, "f91738b6217cffc3c01aeb4c8a680444fa501a54a244f56b22093c158462a740", got)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"document.created","document_id":"d","status":"created","signed_by":"","timestamp":"2026-01-02T15:04:05Z"}`)
	sig := Sign("secret-a", body)

	assert.True(t, VerifySignature("secret-a", body, sig))

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, VerifySignature("secret-b", body, sig))
	})

	t.Run("tampered body", func(t *testing.T) {
		tampered := append([]byte{}, body...)
		tampered[10] ^= 0x01
		assert.False(t, VerifySignature("secret-a", tampered, sig))
	})

	t.Run("reserialized body breaks the signature", func(t *testing.T) {
		reordered := []byte(`{"document_id":"d","event":"document.created","status":"created","signed_by":"","timestamp":"2026-01-02T15:04:05Z"}`)
		assert.False(t, VerifySignature("secret-a", reordered, sig))
	})
}
