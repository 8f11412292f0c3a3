// Package secrets generates webhook signing secrets.
package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Generate returns a 64-character hex secret from 32 bytes of CSPRNG output.
// Secrets are stored as issued: the dispatcher needs the original bytes to
// compute HMAC signatures, so they are never hashed at rest.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
