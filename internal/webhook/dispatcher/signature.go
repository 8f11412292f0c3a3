package dispatcher

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the payload HMAC on every delivery.
const SignatureHeader = "X-Webhook-Signature"

// Sign computes the hex HMAC-SHA256 of the exact payload bytes under the
// subscription secret. Receivers must verify against the raw request body;
// re-serializing the JSON first breaks the signature.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches the payload under the
// secret, in constant time.
func VerifySignature(secret string, payload []byte, signature string) bool {
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
