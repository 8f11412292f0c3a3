// Package receiver is a reference webhook receiving endpoint. It shows the
// verification contract subscribers must implement: verify the HMAC over the
// raw body bytes before parsing anything.
package receiver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"signet/internal/webhook/dispatcher"
	"signet/internal/webhook/models"
	"signet/pkg/platform/httputil"
)

// maxBodyBytes bounds what a receiver will read from a single delivery.
const maxBodyBytes = 1 << 20

// Handler verifies and accepts webhook deliveries signed with secret.
type Handler struct {
	secret string
	logger *slog.Logger

	// Accept is called with the verified payload. Deliveries can arrive
	// more than once; Accept must be idempotent.
	Accept func(payload dispatcher.Payload)
}

// New constructs a receiving handler for the given subscription secret.
func New(secret string, logger *slog.Logger) *Handler {
	return &Handler{secret: secret, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(dispatcher.SignatureHeader)
	if signature == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "bad_request",
			"error_description": "missing signature header",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "bad_request",
			"error_description": "unreadable body",
		})
		return
	}

	// Verify before parsing: the signature covers the exact bytes on the
	// wire, not any re-serialized form.
	if !dispatcher.VerifySignature(h.secret, body, signature) {
		h.logger.WarnContext(r.Context(), "webhook signature mismatch")
		httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "unauthorized",
			"error_description": "signature mismatch",
		})
		return
	}

	var payload dispatcher.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "bad_request",
			"error_description": "malformed payload",
		})
		return
	}

	if payload.Event == "" || payload.DocumentID == "" || payload.Timestamp == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "bad_request",
			"error_description": "payload missing required fields",
		})
		return
	}
	if !models.EventType(payload.Event).Valid() {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "bad_request",
			"error_description": "unknown event type",
		})
		return
	}

	if h.Accept != nil {
		h.Accept(payload)
	}

	w.WriteHeader(http.StatusOK)
}
