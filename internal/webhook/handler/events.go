package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"signet/internal/platform/middleware"
	"signet/internal/webhook/models"
	id "signet/pkg/domain"
	dErrors "signet/pkg/domain-errors"
	"signet/pkg/platform/httputil"
)

// Notifier is the document-mutation fan-out surface the events endpoints
// drive. The document service reports mutations here; deliveries run in the
// background.
type Notifier interface {
	DocumentSaved(ctx context.Context, documentID string, previous *models.DocumentSnapshot, current models.DocumentSnapshot, signedBy string)
	DocumentViewed(ctx context.Context, tenantID id.TenantID, documentID, viewedBy string)
	DocumentDeclined(ctx context.Context, tenantID id.TenantID, documentID, declinedBy string)
}

// SignerState mirrors one signer's slice of a document snapshot on the wire.
type SignerState struct {
	IsSigned bool `json:"is_signed"`
}

// SnapshotPayload is the wire form of a document snapshot. The tenant is
// taken from the authenticated caller, never from the body.
type SnapshotPayload struct {
	IsSend  bool          `json:"is_send"`
	Signers []SignerState `json:"signers"`
}

func (p *SnapshotPayload) toSnapshot(tenantID id.TenantID) models.DocumentSnapshot {
	signers := make([]models.Signer, len(p.Signers))
	for i, s := range p.Signers {
		signers[i] = models.Signer{IsSigned: s.IsSigned}
	}
	return models.DocumentSnapshot{TenantID: tenantID, IsSend: p.IsSend, Signers: signers}
}

// DocumentSavedRequest reports a persisted mutation. A nil previous snapshot
// means the document was just created.
type DocumentSavedRequest struct {
	DocumentID string           `json:"document_id"`
	Previous   *SnapshotPayload `json:"previous"`
	Current    *SnapshotPayload `json:"current"`
	SignedBy   string           `json:"signed_by"`
}

func (r *DocumentSavedRequest) Validate() error {
	if r.DocumentID == "" {
		return dErrors.New(dErrors.CodeValidation, "document_id is required")
	}
	if r.Current == nil {
		return dErrors.New(dErrors.CodeValidation, "current snapshot is required")
	}
	return nil
}

// DocumentActivityRequest reports an explicit view or decline.
type DocumentActivityRequest struct {
	DocumentID string `json:"document_id"`
	Actor      string `json:"actor"`
}

func (r *DocumentActivityRequest) Validate() error {
	if r.DocumentID == "" {
		return dErrors.New(dErrors.CodeValidation, "document_id is required")
	}
	return nil
}

// EventsHandler wires document mutation reports to the notifier.
type EventsHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewEvents constructs the document-events handler.
func NewEvents(n Notifier, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{notifier: n, logger: logger}
}

// Register mounts the document-event endpoints. The router is expected to
// run RequireTenant ahead of these.
func (h *EventsHandler) Register(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/saved", h.HandleSaved)
		r.Post("/viewed", h.HandleViewed)
		r.Post("/declined", h.HandleDeclined)
	})
}

// HandleSaved handles POST /documents/saved.
func (h *EventsHandler) HandleSaved(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	tenantID := middleware.GetTenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[DocumentSavedRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var previous *models.DocumentSnapshot
	if req.Previous != nil {
		snap := req.Previous.toSnapshot(tenantID)
		previous = &snap
	}
	h.notifier.DocumentSaved(ctx, req.DocumentID, previous, req.Current.toSnapshot(tenantID), req.SignedBy)

	h.logger.InfoContext(ctx, "document mutation accepted",
		"request_id", requestID,
		"tenant_id", tenantID,
		"document_id", req.DocumentID)
	w.WriteHeader(http.StatusAccepted)
}

// HandleViewed handles POST /documents/viewed.
func (h *EventsHandler) HandleViewed(w http.ResponseWriter, r *http.Request) {
	h.handleActivity(w, r, func(ctx context.Context, tenantID id.TenantID, req *DocumentActivityRequest) {
		h.notifier.DocumentViewed(ctx, tenantID, req.DocumentID, req.Actor)
	})
}

// HandleDeclined handles POST /documents/declined.
func (h *EventsHandler) HandleDeclined(w http.ResponseWriter, r *http.Request) {
	h.handleActivity(w, r, func(ctx context.Context, tenantID id.TenantID, req *DocumentActivityRequest) {
		h.notifier.DocumentDeclined(ctx, tenantID, req.DocumentID, req.Actor)
	})
}

func (h *EventsHandler) handleActivity(w http.ResponseWriter, r *http.Request, report func(ctx context.Context, tenantID id.TenantID, req *DocumentActivityRequest)) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	tenantID := middleware.GetTenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[DocumentActivityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	report(ctx, tenantID, req)
	w.WriteHeader(http.StatusAccepted)
}
