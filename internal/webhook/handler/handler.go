// Package handler exposes the subscription registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"signet/internal/platform/middleware"
	"signet/internal/webhook/models"
	id "signet/pkg/domain"
	dErrors "signet/pkg/domain-errors"
	"signet/pkg/platform/httputil"
)

// Service defines the registry operations the handler drives.
type Service interface {
	Create(ctx context.Context, tenantID id.TenantID, req *models.CreateSubscriptionRequest) (*models.Subscription, error)
	List(ctx context.Context, tenantID id.TenantID) ([]*models.Subscription, error)
	Update(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID, req *models.UpdateSubscriptionRequest) (*models.Subscription, error)
	Delete(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) error
	ListDeliveries(ctx context.Context, tenantID id.TenantID, subID id.SubscriptionID) ([]*models.DeliveryAttempt, error)
}

// Handler wires webhook registry endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a webhook handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts webhook endpoints on the router. The router is expected
// to run RequireTenant ahead of these.
func (h *Handler) Register(r chi.Router) {
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Patch("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Get("/{id}/deliveries", h.HandleListDeliveries)
	})
}

// HandleCreate handles POST /webhooks.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	tenantID := middleware.GetTenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.CreateSubscriptionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sub, err := h.service.Create(ctx, tenantID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "subscription create failed",
			"request_id", requestID,
			"tenant_id", tenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "subscription created",
		"request_id", requestID,
		"tenant_id", tenantID,
		"subscription_id", sub.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, CreatedSubscriptionResponse{
		SubscriptionResponse: FromSubscription(sub),
		Secret:               sub.Secret,
	})
}

// HandleList handles GET /webhooks.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID := middleware.GetTenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	subs, err := h.service.List(ctx, tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromSubscriptions(subs))
}

// HandleUpdate handles PATCH /webhooks/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	tenantID := middleware.GetTenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	subID, err := id.ParseSubscriptionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.UpdateSubscriptionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sub, err := h.service.Update(ctx, tenantID, subID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "subscription update failed",
			"request_id", requestID,
			"tenant_id", tenantID,
			"subscription_id", subID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromSubscription(sub))
}

// HandleDelete handles DELETE /webhooks/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	tenantID := middleware.GetTenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	subID, err := id.ParseSubscriptionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, tenantID, subID); err != nil {
		h.logger.ErrorContext(ctx, "subscription delete failed",
			"request_id", requestID,
			"tenant_id", tenantID,
			"subscription_id", subID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListDeliveries handles GET /webhooks/{id}/deliveries.
func (h *Handler) HandleListDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID := middleware.GetTenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	subID, err := id.ParseSubscriptionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	attempts, err := h.service.ListDeliveries(ctx, tenantID, subID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromAttempts(attempts))
}
