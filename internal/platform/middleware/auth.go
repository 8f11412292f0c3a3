package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "signet/pkg/domain"
)

// TokenValidator resolves a bearer token to the tenant it belongs to.
// The JWT implementation lives in internal/jwtauth; tests substitute a stub.
type TokenValidator interface {
	ValidateToken(tokenString string) (id.TenantID, error)
}

type tenantIDKey struct{}

// ContextKeyTenantID is exported for tests that need context.WithValue.
var ContextKeyTenantID = tenantIDKey{}

// GetTenantID retrieves the authenticated tenant from the context.
// Returns the zero value (nil UUID) if not set.
func GetTenantID(ctx context.Context) id.TenantID {
	if tenantID, ok := ctx.Value(ContextKeyTenantID).(id.TenantID); ok {
		return tenantID
	}
	return id.TenantID{}
}

// WithTenantID injects a tenant ID into the context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithTenantID(ctx context.Context, tenantID id.TenantID) context.Context {
	return context.WithValue(ctx, ContextKeyTenantID, tenantID)
}

// RequireTenant authenticates the request and stores the resolved tenant in
// the context. Every registration-API route runs behind this.
func RequireTenant(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			tenantID, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				unauthorized(w)
				return
			}

			ctx := WithTenantID(r.Context(), tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
