// Package jwtauth is the tenant resolver for the registration API: it maps
// an authenticated caller's bearer token to the tenant it acts for.
package jwtauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "signet/pkg/domain"
	dErrors "signet/pkg/domain-errors"
)

// Claims represents the JWT claims for our access tokens.
type Claims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
}

func New(signingKey string, issuer string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// GenerateToken mints a tenant-scoped access token.
func (s *Service) GenerateToken(tenantID id.TenantID, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TenantID: tenantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateToken verifies the token and returns the tenant it belongs to.
func (s *Service) ValidateToken(tokenString string) (id.TenantID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.TenantID{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return id.TenantID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.TenantID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	tenantID, err := id.ParseTenantID(claims.TenantID)
	if err != nil {
		return id.TenantID{}, dErrors.New(dErrors.CodeUnauthorized, "token carries no tenant")
	}
	return tenantID, nil
}
