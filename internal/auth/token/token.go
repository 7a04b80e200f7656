// Package token issues and validates JWT access tokens.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"contractor_portal_backend/platform/config"
)

// Issuer creates signed access tokens for authenticated users.
type Issuer struct {
	cfg config.AuthServiceConfig
}

// NewIssuer creates a token issuer.
func NewIssuer(cfg config.AuthServiceConfig) *Issuer {
	return &Issuer{cfg: cfg}
}

// Access issues a signed access token carrying the user's ID and role.
func (i *Issuer) Access(userID uuid.UUID, role string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(i.cfg.GetAccessTokenTTL())

	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(i.cfg.GetJWTSecret()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}
