package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService issues and validates the access tokens that identify a profile.
type JWTService interface {
	// GenerateToken creates a signed access token for profileID.
	GenerateToken(ctx context.Context, profileID uuid.UUID) (string, error)

	// ValidateToken checks signature, lifetime and token type and returns the
	// claims of a valid token.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the validated contents of an access token.
type Claims struct {
	ProfileID uuid.UUID `json:"pid,omitempty"`
	TokenType string    `json:"type,omitempty"`
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
