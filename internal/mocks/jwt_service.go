package mocks

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/service/auth"
)

// MockJWTService implements auth.JWTService for testing
type MockJWTService struct {
	GenerateTokenFn func(ctx context.Context, profileID uuid.UUID) (string, error)
	ValidateTokenFn func(ctx context.Context, tokenString string) (*auth.Claims, error)

	// Defaults used when the function fields are nil
	Token       string
	Err         error
	Claims      *auth.Claims
	ValidateErr error
}

var _ auth.JWTService = (*MockJWTService)(nil)

// GenerateToken implements auth.JWTService
func (m *MockJWTService) GenerateToken(ctx context.Context, profileID uuid.UUID) (string, error) {
	if m.GenerateTokenFn != nil {
		return m.GenerateTokenFn(ctx, profileID)
	}
	return m.Token, m.Err
}

// ValidateToken implements auth.JWTService
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, tokenString)
	}
	return m.Claims, m.ValidateErr
}

// NewMockJWTServiceFor returns a mock that accepts any token as profileID's.
func NewMockJWTServiceFor(profileID uuid.UUID) *MockJWTService {
	return &MockJWTService{
		Token: "token-" + profileID.String(),
		Claims: &auth.Claims{
			ProfileID: profileID,
			TokenType: "access",
			Subject:   profileID.String(),
		},
	}
}
