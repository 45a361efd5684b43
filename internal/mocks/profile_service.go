package mocks

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/service"
)

// MockProfileService implements service.ProfileService for testing
type MockProfileService struct {
	CreateProfileFn func(ctx context.Context, handle string) (*domain.Profile, error)
	GetProfileFn    func(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error)

	Profile *domain.Profile
	Err     error
}

var _ service.ProfileService = (*MockProfileService)(nil)

// CreateProfile implements service.ProfileService
func (m *MockProfileService) CreateProfile(ctx context.Context, handle string) (*domain.Profile, error) {
	if m.CreateProfileFn != nil {
		return m.CreateProfileFn(ctx, handle)
	}
	return m.Profile, m.Err
}

// GetProfile implements service.ProfileService
func (m *MockProfileService) GetProfile(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error) {
	if m.GetProfileFn != nil {
		return m.GetProfileFn(ctx, profileID)
	}
	return m.Profile, m.Err
}
