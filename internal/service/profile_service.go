package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/store"
)

// ProfileService provides profile operations.
type ProfileService interface {
	// CreateProfile registers a new handle.
	CreateProfile(ctx context.Context, handle string) (*domain.Profile, error)

	// GetProfile retrieves a profile by ID.
	GetProfile(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error)
}

// ProfileServiceImpl implements ProfileService.
type ProfileServiceImpl struct {
	profiles store.ProfileStore
	logger   *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(profiles store.ProfileStore, logger *slog.Logger) *ProfileServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileServiceImpl{
		profiles: profiles,
		logger:   logger.With("component", "profile_service"),
	}
}

// CreateProfile validates handle and stores a new profile.
func (s *ProfileServiceImpl) CreateProfile(ctx context.Context, handle string) (*domain.Profile, error) {
	profile, err := domain.NewProfile(handle)
	if err != nil {
		s.logger.Debug("invalid profile", "error", err)
		return nil, errors.Join(ErrInvalidProfile, err)
	}

	if err := s.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, store.ErrHandleExists) {
			return nil, ErrHandleTaken
		}
		s.logger.Error("failed to create profile", "error", err, "handle", handle)
		return nil, NewAvatarServiceError("create_profile", "failed to save profile", err)
	}

	s.logger.Info("profile created", "profile_id", profile.ID)
	return profile, nil
}

// GetProfile retrieves a profile by ID.
func (s *ProfileServiceImpl) GetProfile(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, NewAvatarServiceError("get_profile", "failed to load profile", err)
	}
	return profile, nil
}
