package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/domain"
)

// AvatarStore defines the interface for avatar persistence.
type AvatarStore interface {
	// Create saves a new avatar after validating it.
	Create(ctx context.Context, avatar *domain.Avatar) error

	// GetByID retrieves an avatar by ID.
	// Returns ErrAvatarNotFound if the avatar does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Avatar, error)

	// Update saves the files, hash, flags and configuration of an avatar.
	// Returns ErrAvatarNotFound if the avatar does not exist.
	Update(ctx context.Context, avatar *domain.Avatar) error

	// Delete removes an avatar.
	// Returns ErrAvatarNotFound if the avatar does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByProfile returns a profile's avatars, newest first.
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*domain.Avatar, error)

	// ListRecommended returns custom avatars recommended by staff, newest first.
	ListRecommended(ctx context.Context, limit int) ([]*domain.Avatar, error)

	// FindSimilar returns the most recently created avatar owned by
	// profileID with the given hash.
	// Returns ErrAvatarNotFound when there is none.
	FindSimilar(ctx context.Context, profileID uuid.UUID, hash string) (*domain.Avatar, error)

	// GetActive returns the active avatar of a profile.
	// Returns ErrAvatarNotFound when the profile has no active avatar.
	GetActive(ctx context.Context, profileID uuid.UUID) (*domain.Avatar, error)

	// SetActive deactivates every avatar of profileID and then activates
	// avatarID. Run it inside a transaction.
	// Returns ErrAvatarNotFound if avatarID is not owned by profileID.
	SetActive(ctx context.Context, profileID, avatarID uuid.UUID) error

	// ListMissingFormats returns up to limit avatars that have exactly one
	// of their SVG and PNG files, oldest first. Avatars with a pending or
	// processing conversion task are skipped, as are avatars whose last
	// conversion failed at or after failedSince.
	ListMissingFormats(ctx context.Context, limit int, failedSince time.Time) ([]*domain.Avatar, error)

	// WithTx returns an AvatarStore bound to tx.
	WithTx(tx *sql.Tx) AvatarStore
}
