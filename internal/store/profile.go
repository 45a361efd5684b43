package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/domain"
)

// ProfileStore defines the interface for profile persistence.
type ProfileStore interface {
	// Create saves a new profile.
	// Returns ErrHandleExists if the handle is already taken.
	Create(ctx context.Context, profile *domain.Profile) error

	// GetByID retrieves a profile by ID.
	// Returns ErrProfileNotFound if the profile does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)

	// GetByHandle retrieves a profile by handle, ignoring case.
	// Returns ErrProfileNotFound if the profile does not exist.
	GetByHandle(ctx context.Context, handle string) (*domain.Profile, error)

	// WithTx returns a ProfileStore bound to tx.
	WithTx(tx *sql.Tx) ProfileStore
}
