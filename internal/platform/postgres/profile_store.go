package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/platform/logger"
	"github.com/phrazzld/avatar-api/internal/store"
)

// PostgresProfileStore implements store.ProfileStore.
type PostgresProfileStore struct {
	db store.DBTX
}

// NewPostgresProfileStore creates a profile store on db.
func NewPostgresProfileStore(db store.DBTX) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

var _ store.ProfileStore = (*PostgresProfileStore)(nil)

// Create inserts profile after validating it.
func (s *PostgresProfileStore) Create(ctx context.Context, profile *domain.Profile) error {
	log := logger.FromContext(ctx)

	if err := profile.Validate(); err != nil {
		log.Warn("profile validation failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, handle, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`,
		profile.ID, profile.Handle, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Info("profile handle already taken", slog.String("handle", profile.Handle))
			return store.ErrHandleExists
		}
		log.Error("failed to insert profile", slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("profile created", slog.String("profile_id", profile.ID.String()))
	return nil
}

// GetByID returns the profile with id.
func (s *PostgresProfileStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	return s.getOne(ctx, `
		SELECT id, handle, created_at, updated_at
		FROM profiles
		WHERE id = $1`, id)
}

// GetByHandle returns the profile whose handle matches, ignoring case.
func (s *PostgresProfileStore) GetByHandle(ctx context.Context, handle string) (*domain.Profile, error) {
	return s.getOne(ctx, `
		SELECT id, handle, created_at, updated_at
		FROM profiles
		WHERE LOWER(handle) = LOWER($1)`, handle)
}

func (s *PostgresProfileStore) getOne(ctx context.Context, query string, arg any) (*domain.Profile, error) {
	var p domain.Profile
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Handle, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProfileNotFound
		}
		logger.FromContext(ctx).Error("failed to get profile", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &p, nil
}

// WithTx returns a store bound to tx.
func (s *PostgresProfileStore) WithTx(tx *sql.Tx) store.ProfileStore {
	return &PostgresProfileStore{db: tx}
}
