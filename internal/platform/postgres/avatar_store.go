package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/platform/logger"
	"github.com/phrazzld/avatar-api/internal/store"
	"github.com/phrazzld/avatar-api/internal/task"
)

const avatarColumns = `id, profile_id, kind, active, svg, png, hash, recommended_by_staff, config, created_at, updated_at`

// PostgresAvatarStore implements store.AvatarStore.
type PostgresAvatarStore struct {
	db store.DBTX
}

// NewPostgresAvatarStore creates an avatar store on db.
func NewPostgresAvatarStore(db store.DBTX) *PostgresAvatarStore {
	return &PostgresAvatarStore{db: db}
}

var _ store.AvatarStore = (*PostgresAvatarStore)(nil)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAvatar(row rowScanner) (*domain.Avatar, error) {
	var (
		a         domain.Avatar
		profileID uuid.NullUUID
		kind      string
		config    []byte
	)
	err := row.Scan(&a.ID, &profileID, &kind, &a.Active, &a.SVG, &a.PNG, &a.Hash,
		&a.RecommendedByStaff, &config, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Kind = domain.AvatarKind(kind)
	if profileID.Valid {
		owner := profileID.UUID
		a.ProfileID = &owner
	}
	if config != nil {
		a.Config = &domain.AvatarConfig{}
		if err := a.Config.UnmarshalJSON(config); err != nil {
			return nil, fmt.Errorf("failed to decode avatar config: %w", err)
		}
	}
	return &a, nil
}

func nullableProfile(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// Create inserts avatar after validating it.
func (s *PostgresAvatarStore) Create(ctx context.Context, avatar *domain.Avatar) error {
	log := logger.FromContext(ctx)

	if err := avatar.Validate(); err != nil {
		log.Warn("avatar validation failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO avatars (`+avatarColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		avatar.ID, nullableProfile(avatar.ProfileID), string(avatar.Kind), avatar.Active,
		avatar.SVG, avatar.PNG, avatar.Hash, avatar.RecommendedByStaff, avatar.Config,
		avatar.CreatedAt, avatar.UpdatedAt)
	if err != nil {
		log.Error("failed to insert avatar",
			slog.String("avatar_id", avatar.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("avatar created",
		slog.String("avatar_id", avatar.ID.String()),
		slog.String("kind", string(avatar.Kind)))
	return nil
}

// GetByID returns the avatar with id.
func (s *PostgresAvatarStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Avatar, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+avatarColumns+` FROM avatars WHERE id = $1`, id)
	return s.one(ctx, row)
}

// Update saves the mutable columns of avatar.
func (s *PostgresAvatarStore) Update(ctx context.Context, avatar *domain.Avatar) error {
	log := logger.FromContext(ctx)

	if err := avatar.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	avatar.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE avatars
		SET active = $2, svg = $3, png = $4, hash = $5, recommended_by_staff = $6,
			config = $7, updated_at = $8
		WHERE id = $1`,
		avatar.ID, avatar.Active, avatar.SVG, avatar.PNG, avatar.Hash,
		avatar.RecommendedByStaff, avatar.Config, avatar.UpdatedAt)
	if err != nil {
		log.Error("failed to update avatar",
			slog.String("avatar_id", avatar.ID.String()),
			slog.String("error", err.Error()))
		return wrapWriteError("avatar", "update", store.ErrUpdateFailed, err)
	}
	return CheckRowsAffected(result, store.ErrAvatarNotFound)
}

// Delete removes the avatar with id.
func (s *PostgresAvatarStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM avatars WHERE id = $1`, id)
	if err != nil {
		logger.FromContext(ctx).Error("failed to delete avatar",
			slog.String("avatar_id", id.String()),
			slog.String("error", err.Error()))
		return wrapWriteError("avatar", "delete", store.ErrDeleteFailed, err)
	}
	return CheckRowsAffected(result, store.ErrAvatarNotFound)
}

// ListByProfile returns the avatars of profileID, newest first.
func (s *PostgresAvatarStore) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*domain.Avatar, error) {
	return s.list(ctx, `
		SELECT `+avatarColumns+`
		FROM avatars
		WHERE profile_id = $1
		ORDER BY created_at DESC, id`, profileID)
}

// ListRecommended returns up to limit staff-recommended custom avatars.
func (s *PostgresAvatarStore) ListRecommended(ctx context.Context, limit int) ([]*domain.Avatar, error) {
	return s.list(ctx, `
		SELECT `+avatarColumns+`
		FROM avatars
		WHERE recommended_by_staff AND kind = 'custom'
		ORDER BY created_at DESC, id
		LIMIT $1`, limit)
}

// FindSimilar returns the newest avatar of profileID with hash. An empty hash
// never matches.
func (s *PostgresAvatarStore) FindSimilar(ctx context.Context, profileID uuid.UUID, hash string) (*domain.Avatar, error) {
	if hash == "" {
		return nil, store.ErrAvatarNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+avatarColumns+`
		FROM avatars
		WHERE profile_id = $1 AND hash = $2
		ORDER BY created_at DESC
		LIMIT 1`, profileID, hash)
	return s.one(ctx, row)
}

// GetActive returns the active avatar of profileID.
func (s *PostgresAvatarStore) GetActive(ctx context.Context, profileID uuid.UUID) (*domain.Avatar, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+avatarColumns+`
		FROM avatars
		WHERE profile_id = $1 AND active`, profileID)
	return s.one(ctx, row)
}

// SetActive makes avatarID the only active avatar of profileID.
func (s *PostgresAvatarStore) SetActive(ctx context.Context, profileID, avatarID uuid.UUID) error {
	log := logger.FromContext(ctx)
	now := time.Now().UTC()

	if _, err := s.db.ExecContext(ctx, `
		UPDATE avatars SET active = FALSE, updated_at = $2
		WHERE profile_id = $1 AND active AND id <> $3`, profileID, now, avatarID); err != nil {
		log.Error("failed to deactivate avatars",
			slog.String("profile_id", profileID.String()),
			slog.String("error", err.Error()))
		return wrapWriteError("avatar", "set_active", store.ErrUpdateFailed, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE avatars SET active = TRUE, updated_at = $3
		WHERE id = $1 AND profile_id = $2`, avatarID, profileID, now)
	if err != nil {
		log.Error("failed to activate avatar",
			slog.String("avatar_id", avatarID.String()),
			slog.String("error", err.Error()))
		return wrapWriteError("avatar", "set_active", store.ErrUpdateFailed, err)
	}
	return CheckRowsAffected(result, store.ErrAvatarNotFound)
}

// ListMissingFormats returns up to limit avatars with exactly one file that
// have no conversion task in flight and no conversion failure since
// failedSince.
func (s *PostgresAvatarStore) ListMissingFormats(ctx context.Context, limit int, failedSince time.Time) ([]*domain.Avatar, error) {
	return s.list(ctx, `
		SELECT `+avatarColumns+`
		FROM avatars a
		WHERE (a.svg = '') <> (a.png = '')
		AND NOT EXISTS (
			SELECT 1 FROM tasks t
			WHERE t.type = $3
			AND t.payload->>'avatar_id' = a.id::text
			AND (t.status IN ('pending', 'processing')
				OR (t.status = 'failed' AND t.updated_at >= $2))
		)
		ORDER BY a.created_at ASC
		LIMIT $1`, limit, failedSince, task.TaskTypeAvatarConversion)
}

// WithTx returns a store bound to tx.
func (s *PostgresAvatarStore) WithTx(tx *sql.Tx) store.AvatarStore {
	return &PostgresAvatarStore{db: tx}
}

func (s *PostgresAvatarStore) one(ctx context.Context, row *sql.Row) (*domain.Avatar, error) {
	a, err := scanAvatar(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAvatarNotFound
		}
		logger.FromContext(ctx).Error("failed to scan avatar", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return a, nil
}

func (s *PostgresAvatarStore) list(ctx context.Context, query string, args ...any) ([]*domain.Avatar, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query avatars", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	avatars := []*domain.Avatar{}
	for rows.Next() {
		a, err := scanAvatar(rows)
		if err != nil {
			log.Error("failed to scan avatar row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		avatars = append(avatars, a)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return avatars, nil
}
