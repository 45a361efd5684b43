package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/avatar-api/internal/store"
)

type mockResult struct {
	rowsAffected int64
	err          error
}

func (m mockResult) LastInsertId() (int64, error) { return 0, nil }

func (m mockResult) RowsAffected() (int64, error) {
	return m.rowsAffected, m.err
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no_rows", sql.ErrNoRows, store.ErrNotFound},
		{"handle_taken", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: constraintProfileHandle}, store.ErrHandleExists},
		{"second_active", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: constraintOneActive}, store.ErrActiveAvatarExists},
		{"other_unique", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "avatars_pkey"}, store.ErrDuplicate},
		{"foreign_key", &pgconn.PgError{Code: foreignKeyViolationCode}, store.ErrInvalidEntity},
		{"check", &pgconn.PgError{Code: checkViolationCode}, store.ErrInvalidEntity},
		{"not_null", &pgconn.PgError{Code: notNullViolationCode}, store.ErrInvalidEntity},
		{"other", errors.New("connection reset"), store.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tt.err), tt.want)
		})
	}

	assert.NoError(t, MapError(nil))
	assert.NotErrorIs(t, MapError(&pgconn.PgError{Code: uniqueViolationCode}), store.ErrHandleExists)
}

func TestViolationHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.False(t, IsUniqueViolation(errors.New("x")))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: foreignKeyViolationCode}))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: uniqueViolationCode}))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckRowsAffected(mockResult{rowsAffected: 1}, store.ErrAvatarNotFound))
	assert.ErrorIs(t, CheckRowsAffected(mockResult{}, store.ErrAvatarNotFound), store.ErrAvatarNotFound)
	assert.Error(t, CheckRowsAffected(mockResult{err: errors.New("boom")}, store.ErrAvatarNotFound))
	assert.Error(t, CheckRowsAffected(nil, store.ErrAvatarNotFound))
}
