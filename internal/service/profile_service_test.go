package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/avatar-api/internal/domain"
)

func TestProfileService(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewProfileService(newMemProfileStore(), nil)

	p, err := svc.CreateProfile(ctx, "octocat")
	require.NoError(t, err)

	got, err := svc.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "octocat", got.Handle)

	_, err = svc.CreateProfile(ctx, "OctoCat")
	assert.ErrorIs(t, err, ErrHandleTaken)

	_, err = svc.CreateProfile(ctx, "-bad-")
	assert.ErrorIs(t, err, ErrInvalidProfile)
	assert.ErrorIs(t, err, domain.ErrInvalidHandle)

	_, err = svc.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
