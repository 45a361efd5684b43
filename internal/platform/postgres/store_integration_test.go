//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/platform/postgres"
	"github.com/phrazzld/avatar-api/internal/store"
	"github.com/phrazzld/avatar-api/internal/task"
	"github.com/phrazzld/avatar-api/internal/testdb"
)

func createProfile(t *testing.T, tx *sql.Tx, handle string) *domain.Profile {
	t.Helper()
	p, err := domain.NewProfile(handle)
	require.NoError(t, err)
	require.NoError(t, postgres.NewPostgresProfileStore(tx).Create(context.Background(), p))
	return p
}

func customConfig() *domain.AvatarConfig {
	return domain.NewAvatarConfig("F0F0F0",
		domain.Layer{Name: "Torso", ComponentType: "torso", SVGAsset: "basic.svg"},
		domain.Layer{Name: "Head", ComponentType: "head", SVGAsset: "round.svg"},
		domain.Layer{Name: "Eyes", ComponentType: "eyes", SVGAsset: "wide.svg"},
	)
}

func TestProfileStoreIntegration(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		profiles := postgres.NewPostgresProfileStore(tx)
		p := createProfile(t, tx, "octocat")

		got, err := profiles.GetByHandle(ctx, "OCTOCAT")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)

		dup, err := domain.NewProfile("OctoCat")
		require.NoError(t, err)
		assert.ErrorIs(t, profiles.Create(ctx, dup), store.ErrHandleExists)
	})
}

func TestAvatarStoreIntegration(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		avatars := postgres.NewPostgresAvatarStore(tx)
		p := createProfile(t, tx, "mona")

		custom, err := domain.NewCustomAvatar(p.ID, customConfig())
		require.NoError(t, err)
		custom.SVG = "avatars/1/mona.svg"
		custom.Hash = "aa00"
		require.NoError(t, avatars.Create(ctx, custom))

		got, err := avatars.GetByID(ctx, custom.ID)
		require.NoError(t, err)
		names := []string{}
		for _, l := range got.Config.Layers() {
			names = append(names, l.Name)
		}
		assert.Equal(t, []string{"Torso", "Head", "Eyes"}, names, "layer order survives a round trip")

		social, err := domain.NewSocialAvatar(p.ID, "aa00")
		require.NoError(t, err)
		social.CreatedAt = custom.CreatedAt.Add(time.Second)
		social.PNG = "avatars/2/mona.png"
		require.NoError(t, avatars.Create(ctx, social))

		similar, err := avatars.FindSimilar(ctx, p.ID, "aa00")
		require.NoError(t, err)
		assert.Equal(t, social.ID, similar.ID, "newest match wins across kinds")

		require.NoError(t, avatars.SetActive(ctx, p.ID, custom.ID))
		require.NoError(t, avatars.SetActive(ctx, p.ID, social.ID))
		active, err := avatars.GetActive(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, social.ID, active.ID)

		missing, err := avatars.ListMissingFormats(ctx, 10, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Len(t, missing, 2)

		list, err := avatars.ListByProfile(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, social.ID, list[0].ID)

		require.NoError(t, avatars.Delete(ctx, custom.ID))
		_, err = avatars.GetByID(ctx, custom.ID)
		assert.ErrorIs(t, err, store.ErrAvatarNotFound)
	})
}

func TestListMissingFormatsSkipsTrackedConversions(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		avatars := postgres.NewPostgresAvatarStore(tx)
		tasks := postgres.NewPostgresTaskStore(tx)
		factory := task.NewAvatarConversionTaskFactory(noopConverter{}, nil)
		p := createProfile(t, tx, "hubot")

		created := time.Now().Add(-time.Hour)
		newAvatar := func(hash string) *domain.Avatar {
			a, err := domain.NewSocialAvatar(p.ID, hash)
			require.NoError(t, err)
			a.PNG = "avatars/" + hash + "/hubot.png"
			a.CreatedAt = created
			created = created.Add(time.Second)
			require.NoError(t, avatars.Create(ctx, a))
			return a
		}
		failing := newAvatar("aa01")
		queued := newAvatar("aa02")
		fresh := newAvatar("aa03")

		failed, err := factory.CreateTask(failing.ID)
		require.NoError(t, err)
		require.NoError(t, tasks.SaveTask(ctx, failed))
		require.NoError(t, tasks.UpdateTaskStatus(ctx, failed.ID(), task.TaskStatusFailed, "source file missing"))

		pending, err := factory.CreateTask(queued.ID)
		require.NoError(t, err)
		require.NoError(t, tasks.SaveTask(ctx, pending))

		missing, err := avatars.ListMissingFormats(ctx, 1, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, missing, 1)
		assert.Equal(t, fresh.ID, missing[0].ID, "recent failures and queued tasks do not fill the batch")

		missing, err = avatars.ListMissingFormats(ctx, 10, time.Now().Add(time.Hour))
		require.NoError(t, err)
		ids := []uuid.UUID{}
		for _, a := range missing {
			ids = append(ids, a.ID)
		}
		assert.Equal(t, []uuid.UUID{failing.ID, fresh.ID}, ids, "old failures are retried")
	})
}

func TestTaskStoreIntegration(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		tasks := postgres.NewPostgresTaskStore(tx)

		factory := task.NewAvatarConversionTaskFactory(noopConverter{}, nil)
		tk, err := factory.CreateTask(uuid.New())
		require.NoError(t, err)
		require.NoError(t, tasks.SaveTask(ctx, tk))

		pending, err := tasks.GetPendingTasks(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, pending)

		require.NoError(t, tasks.UpdateTaskStatus(ctx, tk.ID(), task.TaskStatusProcessing, ""))
		processing, err := tasks.GetProcessingTasks(ctx, 0)
		require.NoError(t, err)
		found := false
		for _, rec := range processing {
			if rec.ID == tk.ID() {
				found = true
				assert.JSONEq(t, string(tk.Payload()), string(rec.Payload))
			}
		}
		assert.True(t, found)
	})
}

type noopConverter struct{}

func (noopConverter) ConvertMissing(context.Context, uuid.UUID) error { return nil }
