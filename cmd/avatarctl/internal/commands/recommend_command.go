package commands

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/spf13/cobra"

	"github.com/phrazzld/avatar-api/internal/config"
	"github.com/phrazzld/avatar-api/internal/events"
	"github.com/phrazzld/avatar-api/internal/imaging"
	"github.com/phrazzld/avatar-api/internal/platform/postgres"
	"github.com/phrazzld/avatar-api/internal/redact"
	"github.com/phrazzld/avatar-api/internal/service"
	"github.com/phrazzld/avatar-api/internal/storage"
)

func newRecommendCommand(h *handler) *cobra.Command {
	var unset bool

	cmd := &cobra.Command{
		Use:   "recommend <avatar-id>",
		Short: "Flag a custom avatar as a staff pick",
		Long: `Flag a custom avatar as a staff pick, or remove the flag with --unset.

The database and storage settings are read the same way the server reads
them: config.yaml and AVATAR_* environment variables.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			avatarID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid avatar ID %q: %w", args[0], err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := sql.Open("pgx", cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to open database: %s", redact.Error(err))
			}
			defer func() { _ = db.Close() }()

			svc, err := h.avatarService(cfg, db)
			if err != nil {
				return err
			}

			avatar, err := svc.SetRecommended(cmd.Context(), avatarID, !unset)
			if err != nil {
				return fmt.Errorf("failed to update avatar: %s", redact.Error(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s recommended=%t\n", avatar.ID, avatar.RecommendedByStaff)
			return nil
		},
	}

	cmd.Flags().BoolVar(&unset, "unset", false, "remove the staff pick flag")
	return cmd
}

// avatarService builds the avatar service against the configured database
// and storage. Conversion requests are dropped since no task runner is
// attached.
func (h *handler) avatarService(cfg *config.Config, db *sql.DB) (service.AvatarService, error) {
	files, err := storage.NewDiskFileStore(cfg.Storage.Root, cfg.Storage.MediaURL, h.log())
	if err != nil {
		return nil, err
	}
	return service.NewAvatarService(service.AvatarServiceDeps{
		DB:       db,
		Profiles: postgres.NewPostgresProfileStore(db),
		Avatars:  postgres.NewPostgresAvatarStore(db),
		Files:    files,
		Assets:   imaging.NewDirAssetLibrary(cfg.Avatar.AssetsDir, h.log()),
		Events:   events.NewInMemoryEventEmitter(h.log()),
	}, h.log())
}
