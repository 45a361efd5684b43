package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phrazzld/avatar-api/internal/config"
	"github.com/phrazzld/avatar-api/internal/service/auth"
)

func newTokenCommand(h *handler) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a profile",
		Long: `Mint an access token for a profile.

The signing secret and lifetime come from --secret and --lifetime, or from
AVATAR_AUTH_JWT_SECRET and AVATAR_AUTH_TOKEN_LIFETIME_MINUTES.`,
		Example: "  avatarctl token --profile 6f1c1c8e-4a1b-4c9e-9a57-2b0f4b3c1d2e",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			v.SetEnvPrefix("AVATAR")
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			v.SetDefault("auth.token_lifetime_minutes", 60)
			_ = v.BindEnv("auth.jwt_secret")
			_ = v.BindEnv("auth.token_lifetime_minutes")
			if err := v.BindPFlag("auth.jwt_secret", cmd.Flags().Lookup("secret")); err != nil {
				return err
			}
			if err := v.BindPFlag("auth.token_lifetime_minutes", cmd.Flags().Lookup("lifetime")); err != nil {
				return err
			}

			raw, _ := cmd.Flags().GetString("profile")
			profileID, err := uuid.Parse(raw)
			if err != nil || profileID == uuid.Nil {
				return fmt.Errorf("invalid --profile %q: must be a UUID", raw)
			}

			jwt, err := auth.NewJWTService(config.AuthConfig{
				JWTSecret:            v.GetString("auth.jwt_secret"),
				TokenLifetimeMinutes: v.GetInt("auth.token_lifetime_minutes"),
			})
			if err != nil {
				return err
			}

			token, err := jwt.GenerateToken(cmd.Context(), profileID)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			h.log().Debug("token minted", "profile_id", profileID)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("profile", "", "profile ID the token authenticates")
	cmd.Flags().String("secret", "", "HMAC signing secret, at least 32 characters")
	cmd.Flags().Int("lifetime", 60, "token lifetime in minutes")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}
