package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/imaging"
)

func newHashCommand(h *handler) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <image>",
		Short: "Print the difference hash of a PNG, JPEG, GIF or WebP image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := afero.ReadFile(h.fs, args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			hash, err := imaging.HashBytes(data)
			if err != nil {
				return fmt.Errorf("failed to hash %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newComposeCommand(h *handler) *cobra.Command {
	var (
		configPath string
		assetsDir  string
		outPath    string
		asPNG      bool
	)

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose a custom avatar from a JSON configuration",
		Example: `  avatarctl compose --config avatar.json --assets ./assets/avatar -o avatar.svg
  avatarctl compose --config avatar.json --assets ./assets/avatar --png -o avatar.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := afero.ReadFile(h.fs, configPath)
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
			var cfg domain.AvatarConfig
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return fmt.Errorf("invalid avatar config: %w", err)
			}

			lib := imaging.NewAssetLibrary(afero.NewBasePathFs(h.fs, assetsDir), h.log())
			doc, err := imaging.Compose(&cfg, lib, imaging.IconSize)
			if err != nil {
				return fmt.Errorf("failed to compose avatar: %w", err)
			}

			if asPNG {
				doc, err = imaging.Convert(doc, domain.FormatSVG, domain.FormatPNG)
				if err != nil {
					return fmt.Errorf("failed to rasterize avatar: %w", err)
				}
			}
			return h.writeOutput(cmd.OutOrStdout(), outPath, doc)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "avatar configuration JSON file")
	cmd.Flags().StringVar(&assetsDir, "assets", "./assets/avatar", "component SVG directory")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&asPNG, "png", false, "write a PNG instead of an SVG")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newConvertCommand(h *handler) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:     "convert <in> <out>",
		Short:   "Convert an avatar between SVG and PNG",
		Example: "  avatarctl convert --from svg --to png avatar.svg avatar.png",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromFmt, err := domain.ParseImageFormat(from)
			if err != nil {
				return err
			}
			toFmt, err := domain.ParseImageFormat(to)
			if err != nil {
				return err
			}

			src, err := afero.ReadFile(h.fs, args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			out, err := imaging.Convert(src, fromFmt, toFmt)
			if err != nil {
				return fmt.Errorf("failed to convert %s: %w", args[0], err)
			}
			return h.writeOutput(cmd.OutOrStdout(), args[1], out)
		},
	}

	cmd.Flags().StringVar(&from, "from", "svg", "source format (svg or png)")
	cmd.Flags().StringVar(&to, "to", "png", "target format (svg or png)")
	return cmd
}
