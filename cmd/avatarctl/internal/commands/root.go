// Package commands implements the avatarctl sub-commands.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Options carries the dependencies of the command tree.
type Options struct {
	// Fs is the filesystem image files are read from and written to.
	Fs afero.Fs
	// Version is printed by the version command.
	Version string
}

// NewRootCommand builds the avatarctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	var verbose bool
	root := &cobra.Command{
		Use:   "avatarctl",
		Short: "Avatar image and token tooling",
		Long: `avatarctl works with avatar images outside the server.

It computes the difference hash used for duplicate detection, composes
custom avatars from a configuration and an asset directory, converts
between SVG and PNG, mints access tokens and flags staff picks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	h := &handler{fs: opts.Fs}
	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		h.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(
		newHashCommand(h),
		newComposeCommand(h),
		newConvertCommand(h),
		newTokenCommand(h),
		newRecommendCommand(h),
		newVersionCommand(opts.Version),
	)
	return root
}

// handler holds what the sub-commands share.
type handler struct {
	fs     afero.Fs
	logger *slog.Logger
}

func (h *handler) log() *slog.Logger {
	if h.logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return h.logger
}

// writeOutput writes data to path, or to out when path is "" or "-".
func (h *handler) writeOutput(out io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := out.Write(data)
		return err
	}
	if err := afero.WriteFile(h.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	h.log().Info("wrote file", "path", path, "bytes", len(data))
	return nil
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the avatarctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "avatarctl %s\n", version)
		},
	}
}
