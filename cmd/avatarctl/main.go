// Package main is the entry point of avatarctl, the command-line companion of
// the avatar API. It hashes, composes and converts avatar images locally,
// mints access tokens and manages staff picks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/phrazzld/avatar-api/cmd/avatarctl/internal/commands"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := commands.NewRootCommand(commands.Options{
		Fs:      afero.NewOsFs(),
		Version: version,
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
