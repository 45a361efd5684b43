// Package main implements the avatar API server. It stores, composes and
// converts profile avatars and serves them over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/phrazzld/avatar-api/internal/config"
	"github.com/phrazzld/avatar-api/internal/platform/logger"
	"github.com/phrazzld/avatar-api/internal/platform/postgres"
)

func main() {
	migrate := flag.String("migrate", "",
		"run a database migration command and exit ("+strings.Join(postgres.MigrationCommands, ", ")+")")
	flag.Parse()

	if err := run(*migrate); err != nil {
		fmt.Fprintf(os.Stderr, "avatar-api: %v\n", err)
		os.Exit(1)
	}
}

func run(migrateCommand string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"base_url", cfg.Server.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := setupAppDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}

	if migrateCommand != "" {
		defer closeDB(db, log)
		log.Info("running migrations", "command", migrateCommand)
		return postgres.Migrate(ctx, db, migrateCommand, log)
	}

	app, err := newApplication(ctx, cfg, log, db)
	if err != nil {
		closeDB(db, log)
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

func closeDB(db interface{ Close() error }, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Error("error closing database connection", "error", err)
	}
}
