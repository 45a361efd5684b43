package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/avatar-api/internal/config"
	"github.com/phrazzld/avatar-api/internal/events"
	"github.com/phrazzld/avatar-api/internal/imaging"
	"github.com/phrazzld/avatar-api/internal/platform/postgres"
	"github.com/phrazzld/avatar-api/internal/service"
	"github.com/phrazzld/avatar-api/internal/service/auth"
	"github.com/phrazzld/avatar-api/internal/storage"
	"github.com/phrazzld/avatar-api/internal/store"
	"github.com/phrazzld/avatar-api/internal/task"
)

// githubFetchTimeout bounds a single avatar download.
const githubFetchTimeout = 10 * time.Second

// application holds the shared dependencies of the server and releases them
// on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	profileStore store.ProfileStore
	avatarStore  store.AvatarStore
	taskStore    task.TaskStore
	files        storage.FileStore
	assets       *imaging.AssetLibrary

	jwtService     auth.JWTService
	profileService service.ProfileService
	avatarService  service.AvatarService

	eventEmitter *events.InMemoryEventEmitter
	taskRunner   *task.TaskRunner
	backfill     *task.Backfill

	stopWatch context.CancelFunc
}

// newApplication wires stores, services, the task runner and the backfill.
// The task runner is started before it returns.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.profileStore = postgres.NewPostgresProfileStore(db)
	app.avatarStore = postgres.NewPostgresAvatarStore(db)
	app.taskStore = postgres.NewPostgresTaskStore(db)

	app.files, err = storage.NewDiskFileStore(cfg.Storage.Root, cfg.Storage.MediaURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	app.assets = imaging.NewDirAssetLibrary(cfg.Avatar.AssetsDir, logger)
	if cfg.Avatar.WatchAssets {
		app.startAssetWatcher(ctx, cfg.Avatar.AssetsDir)
	}

	fetcher := service.NewGitHubFetcher(service.GitHubFetcherConfig{
		URLTemplate:       cfg.Avatar.GitHubAvatarURL,
		RequestsPerMinute: cfg.Avatar.GitHubRequestsPerMinute,
		MaxBytes:          cfg.Avatar.MaxUploadBytes,
		Timeout:           githubFetchTimeout,
		MaxRetries:        3,
	}, logger)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)

	app.profileService = service.NewProfileService(app.profileStore, logger)
	avatarService, err := service.NewAvatarService(service.AvatarServiceDeps{
		DB:       db,
		Profiles: app.profileStore,
		Avatars:  app.avatarStore,
		Files:    app.files,
		Assets:   app.assets,
		Events:   app.eventEmitter,
		Fetcher:  fetcher,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create avatar service: %w", err)
	}
	app.avatarService = avatarService

	converter, ok := avatarService.(task.AvatarConverter)
	if !ok {
		return nil, fmt.Errorf("avatar service cannot convert avatars")
	}
	factory := task.NewAvatarConversionTaskFactory(converter, logger)

	if err := app.setupTaskRunner(factory); err != nil {
		return nil, err
	}

	app.eventEmitter.RegisterHandler(task.NewTaskFactoryEventHandler(factory, app.taskRunner, logger))

	if schedule := cfg.Task.BackfillSchedule; schedule != "" {
		app.backfill = task.NewBackfill(app.avatarStore, factory, app.taskRunner,
			cfg.Task.BackfillBatchSize, time.Duration(cfg.Task.BackfillRetryMinutes)*time.Minute, logger)
		if err := app.backfill.Start(schedule); err != nil {
			app.taskRunner.Stop()
			return nil, fmt.Errorf("failed to start conversion backfill: %w", err)
		}
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// startAssetWatcher invalidates the asset cache on changes under dir until ctx
// is done or cleanup runs. The returned channel closes when the watcher exits.
func (app *application) startAssetWatcher(ctx context.Context, dir string) <-chan struct{} {
	watchCtx, cancel := context.WithCancel(ctx)
	app.stopWatch = cancel

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := app.assets.Watch(watchCtx, dir); err != nil {
			app.logger.Error("avatar asset watcher stopped", "error", err)
		}
	}()
	return done
}

// setupTaskRunner creates the runner, registers the conversion task for
// recovery and starts it.
func (app *application) setupTaskRunner(factory *task.AvatarConversionTaskFactory) error {
	registry := task.NewRegistry()
	registry.Register(task.TaskTypeAvatarConversion, factory.Build)

	app.taskRunner = task.NewTaskRunner(app.taskStore, registry, task.TaskRunnerConfig{
		QueueSize:    app.config.Task.QueueSize,
		WorkerCount:  app.config.Task.WorkerCount,
		StuckTaskAge: time.Duration(app.config.Task.StuckTaskAgeMinutes) * time.Minute,
	}, app.logger)

	if err := app.taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	return nil
}

// Run serves HTTP until ctx is canceled.
func (app *application) Run(ctx context.Context) error {
	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup stops background work and closes the database.
func (app *application) cleanup() {
	if app.backfill != nil {
		app.backfill.Stop()
	}
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.stopWatch != nil {
		app.stopWatch()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
