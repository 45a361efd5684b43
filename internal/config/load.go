package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment variable the loader reads,
// e.g. AVATAR_SERVER_PORT for server.port.
const envPrefix = "AVATAR"

// keys lists every configuration key so that environment variables are
// picked up even when no config file mentions them.
var keys = []string{
	"server.port",
	"server.log_level",
	"server.base_url",
	"server.log_file",
	"database.url",
	"database.max_open_conns",
	"auth.jwt_secret",
	"auth.token_lifetime_minutes",
	"storage.root",
	"storage.media_url",
	"avatar.assets_dir",
	"avatar.watch_assets",
	"avatar.github_avatar_url",
	"avatar.github_requests_per_minute",
	"avatar.max_upload_bytes",
	"task.worker_count",
	"task.queue_size",
	"task.stuck_task_age_minutes",
	"task.backfill_schedule",
	"task.backfill_batch_size",
	"task.backfill_retry_minutes",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.base_url", "http://localhost:8080/")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("storage.root", "./data/media")
	v.SetDefault("storage.media_url", "/media/")
	v.SetDefault("avatar.assets_dir", "./assets/avatar")
	v.SetDefault("avatar.github_avatar_url", "https://github.com/%s.png")
	v.SetDefault("avatar.github_requests_per_minute", 30)
	v.SetDefault("avatar.max_upload_bytes", 5<<20)
	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.stuck_task_age_minutes", 30)
	v.SetDefault("task.backfill_schedule", "@every 15m")
	v.SetDefault("task.backfill_batch_size", 50)
	v.SetDefault("task.backfill_retry_minutes", 24*60)
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every struct tag constraint on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
