package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Avatar   AvatarConfig   `mapstructure:"avatar"   validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// BaseURL is the public URL prefix used to build dynamic avatar links.
	// It must end with a slash.
	BaseURL string `mapstructure:"base_url" validate:"required,url,endswith=/"`
	// LogFile, when set, mirrors the JSON log stream into a rotated file.
	LogFile string `mapstructure:"log_file"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"            validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0,lt=44640"`
}

// StorageConfig describes where avatar files live and how they are served.
type StorageConfig struct {
	// Root is the directory stored files are written beneath.
	Root string `mapstructure:"root" validate:"required"`
	// MediaURL is the public URL prefix for stored files.
	MediaURL string `mapstructure:"media_url" validate:"required,endswith=/"`
}

// AvatarConfig contains avatar composition and import settings.
type AvatarConfig struct {
	// AssetsDir holds the component SVGs, laid out as <component_type>/<svg_asset>.
	AssetsDir string `mapstructure:"assets_dir" validate:"required"`
	// WatchAssets reloads component SVGs when files under AssetsDir change.
	WatchAssets bool `mapstructure:"watch_assets"`
	// GitHubAvatarURL is the template for social avatar imports; %s is the handle.
	GitHubAvatarURL string `mapstructure:"github_avatar_url" validate:"required,contains=%s"`
	// GitHubRequestsPerMinute bounds outbound profile picture fetches.
	GitHubRequestsPerMinute int `mapstructure:"github_requests_per_minute" validate:"required,gt=0"`
	// MaxUploadBytes bounds the size of uploaded social avatar images.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"required,gt=0"`
}

// TaskConfig contains background task runner settings.
type TaskConfig struct {
	WorkerCount         int `mapstructure:"worker_count"           validate:"required,gt=0"`
	QueueSize           int `mapstructure:"queue_size"             validate:"required,gt=0"`
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"required,gt=0"`
	// BackfillSchedule is a cron expression for the missing-format backfill.
	// An empty value disables the backfill.
	BackfillSchedule string `mapstructure:"backfill_schedule"`
	BackfillBatchSize int   `mapstructure:"backfill_batch_size" validate:"required,gt=0"`
	// BackfillRetryMinutes keeps avatars whose conversion failed out of the
	// backfill for this long.
	BackfillRetryMinutes int `mapstructure:"backfill_retry_minutes" validate:"required,gt=0"`
}
