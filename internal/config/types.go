// Package config manages application configuration from defaults, an optional
// config.yaml file, and WINE_-prefixed environment variables.
package config

import "time"

// Config holds the full application configuration. Values can be set via
// environment variables prefixed with WINE_ (e.g., WINE_TELEGRAM_TOKEN) or
// through config.yaml.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,min=1s"`
}

// DatabaseConfig controls the SQLite storage backend.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig controls the admin notification channel. Token and
// AdminChatID may both be empty, in which case the notifier runs in its
// unconfigured mode and every send reports that state. Both values are
// resolved once at startup, never re-read per call.
type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	AdminChatID int64         `mapstructure:"admin_chat_id"`
	SendTimeout time.Duration `mapstructure:"send_timeout" validate:"required,min=1s,max=2m"`
}

// SchedulerConfig holds the scheduled task definitions, keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a single scheduled task with a cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}
