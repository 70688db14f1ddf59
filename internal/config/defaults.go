package config

import "time"

// Default values for optional configuration parameters.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	DefaultServerAddr            = ":8080"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second

	DefaultDBPath = "wine.db"

	DefaultTelegramSendTimeout = 10 * time.Second
)
