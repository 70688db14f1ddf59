// Package logger provides structured logging for the wine backend.
// It uses Go's slog package with configurable levels and formats.
package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// NewLogger creates a new slog Logger with the specified level and format.
// If jsonOutput is true, logs are formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Middleware returns a fiber middleware that logs every request with its
// method, path, response status, and duration.
func Middleware(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		duration := time.Since(startTime)
		entry := log.With(
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", duration,
		)
		if err != nil {
			entry.Error("Request failed", "error", err)
		} else {
			entry.Info("Request handled")
		}

		return err
	}
}
