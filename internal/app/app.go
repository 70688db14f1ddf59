// Package app implements component orchestration and lifecycle management
// for the wine backend.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrofanov/sx-wine-backend/internal/config"
	"github.com/dmitrofanov/sx-wine-backend/internal/scheduler"
	"github.com/dmitrofanov/sx-wine-backend/internal/server"
)

// App represents the main application and manages its components' lifecycle.
type App struct {
	logger    *slog.Logger
	cfg       *config.Config
	server    *server.Server
	scheduler *scheduler.Scheduler
}

// New creates a new application instance with all required dependencies.
func New(logger *slog.Logger, cfg *config.Config, srv *server.Server, sched *scheduler.Scheduler) *App {
	return &App{
		logger:    logger.With("component", "app"),
		cfg:       cfg,
		server:    srv,
		scheduler: sched,
	}
}

// Run starts the HTTP server and the scheduler, handling graceful shutdown on
// context cancellation. It returns an error if any component fails during
// startup or execution.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting application...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.Listen(a.cfg.Server.Addr); err != nil {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		if err := a.server.Shutdown(); err != nil {
			a.logger.Error("Error shutting down HTTP server", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Application stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Application stopped gracefully.")
	return nil
}
