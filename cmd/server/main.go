// Package main contains the entrypoint for the wine backend HTTP service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrofanov/sx-wine-backend/internal/app"
	"github.com/dmitrofanov/sx-wine-backend/internal/config"
	"github.com/dmitrofanov/sx-wine-backend/internal/database"
	"github.com/dmitrofanov/sx-wine-backend/internal/logger"
	"github.com/dmitrofanov/sx-wine-backend/internal/notifier"
	"github.com/dmitrofanov/sx-wine-backend/internal/scheduler"
	"github.com/dmitrofanov/sx-wine-backend/internal/server"
	"github.com/dmitrofanov/sx-wine-backend/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// store, notifier, services, server, scheduler), handles graceful shutdown,
// and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	adminNotifier, err := notifier.NewTelegramNotifier(
		cfg.Telegram.Token, cfg.Telegram.AdminChatID, cfg.Telegram.SendTimeout, log)
	if err != nil {
		log.Error("Failed to create Telegram notifier", "error", err)
		return 1
	}

	bindingSvc := service.NewBindingService(store, log)
	interestSvc := service.NewInterestService(store, adminNotifier, log)

	srv := server.New(cfg.Server, store, bindingSvc, interestSvc, log)

	sched, err := scheduler.New(log, &cfg.Scheduler, scheduler.RegisterAllTasks(scheduler.TaskDeps{
		Logger: log,
		Store:  store,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	application := app.New(log, cfg, srv, sched)

	log.Info("Starting wine backend...")
	if err := application.Run(ctx); err != nil {
		log.Error("Application stopped due to error", "error", err)
		return 1
	}

	return 0
}
