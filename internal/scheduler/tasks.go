package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrofanov/sx-wine-backend/internal/database"
)

// TaskDeps contains the dependencies available to scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
}

// RegisterAllTasks initializes and returns a map of all registered scheduled
// tasks. The map keys match the task names used in the scheduler section of
// the configuration.
func RegisterAllTasks(deps TaskDeps) map[string]TaskFunc {
	tasks := make(map[string]TaskFunc)

	tasks["db_maintenance"] = newDBMaintenanceTask(deps)

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}

// newDBMaintenanceTask creates the scheduled task function for running
// database maintenance.
func newDBMaintenanceTask(deps TaskDeps) TaskFunc {
	log := deps.Logger.With("task", "db_maintenance")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled database maintenance...")

		if err := deps.Store.RunMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "Database maintenance task failed", "error", err)
			return fmt.Errorf("database maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled database maintenance completed")
		return nil
	}
}
