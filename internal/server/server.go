// Package server exposes the catalog and notification flows over HTTP.
package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrofanov/sx-wine-backend/internal/config"
	"github.com/dmitrofanov/sx-wine-backend/internal/database"
	"github.com/dmitrofanov/sx-wine-backend/internal/logger"
	"github.com/dmitrofanov/sx-wine-backend/internal/service"
)

// Server wires the fiber application to the store and services.
type Server struct {
	app             *fiber.App
	store           database.Store
	binding         *service.BindingService
	interest        *service.InterestService
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New creates the HTTP server with all routes registered.
func New(
	cfg config.ServerConfig,
	store database.Store,
	binding *service.BindingService,
	interest *service.InterestService,
	log *slog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "sx-wine-backend",
		ReadTimeout:           cfg.ReadTimeout,
		DisableStartupMessage: true,
	})
	app.Use(logger.Middleware(log))

	s := &Server{
		app:             app,
		store:           store,
		binding:         binding,
		interest:        interest,
		logger:          log.With("component", "http_server"),
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.setupRouting()
	return s
}

func (s *Server) setupRouting() {
	s.app.Get("/healthz", s.handleHealth)

	api := s.app.Group("/api")

	api.Get("/wines", s.handleListWines)
	api.Get("/wines/:id", s.handleGetWine)

	api.Get("/events", s.handleListEvents)
	api.Get("/events/:id", s.handleGetEvent)

	api.Get("/persons", s.handleListPersons)
	api.Post("/persons", s.handleCreatePerson)
	api.Get("/persons/:id", s.handleGetPerson)
	api.Put("/persons/:id", s.handleUpdatePerson)
	api.Delete("/persons/:id", s.handleDeletePerson)

	api.Post("/auth/bind-telegram", s.handleBindTelegram)
	api.Post("/notifications/wine-interest", s.handleWineInterest)
	api.Post("/notifications/event-interest", s.handleEventInterest)
}

// Listen blocks serving HTTP on the given address.
func (s *Server) Listen(addr string) error {
	s.logger.Info("HTTP server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server, waiting up to the configured timeout
// for in-flight requests.
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server...")
	return s.app.ShutdownWithTimeout(s.shutdownTimeout)
}

// App exposes the underlying fiber application for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
