// Package httpapi exposes the expopulse REST API: recording lifecycle,
// barcode scan ingestion, and the dashboard read models.
package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/xowlabs/expopulse/pkg/logging"
)

// Config holds the API server settings.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps the Fiber application and its route handlers.
type Server struct {
	app    *fiber.App
	config Config
	logger logging.Logger
}

// NewServer builds the Fiber app, wires the middleware stack, and mounts
// all routes.
func NewServer(cfg Config, rec *RecordingHandler, dash *DashboardHandler, health *HealthHandler, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	app := fiber.New(fiber.Config{
		AppName:               "expopulse",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(requestLogger(logger))

	s := &Server{
		app:    app,
		config: cfg,
		logger: logger.With(logging.F("component", "httpapi")),
	}
	s.mountRoutes(rec, dash, health)
	return s
}

func (s *Server) mountRoutes(rec *RecordingHandler, dash *DashboardHandler, health *HealthHandler) {
	s.app.Get("/health", health.Handle)

	api := s.app.Group("/api")

	api.Post("/recordings", rec.Create)
	api.Get("/recordings", rec.List)
	api.Get("/recordings/:id", rec.Get)
	api.Delete("/recordings/:id", rec.Delete)
	api.Post("/recordings/:id/complete", rec.Complete)
	api.Post("/recordings/:id/transcript", rec.SetTranscript)
	api.Post("/recordings/:id/reprocess", rec.Reprocess)
	api.Get("/recordings/:id/status", rec.Status)

	api.Post("/barcodes", rec.AddScan)
	api.Get("/barcodes/:recording_id", rec.ListScans)

	api.Get("/dashboard/insights", dash.Insights)
	api.Get("/dashboard/recordings", dash.Recordings)
	api.Get("/dashboard/visitors", dash.Visitors)
}

// App returns the underlying Fiber application, used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("Starting API server", logging.F("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// requestLogger emits one structured log line per request.
func requestLogger(logger logging.Logger) fiber.Handler {
	log := logger.With(logging.F("component", "http"))
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		fields := []logging.Field{
			logging.F("method", c.Method()),
			logging.F("path", c.Path()),
			logging.F("status", status),
			logging.F("duration_ms", time.Since(start).Milliseconds()),
		}
		if err != nil {
			fields = append(fields, logging.Err(err))
		}
		if status >= 500 {
			log.Error("request failed", fields...)
		} else {
			log.Debug("request handled", fields...)
		}
		return err
	}
}
