package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/xowlabs/expopulse/pkg/logging"
)

// Pinger reports whether a backing service is reachable.
type Pinger func(ctx context.Context) error

// HealthHandler reports service health including its dependencies.
type HealthHandler struct {
	checks map[string]Pinger
	logger logging.Logger
}

// NewHealthHandler creates the health handler. Each named check is probed
// on every request.
func NewHealthHandler(checks map[string]Pinger, logger logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HealthHandler{
		checks: checks,
		logger: logger.With(logging.F("component", "health_handler")),
	}
}

// Handle probes every dependency and reports per-check status. Any failed
// check degrades the response to 503.
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	status := fiber.StatusOK
	results := fiber.Map{}
	for name, check := range h.checks {
		if err := check(c.Context()); err != nil {
			h.logger.Warn("health check failed",
				logging.F("check", name),
				logging.Err(err))
			results[name] = "unavailable"
			status = fiber.StatusServiceUnavailable
		} else {
			results[name] = "ok"
		}
	}

	overall := "healthy"
	if status != fiber.StatusOK {
		overall = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": results,
	})
}
