package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-platform-api/utils/response"
	"gorm.io/gorm"
)

// Pinger is any dependency that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// TransferCounter exposes swallowed checkout failures
type TransferCounter interface {
	TransferFailures() int64
}

// HealthHandler reports the state of the service and its dependencies
type HealthHandler struct {
	db        *gorm.DB
	cache     Pinger
	transfers TransferCounter
}

// NewHealthHandler creates a health handler. cache may be nil.
func NewHealthHandler(db *gorm.DB, cache Pinger, transfers TransferCounter) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, transfers: transfers}
}

// HandlePing is the unauthenticated liveness probe
func (h *HealthHandler) HandlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleHealth reports dependency status and the transfer failure counter
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	status := fiber.Map{"database": "ok"}
	healthy := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "unreachable"
		healthy = false
	}

	switch {
	case h.cache == nil:
		status["cache"] = "disabled"
	case h.cache.Ping(ctx) != nil:
		status["cache"] = "unreachable"
	default:
		status["cache"] = "ok"
	}

	if h.transfers != nil {
		status["transfer_failures"] = h.transfers.TransferFailures()
	}

	if !healthy {
		return response.ErrorWithDetails(c, fiber.StatusServiceUnavailable, "Service degraded", "SERVICE_UNAVAILABLE", "database unreachable")
	}
	return response.Success(c, status)
}
