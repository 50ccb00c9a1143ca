package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	ping   func() error
	vision string
}

func NewHealthHandler(ping func() error, visionMode string) *HealthHandler {
	return &HealthHandler{ping: ping, vision: visionMode}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"
	dbStatus := "ok"
	if err := h.ping(); err != nil {
		status = "degraded"
		dbStatus = "unhealthy: " + err.Error()
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Vision:    h.vision,
	})
}
