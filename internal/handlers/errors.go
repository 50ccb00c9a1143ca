package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/services"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
)

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindInvalidInput, services.KindProcessingFailed, services.KindAlreadyConfirmed:
		return fiber.StatusBadRequest
	case services.KindNoPriorReport, services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindUnauthenticated:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the JSON error body for err. Server-side failures are
// logged and sent to Sentry; their causes never reach the client.
func respondError(c *fiber.Ctx, err error) error {
	kind := services.KindInternal
	message := "Internal server error"

	var se *services.Error
	if errors.As(err, &se) {
		kind = se.Kind
		message = se.Message
	}

	status := statusFor(kind)
	if kind.Retryable() {
		c.Set(fiber.HeaderRetryAfter, "5")
	}
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", requestID(c),
			"action", c.Method()+" "+c.Route().Path,
			"kind", string(kind),
			"error", err.Error(),
		)
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
	}

	return c.Status(status).JSON(dto.ErrorResponse{
		Error:   true,
		Kind:    string(kind),
		Message: message,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Kind: string(services.KindInvalidInput), Message: message,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Kind: string(services.KindUnauthenticated), Message: "Unauthorized",
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
