package middleware

import (
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// Member resolves the acting user from the verified JWT and stores the id in
// locals. It must run after JWTProtected.
func Member() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := tenant.UserIDFromToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Kind:    string(services.KindUnauthenticated),
				Message: "Unauthorized: token has no valid subject",
			})
		}
		tenant.SetUserID(c, userID)
		return c.Next()
	}
}
