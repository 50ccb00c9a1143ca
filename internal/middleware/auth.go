package middleware

import (
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/services"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// JWTProtected verifies tokens issued by the identity provider.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Kind:    string(services.KindUnauthenticated),
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}
