package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	pickupHandler *handlers.PickupHandler,
	feedHandler *handlers.FeedHandler,
	healthHandler *handlers.HealthHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// JWT is applied per route so public routes stay unauthenticated
	jwt := middleware.JWTProtected(cfg)
	member := middleware.Member()

	// Report and confirm call the vision model; 10 req/min per user
	verify := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			if id, err := tenant.GetUserID(c); err == nil {
				return id.String()
			}
			return c.IP()
		},
	})
	api.Post("/report", jwt, member, verify, pickupHandler.Report)
	api.Post("/confirm/:pickupId", jwt, member, verify, pickupHandler.Confirm)
	api.Post("/confirm", jwt, member, verify, pickupHandler.ConfirmLatest)

	// Read views
	api.Get("/pickups/:id", jwt, member, feedHandler.GetPickup)
	api.Get("/activities", jwt, member, feedHandler.Activities)
	api.Get("/users/me/stats", jwt, member, feedHandler.MyStats)
	api.Get("/map", jwt, member, feedHandler.Map)
	api.Get("/communities/:id/pickups", jwt, member, feedHandler.CommunityPickups)
}
