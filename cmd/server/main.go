package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/storage"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/vision"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/shopspring/decimal"
)

// Three base64 photos straight off a phone camera.
const bodyLimit = 32 * 1024 * 1024

func main() {
	// Structured logging (JSON to stdout)
	stdout := logging.Setup()

	cfg := config.Load()

	// Weights go out as JSON numbers, like coordinates
	decimal.MarshalJSONWithoutQuotes = true

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(stdout, pgLogHandler)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	metrics.Register()

	// Pipeline components
	images := storage.NewFromConfig(cfg)
	adjudicator := vision.NewFromConfig(cfg)
	responseCache := cache.NewMemory(cfg.CacheTTL)
	pickupStore := store.NewGormStore(database.DB)

	reportService := services.NewReportService(pickupStore, adjudicator, images, responseCache, cfg)
	verificationService := services.NewVerificationService(pickupStore, adjudicator, images, responseCache, cfg)
	feedService := services.NewFeedService(pickupStore, responseCache)

	slog.Info("pipeline ready",
		"vision", cfg.VisionProvider,
		"s3", cfg.S3Bucket != "",
		"confidence_threshold", cfg.ConfidenceThreshold,
	)

	// Handlers
	pickupHandler := handlers.NewPickupHandler(reportService, verificationService, handlers.NewValidator())
	feedHandler := handlers.NewFeedHandler(feedService)
	healthHandler := handlers.NewHealthHandler(database.Ping, cfg.VisionProvider)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    bodyLimit,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AITimeout + 30*time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	// Routes
	routes.Setup(app, cfg, pickupHandler, feedHandler, healthHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(cfg.AITimeout); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	kind := string(services.KindInvalidInput)
	switch {
	case code == fiber.StatusUnauthorized:
		kind = string(services.KindUnauthenticated)
	case code == fiber.StatusNotFound:
		kind = string(services.KindNotFound)
	case code >= 500:
		// Only expose error details for client errors (4xx), not server errors (5xx)
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		kind = string(services.KindInternal)
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Kind:    kind,
		Message: message,
	})
}
