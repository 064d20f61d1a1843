package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/touchstonehq/touchstone/internal/audit"
	"github.com/touchstonehq/touchstone/internal/config"
	"github.com/touchstonehq/touchstone/internal/database"
	"github.com/touchstonehq/touchstone/internal/handlers"
	"github.com/touchstonehq/touchstone/internal/metrics"
	"github.com/touchstonehq/touchstone/internal/routes"
)

func main() {
	// JSON structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting Touchstone", "version", handlers.Version)

	// ─── Config ──────────────────────────────────────────────────────────
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	// ─── Database ────────────────────────────────────────────────────────
	if err := database.Connect(cfg); err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}
	db := database.DB

	if err := database.Migrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	if err := database.SeedAdmin(db, cfg); err != nil {
		slog.Error("Admin seed failed", "error", err)
		os.Exit(1)
	}

	// ─── Metrics ─────────────────────────────────────────────────────────
	metrics.Init()

	// ─── Audit ───────────────────────────────────────────────────────────
	hub := audit.NewHub()
	recorder := audit.NewRecorder(hub)

	// ─── Handlers ────────────────────────────────────────────────────────
	authHandler := handlers.NewAuthHandler(db, cfg, recorder)
	accountHandler := handlers.NewAccountHandler(db, recorder)
	licenseHandler := handlers.NewLicenseHandler(db, recorder)
	databaseHandler := handlers.NewClientDatabaseHandler(db, recorder)
	jobHandler := handlers.NewSupportJobHandler(db, recorder)
	picklistHandler := handlers.NewPicklistHandler(db, recorder)
	userHandler := handlers.NewUserHandler(db, recorder)
	auditHandler := handlers.NewAuditHandler(db, hub)
	exportHandler := handlers.NewExportHandler(db)
	systemHandler := handlers.NewSystemHandler(db)

	// ─── Fiber App ───────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      "touchstone v" + handlers.Version,
		ServerHeader: "touchstone",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": message,
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	}))

	app.Use(recover.New(recover.Config{
		EnableStackTrace: false,
	}))

	// Security headers
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	app.Use(metrics.Middleware())

	// Request logger
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if c.Path() == "/api/health" || c.Path() == "/metrics" {
			return err
		}
		slog.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		)
		return err
	})

	// ─── Routes ──────────────────────────────────────────────────────────
	routes.Setup(app, cfg, authHandler, accountHandler, licenseHandler,
		databaseHandler, jobHandler, picklistHandler, userHandler,
		auditHandler, exportHandler, systemHandler)

	// ─── Graceful Shutdown ───────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down Touchstone...")

		if err := app.Shutdown(); err != nil {
			slog.Error("Fiber shutdown error", "error", err)
		}

		if sqlDB, err := database.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	// ─── Start ───────────────────────────────────────────────────────────
	listenAddr := ":" + cfg.Port
	slog.Info("Touchstone listening", "addr", listenAddr)

	if err := app.Listen(listenAddr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
