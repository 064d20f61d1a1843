package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/touchstonehq/touchstone/internal/config"
	"github.com/touchstonehq/touchstone/internal/handlers"
	"github.com/touchstonehq/touchstone/internal/metrics"
	"github.com/touchstonehq/touchstone/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	accountHandler *handlers.AccountHandler,
	licenseHandler *handlers.LicenseHandler,
	databaseHandler *handlers.ClientDatabaseHandler,
	jobHandler *handlers.SupportJobHandler,
	picklistHandler *handlers.PicklistHandler,
	userHandler *handlers.UserHandler,
	auditHandler *handlers.AuditHandler,
	exportHandler *handlers.ExportHandler,
	systemHandler *handlers.SystemHandler,
) {
	// ─── Public ──────────────────────────────────────────────────────────
	app.Get("/api/health", systemHandler.Health)
	app.Get("/metrics", metrics.Handler())

	// ─── Auth ────────────────────────────────────────────────────────────
	app.Post("/api/auth/login", authHandler.Login)
	app.Post("/api/auth/refresh", authHandler.Refresh)

	// ─── Protected routes ────────────────────────────────────────────────
	api := app.Group("/api", middleware.JWTProtected(cfg.JWTSecret))

	// Auth (protected)
	api.Get("/auth/me", authHandler.Me)
	api.Put("/auth/password", authHandler.ChangePassword)

	// Dashboard
	api.Get("/dashboard/overview", systemHandler.DashboardOverview)

	// Accounts
	api.Get("/accounts", accountHandler.ListAccounts)
	api.Post("/accounts", accountHandler.CreateAccount)
	api.Get("/accounts/:id", accountHandler.GetAccount)
	api.Put("/accounts/:id", accountHandler.UpdateAccount)
	api.Delete("/accounts/:id", accountHandler.DeleteAccount)

	// Licenses
	api.Get("/accounts/:id/licenses", licenseHandler.ListLicenses)
	api.Post("/accounts/:id/licenses", licenseHandler.CreateLicense)
	api.Put("/licenses/:id", licenseHandler.UpdateLicense)
	api.Delete("/licenses/:id", licenseHandler.DeleteLicense)
	api.Get("/licenses/:id/details", licenseHandler.ListDetails)
	api.Post("/licenses/:id/details", licenseHandler.CreateDetail)
	api.Put("/license-details/:id", licenseHandler.UpdateDetail)
	api.Delete("/license-details/:id", licenseHandler.DeleteDetail)

	// Client databases
	api.Get("/accounts/:id/databases", databaseHandler.ListDatabases)
	api.Post("/accounts/:id/databases", databaseHandler.CreateDatabase)
	api.Put("/databases/:id", databaseHandler.UpdateDatabase)
	api.Delete("/databases/:id", databaseHandler.DeleteDatabase)

	// Support jobs
	api.Get("/jobs", jobHandler.ListJobs)
	api.Post("/jobs", jobHandler.CreateJob)
	api.Get("/jobs/:id", jobHandler.GetJob)
	api.Put("/jobs/:id", jobHandler.UpdateJob)
	api.Delete("/jobs/:id", jobHandler.DeleteJob)

	// Picklists
	api.Get("/picklists", picklistHandler.ListAll)
	api.Get("/picklists/:type", picklistHandler.List)
	api.Post("/picklists/:type", picklistHandler.Create)
	api.Put("/picklists/:type/:id", picklistHandler.Update)
	api.Delete("/picklists/:type/:id", picklistHandler.Delete)

	// Users
	api.Get("/users", userHandler.ListUsers)
	api.Post("/users", userHandler.CreateUser)
	api.Put("/users/:id", userHandler.UpdateUser)
	api.Delete("/users/:id", userHandler.DeleteUser)

	// Audit trail
	api.Get("/audit", auditHandler.GetFeed)
	api.Get("/audit/tables", auditHandler.GetTables)
	api.Use("/audit/stream", auditHandler.UpgradeCheck())
	api.Get("/audit/stream", auditHandler.Stream())

	// Excel export
	api.Get("/export/accounts", exportHandler.ExportAccounts)
	api.Get("/export/jobs", exportHandler.ExportJobs)
}
