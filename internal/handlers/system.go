package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/touchstonehq/touchstone/internal/models"
	"gorm.io/gorm"
)

const Version = "1.2.0"

type SystemHandler struct {
	db *gorm.DB
}

func NewSystemHandler(db *gorm.DB) *SystemHandler {
	return &SystemHandler{db: db}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": Version,
	})
}

// DashboardOverview returns headline counts for the landing page.
func (h *SystemHandler) DashboardOverview(c *fiber.Ctx) error {
	var accounts, openJobs, users, events, expiring int64

	h.db.Model(&models.Account{}).Count(&accounts)
	h.db.Model(&models.SupportJob{}).Where("status <> ?", "done").Count(&openJobs)
	h.db.Model(&models.User{}).Where("active = ?", true).Count(&users)
	h.db.Model(&models.Event{}).Count(&events)
	h.db.Model(&models.License{}).
		Where("expiry_date IS NOT NULL AND expiry_date BETWEEN ? AND ?", time.Now(), time.Now().AddDate(0, 0, 30)).
		Count(&expiring)

	return c.JSON(fiber.Map{
		"accounts":          accounts,
		"open_jobs":         openJobs,
		"active_users":      users,
		"audit_events":      events,
		"licenses_expiring": expiring,
	})
}
