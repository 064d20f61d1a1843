package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/touchstonehq/touchstone/internal/audit"
	"github.com/touchstonehq/touchstone/internal/middleware"
	"github.com/touchstonehq/touchstone/internal/models"
	"gorm.io/gorm"
)

type ClientDatabaseHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

func NewClientDatabaseHandler(db *gorm.DB, rec *audit.Recorder) *ClientDatabaseHandler {
	return &ClientDatabaseHandler{db: db, audit: rec}
}

type clientDatabaseRequest struct {
	Name    string  `json:"name"`
	Server  string  `json:"server"`
	Version string  `json:"version"`
	SizeMB  float64 `json:"size_mb"`
}

func (r *clientDatabaseRequest) apply(d *models.ClientDatabase) {
	d.Name = strings.TrimSpace(r.Name)
	d.Server = r.Server
	d.Version = r.Version
	d.SizeMB = r.SizeMB
}

// ListDatabases returns an account's database records.
func (h *ClientDatabaseHandler) ListDatabases(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}
	var databases []models.ClientDatabase
	if err := h.db.Where("account_id = ?", accountID).Order("name ASC").Find(&databases).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list databases",
		})
	}
	return c.JSON(fiber.Map{"databases": databases})
}

// CreateDatabase records a client database under an account.
func (h *ClientDatabaseHandler) CreateDatabase(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}
	if err := h.db.First(&models.Account{}, "id = ?", accountID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Account not found",
		})
	}

	var req clientDatabaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Name is required",
		})
	}

	database := models.ClientDatabase{AccountID: accountID}
	req.apply(&database)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&database).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Created(tx, audit.TableDatabase, database.ID, userID, databaseSnapshot(tx, &database))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create database record",
		})
	}
	h.audit.Announce(ev)

	return c.Status(fiber.StatusCreated).JSON(database)
}

// UpdateDatabase applies a full-form update.
func (h *ClientDatabaseHandler) UpdateDatabase(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid database ID",
		})
	}

	var database models.ClientDatabase
	if err := h.db.First(&database, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Database record not found",
		})
	}

	var req clientDatabaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Name is required",
		})
	}

	before := databaseSnapshot(h.db, &database)
	req.apply(&database)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&database).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Updated(tx, audit.TableDatabase, database.ID, userID, before, databaseSnapshot(tx, &database))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update database record",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(database)
}

// DeleteDatabase removes a database record.
func (h *ClientDatabaseHandler) DeleteDatabase(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid database ID",
		})
	}

	var database models.ClientDatabase
	if err := h.db.First(&database, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Database record not found",
		})
	}

	fields := databaseSnapshot(h.db, &database)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ClientDatabase{}, "id = ?", id).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Deleted(tx, audit.TableDatabase, database.ID, userID, fields)
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to delete database record",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(fiber.Map{"message": "Database record deleted"})
}
