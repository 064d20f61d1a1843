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

// PicklistHandler serves all six picklist types through one generic code
// path; the :type URL segment selects the physical table.
type PicklistHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

func NewPicklistHandler(db *gorm.DB, rec *audit.Recorder) *PicklistHandler {
	return &PicklistHandler{db: db, audit: rec}
}

// accountColumns maps a picklist type to the accounts column referencing it,
// used for the in-use check before delete.
var accountColumns = map[string]string{
	"area":     "area_id",
	"city":     "city_id",
	"group":    "group_id",
	"operator": "operator_id",
	"sector":   "sector_id",
	"status":   "status_id",
}

func (h *PicklistHandler) table(c *fiber.Ctx) (name, table string, ok bool) {
	name = strings.ToLower(c.Params("type"))
	table, ok = models.PicklistTables[name]
	return name, table, ok
}

// ListAll returns every picklist type with its entries, for form dropdowns.
func (h *PicklistHandler) ListAll(c *fiber.Ctx) error {
	out := fiber.Map{}
	for _, name := range models.PicklistNames {
		var entries []models.PicklistEntry
		if err := h.db.Table(models.PicklistTables[name]).Order("identifier ASC").Find(&entries).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   true,
				"message": "Failed to list picklists",
			})
		}
		out[name] = entries
	}
	return c.JSON(fiber.Map{"picklists": out})
}

// List returns one picklist type's entries.
func (h *PicklistHandler) List(c *fiber.Ctx) error {
	name, table, ok := h.table(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Unknown picklist type",
		})
	}
	var entries []models.PicklistEntry
	if err := h.db.Table(table).Order("identifier ASC").Find(&entries).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list " + name + " entries",
		})
	}
	return c.JSON(fiber.Map{"type": name, "entries": entries})
}

// Create adds a picklist entry.
func (h *PicklistHandler) Create(c *fiber.Ctx) error {
	name, table, ok := h.table(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Unknown picklist type",
		})
	}

	var req struct {
		Identifier string `json:"identifier"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Identifier is required",
		})
	}

	entry := models.PicklistEntry{Identifier: req.Identifier}
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(table).Create(&entry).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Created(tx, name, entry.ID, userID, audit.Snapshot{
			"identifier": entry.Identifier,
		})
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create " + name + " entry",
		})
	}
	h.audit.Announce(ev)

	return c.Status(fiber.StatusCreated).JSON(entry)
}

// Update renames a picklist entry.
func (h *PicklistHandler) Update(c *fiber.Ctx) error {
	name, table, ok := h.table(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Unknown picklist type",
		})
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid entry ID",
		})
	}

	var req struct {
		Identifier string `json:"identifier"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Identifier is required",
		})
	}

	var entry models.PicklistEntry
	if err := h.db.Table(table).First(&entry, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Entry not found",
		})
	}

	before := audit.Snapshot{"identifier": entry.Identifier}
	entry.Identifier = req.Identifier
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(table).Save(&entry).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Updated(tx, name, entry.ID, userID, before, audit.Snapshot{
			"identifier": entry.Identifier,
		})
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update " + name + " entry",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(entry)
}

// Delete removes a picklist entry unless an account still references it.
func (h *PicklistHandler) Delete(c *fiber.Ctx) error {
	name, table, ok := h.table(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Unknown picklist type",
		})
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid entry ID",
		})
	}

	var entry models.PicklistEntry
	if err := h.db.Table(table).First(&entry, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Entry not found",
		})
	}

	var inUse int64
	h.db.Model(&models.Account{}).Where(accountColumns[name]+" = ?", id).Count(&inUse)
	if inUse > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "Entry is referenced by existing accounts",
		})
	}

	userID := middleware.CurrentUserID(c)
	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(table).Delete(&models.PicklistEntry{}, "id = ?", id).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Deleted(tx, name, entry.ID, userID, audit.Snapshot{
			"identifier": entry.Identifier,
		})
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to delete " + name + " entry",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(fiber.Map{"message": "Entry deleted"})
}
