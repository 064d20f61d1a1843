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

type AccountHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

func NewAccountHandler(db *gorm.DB, rec *audit.Recorder) *AccountHandler {
	return &AccountHandler{db: db, audit: rec}
}

type accountRequest struct {
	Name          string     `json:"name"`
	ContactPerson string     `json:"contact_person"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address"`
	AreaID        *uuid.UUID `json:"area_id"`
	CityID        *uuid.UUID `json:"city_id"`
	GroupID       *uuid.UUID `json:"group_id"`
	OperatorID    *uuid.UUID `json:"operator_id"`
	SectorID      *uuid.UUID `json:"sector_id"`
	StatusID      *uuid.UUID `json:"status_id"`
	Notes         string     `json:"notes"`
}

func (r *accountRequest) apply(a *models.Account) {
	a.Name = strings.TrimSpace(r.Name)
	a.ContactPerson = r.ContactPerson
	a.Email = r.Email
	a.Phone = r.Phone
	a.Address = r.Address
	a.AreaID = r.AreaID
	a.CityID = r.CityID
	a.GroupID = r.GroupID
	a.OperatorID = r.OperatorID
	a.SectorID = r.SectorID
	a.StatusID = r.StatusID
	a.Notes = r.Notes
}

var accountSortColumns = map[string]string{
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// ListAccounts returns accounts filtered and sorted by query params:
// q (name/contact search), any picklist id, sort, order.
func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	query := h.db.Model(&models.Account{})

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(contact_person) LIKE ?", like, like)
	}
	for param, column := range accountColumns {
		if v := c.Query(param + "_id"); v != "" {
			if id, err := uuid.Parse(v); err == nil {
				query = query.Where(column+" = ?", id)
			}
		}
	}

	sort := accountSortColumns[c.Query("sort")]
	if sort == "" {
		sort = "name"
	}
	order := "ASC"
	if strings.EqualFold(c.Query("order"), "desc") {
		order = "DESC"
	}

	var accounts []models.Account
	if err := query.Order(sort + " " + order).Find(&accounts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list accounts",
		})
	}
	return c.JSON(fiber.Map{"accounts": accounts, "total": len(accounts)})
}

// GetAccount returns one account with its licenses, databases and jobs.
func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}

	var account models.Account
	if err := h.db.First(&account, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Account not found",
		})
	}

	var licenses []models.License
	h.db.Where("account_id = ?", id).Order("created_at DESC").Find(&licenses)
	var databases []models.ClientDatabase
	h.db.Where("account_id = ?", id).Order("name ASC").Find(&databases)
	var jobs []models.SupportJob
	h.db.Where("account_id = ?", id).Order("reported_at DESC").Find(&jobs)

	return c.JSON(fiber.Map{
		"account":   account,
		"licenses":  licenses,
		"databases": databases,
		"jobs":      jobs,
	})
}

// CreateAccount creates a customer record.
func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req accountRequest
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

	var account models.Account
	req.apply(&account)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Created(tx, audit.TableAccount, account.ID, userID, accountSnapshot(tx, &account))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create account",
		})
	}
	h.audit.Announce(ev)

	return c.Status(fiber.StatusCreated).JSON(account)
}

// UpdateAccount applies a full-form update.
func (h *AccountHandler) UpdateAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}

	var req accountRequest
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

	var account models.Account
	if err := h.db.First(&account, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Account not found",
		})
	}

	before := accountSnapshot(h.db, &account)
	req.apply(&account)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&account).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Updated(tx, audit.TableAccount, account.ID, userID, before, accountSnapshot(tx, &account))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update account",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(account)
}

// DeleteAccount removes an account with no remaining child records.
func (h *AccountHandler) DeleteAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}

	var account models.Account
	if err := h.db.First(&account, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Account not found",
		})
	}

	var children int64
	h.db.Model(&models.License{}).Where("account_id = ?", id).Count(&children)
	if children == 0 {
		h.db.Model(&models.SupportJob{}).Where("account_id = ?", id).Count(&children)
	}
	if children == 0 {
		h.db.Model(&models.ClientDatabase{}).Where("account_id = ?", id).Count(&children)
	}
	if children > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": "Account still has licenses, jobs or databases",
		})
	}

	fields := accountSnapshot(h.db, &account)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Account{}, "id = ?", id).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Deleted(tx, audit.TableAccount, account.ID, userID, fields)
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to delete account",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(fiber.Map{"message": "Account deleted"})
}
