package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/touchstonehq/touchstone/internal/audit"
	"github.com/touchstonehq/touchstone/internal/middleware"
	"github.com/touchstonehq/touchstone/internal/models"
	"gorm.io/gorm"
)

type LicenseHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

func NewLicenseHandler(db *gorm.DB, rec *audit.Recorder) *LicenseHandler {
	return &LicenseHandler{db: db, audit: rec}
}

type licenseRequest struct {
	Product    string     `json:"product"`
	Seats      int        `json:"seats"`
	StartDate  *time.Time `json:"start_date"`
	ExpiryDate *time.Time `json:"expiry_date"`
	NetAmount  float64    `json:"net_amount"`
	VATPercent *float64   `json:"vat_percent"`
}

func (r *licenseRequest) apply(l *models.License) {
	l.Product = strings.TrimSpace(r.Product)
	if r.Seats > 0 {
		l.Seats = r.Seats
	}
	l.StartDate = r.StartDate
	l.ExpiryDate = r.ExpiryDate
	l.NetAmount = r.NetAmount
	if r.VATPercent != nil {
		l.VATPercent = *r.VATPercent
	}
	l.Recalculate()
}

// ListLicenses returns an account's licenses.
func (h *LicenseHandler) ListLicenses(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid account ID",
		})
	}
	var licenses []models.License
	if err := h.db.Where("account_id = ?", accountID).Order("created_at DESC").Find(&licenses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list licenses",
		})
	}
	return c.JSON(fiber.Map{"licenses": licenses})
}

// CreateLicense attaches a license to an account.
func (h *LicenseHandler) CreateLicense(c *fiber.Ctx) error {
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

	var req licenseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Product) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Product is required",
		})
	}

	license := models.License{AccountID: accountID, Seats: 1, VATPercent: 15}
	req.apply(&license)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&license).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Created(tx, audit.TableLicense, license.ID, userID, licenseSnapshot(tx, &license))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create license",
		})
	}
	h.audit.Announce(ev)

	return c.Status(fiber.StatusCreated).JSON(license)
}

// UpdateLicense applies a full-form update and recalculates the total.
func (h *LicenseHandler) UpdateLicense(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid license ID",
		})
	}

	var license models.License
	if err := h.db.First(&license, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "License not found",
		})
	}

	var req licenseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Product) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Product is required",
		})
	}

	before := licenseSnapshot(h.db, &license)
	req.apply(&license)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&license).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Updated(tx, audit.TableLicense, license.ID, userID, before, licenseSnapshot(tx, &license))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update license",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(license)
}

// DeleteLicense removes a license and its detail lines in one transaction.
// Detail lines are deleted silently; the license delete event records the
// parent's final state.
func (h *LicenseHandler) DeleteLicense(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid license ID",
		})
	}

	var license models.License
	if err := h.db.First(&license, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "License not found",
		})
	}

	fields := licenseSnapshot(h.db, &license)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.LicenseDetail{}, "license_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.License{}, "id = ?", id).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Deleted(tx, audit.TableLicense, license.ID, userID, fields)
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to delete license",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(fiber.Map{"message": "License deleted"})
}

type licenseDetailRequest struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

func (r *licenseDetailRequest) apply(d *models.LicenseDetail) {
	d.Description = strings.TrimSpace(r.Description)
	if r.Quantity > 0 {
		d.Quantity = r.Quantity
	}
	d.UnitPrice = r.UnitPrice
	d.Recalculate()
}

// ListDetails returns a license's detail lines.
func (h *LicenseHandler) ListDetails(c *fiber.Ctx) error {
	licenseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid license ID",
		})
	}
	var details []models.LicenseDetail
	if err := h.db.Where("license_id = ?", licenseID).Order("created_at ASC").Find(&details).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list license details",
		})
	}
	return c.JSON(fiber.Map{"details": details})
}

// CreateDetail adds a detail line to a license.
func (h *LicenseHandler) CreateDetail(c *fiber.Ctx) error {
	licenseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid license ID",
		})
	}
	if err := h.db.First(&models.License{}, "id = ?", licenseID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "License not found",
		})
	}

	var req licenseDetailRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Description) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Description is required",
		})
	}

	detail := models.LicenseDetail{LicenseID: licenseID, Quantity: 1}
	req.apply(&detail)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&detail).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Created(tx, audit.TableLicenseDetail, detail.ID, userID, licenseDetailSnapshot(tx, &detail))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create license detail",
		})
	}
	h.audit.Announce(ev)

	return c.Status(fiber.StatusCreated).JSON(detail)
}

// UpdateDetail applies a full-form update to a detail line.
func (h *LicenseHandler) UpdateDetail(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid detail ID",
		})
	}

	var detail models.LicenseDetail
	if err := h.db.First(&detail, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "License detail not found",
		})
	}

	var req licenseDetailRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Description) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Description is required",
		})
	}

	before := licenseDetailSnapshot(h.db, &detail)
	req.apply(&detail)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&detail).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Updated(tx, audit.TableLicenseDetail, detail.ID, userID, before, licenseDetailSnapshot(tx, &detail))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update license detail",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(detail)
}

// DeleteDetail removes a detail line.
func (h *LicenseHandler) DeleteDetail(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid detail ID",
		})
	}

	var detail models.LicenseDetail
	if err := h.db.First(&detail, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "License detail not found",
		})
	}

	fields := licenseDetailSnapshot(h.db, &detail)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.LicenseDetail{}, "id = ?", id).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Deleted(tx, audit.TableLicenseDetail, detail.ID, userID, fields)
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to delete license detail",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(fiber.Map{"message": "License detail deleted"})
}
