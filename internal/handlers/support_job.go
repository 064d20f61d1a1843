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

type SupportJobHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

func NewSupportJobHandler(db *gorm.DB, rec *audit.Recorder) *SupportJobHandler {
	return &SupportJobHandler{db: db, audit: rec}
}

type supportJobRequest struct {
	AccountID    uuid.UUID  `json:"account_id"`
	AssignedToID *uuid.UUID `json:"assigned_to_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	ReportedAt   *time.Time `json:"reported_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	HoursSpent   float64    `json:"hours_spent"`
	HourlyRate   float64    `json:"hourly_rate"`
	VATPercent   *float64   `json:"vat_percent"`
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

func (r *supportJobRequest) apply(j *models.SupportJob) {
	j.AssignedToID = r.AssignedToID
	j.Title = strings.TrimSpace(r.Title)
	j.Description = r.Description
	if oneOf(r.Priority, models.JobPriorities) {
		j.Priority = r.Priority
	}
	if oneOf(r.Status, models.JobStatuses) {
		j.Status = r.Status
	}
	if r.ReportedAt != nil {
		j.ReportedAt = *r.ReportedAt
	}
	j.CompletedAt = r.CompletedAt
	if j.Status == "done" && j.CompletedAt == nil {
		now := time.Now()
		j.CompletedAt = &now
	}
	j.HoursSpent = r.HoursSpent
	j.HourlyRate = r.HourlyRate
	if r.VATPercent != nil {
		j.VATPercent = *r.VATPercent
	}
	j.Recalculate()
}

var jobSortColumns = map[string]string{
	"reported_at": "reported_at",
	"priority":    "priority",
	"status":      "status",
	"title":       "title",
}

// ListJobs returns support jobs filtered and sorted by query params:
// account_id, assigned_to_id, status, priority, from/to (reported_at range),
// sort, order.
func (h *SupportJobHandler) ListJobs(c *fiber.Ctx) error {
	query := h.db.Model(&models.SupportJob{})

	if v := c.Query("account_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			query = query.Where("account_id = ?", id)
		}
	}
	if v := c.Query("assigned_to_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			query = query.Where("assigned_to_id = ?", id)
		}
	}
	if v := c.Query("status"); oneOf(v, models.JobStatuses) {
		query = query.Where("status = ?", v)
	}
	if v := c.Query("priority"); oneOf(v, models.JobPriorities) {
		query = query.Where("priority = ?", v)
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			query = query.Where("reported_at >= ?", t)
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			query = query.Where("reported_at <= ?", t)
		}
	}

	sort := jobSortColumns[c.Query("sort")]
	if sort == "" {
		sort = "reported_at"
	}
	order := "DESC"
	if strings.EqualFold(c.Query("order"), "asc") {
		order = "ASC"
	}

	var jobs []models.SupportJob
	if err := query.Order(sort + " " + order).Find(&jobs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list support jobs",
		})
	}
	return c.JSON(fiber.Map{"jobs": jobs, "total": len(jobs)})
}

// GetJob returns one support job.
func (h *SupportJobHandler) GetJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid job ID",
		})
	}
	var job models.SupportJob
	if err := h.db.First(&job, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Job not found",
		})
	}
	return c.JSON(job)
}

// CreateJob opens a support job against an account.
func (h *SupportJobHandler) CreateJob(c *fiber.Ctx) error {
	var req supportJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Title is required",
		})
	}
	if err := h.db.First(&models.Account{}, "id = ?", req.AccountID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Account not found",
		})
	}

	job := models.SupportJob{
		AccountID:  req.AccountID,
		Priority:   "normal",
		Status:     "open",
		ReportedAt: time.Now(),
		VATPercent: 15,
	}
	req.apply(&job)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&job).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Created(tx, audit.TableSupportJob, job.ID, userID, jobSnapshot(tx, &job))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create support job",
		})
	}
	h.audit.Announce(ev)

	return c.Status(fiber.StatusCreated).JSON(job)
}

// UpdateJob applies a full-form update and recalculates the charge.
func (h *SupportJobHandler) UpdateJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid job ID",
		})
	}

	var job models.SupportJob
	if err := h.db.First(&job, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Job not found",
		})
	}

	var req supportJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Title is required",
		})
	}

	before := jobSnapshot(h.db, &job)
	req.apply(&job)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&job).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Updated(tx, audit.TableSupportJob, job.ID, userID, before, jobSnapshot(tx, &job))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update support job",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(job)
}

// DeleteJob removes a support job.
func (h *SupportJobHandler) DeleteJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid job ID",
		})
	}

	var job models.SupportJob
	if err := h.db.First(&job, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Job not found",
		})
	}

	fields := jobSnapshot(h.db, &job)
	userID := middleware.CurrentUserID(c)

	var ev *models.Event
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.SupportJob{}, "id = ?", id).Error; err != nil {
			return err
		}
		var err error
		ev, err = h.audit.Deleted(tx, audit.TableSupportJob, job.ID, userID, fields)
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to delete support job",
		})
	}
	h.audit.Announce(ev)

	return c.JSON(fiber.Map{"message": "Job deleted"})
}
