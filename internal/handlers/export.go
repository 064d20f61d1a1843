package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/touchstonehq/touchstone/internal/models"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	db *gorm.DB
}

func NewExportHandler(db *gorm.DB) *ExportHandler {
	return &ExportHandler{db: db}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			continue
		}
		f.SetCellValue(sheet, cell, v)
	}
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// ExportAccounts writes all accounts to an Excel workbook, with picklist
// references resolved to their labels.
func (h *ExportHandler) ExportAccounts(c *fiber.Ctx) error {
	var accounts []models.Account
	if err := h.db.Order("name ASC").Find(&accounts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to load accounts",
		})
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Accounts"
	f.SetSheetName("Sheet1", sheet)

	writeRow(f, sheet, 1, []any{
		"Name", "Contact Person", "Email", "Phone", "Address",
		"Area", "City", "Group", "Operator", "Sector", "Status", "Created",
	})
	for i, a := range accounts {
		writeRow(f, sheet, i+2, []any{
			a.Name, a.ContactPerson, a.Email, a.Phone, a.Address,
			picklistLabel(h.db, "areas", a.AreaID),
			picklistLabel(h.db, "cities", a.CityID),
			picklistLabel(h.db, "groups", a.GroupID),
			picklistLabel(h.db, "operators", a.OperatorID),
			picklistLabel(h.db, "sectors", a.SectorID),
			picklistLabel(h.db, "statuses", a.StatusID),
			a.CreatedAt.Format("2006-01-02"),
		})
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to build workbook",
		})
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="accounts-%s.xlsx"`, time.Now().Format("2006-01-02")))
	return c.Send(buf.Bytes())
}

// ExportJobs writes all support jobs to an Excel workbook.
func (h *ExportHandler) ExportJobs(c *fiber.Ctx) error {
	var jobs []models.SupportJob
	if err := h.db.Order("reported_at DESC").Find(&jobs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to load support jobs",
		})
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Support Jobs"
	f.SetSheetName("Sheet1", sheet)

	writeRow(f, sheet, 1, []any{
		"Account", "Title", "Assigned To", "Priority", "Status",
		"Reported", "Completed", "Hours", "Rate", "VAT %", "Charge Total",
	})
	for i, j := range jobs {
		writeRow(f, sheet, i+2, []any{
			accountLabel(h.db, j.AccountID),
			j.Title,
			userLabel(h.db, j.AssignedToID),
			j.Priority,
			j.Status,
			j.ReportedAt.Format("2006-01-02"),
			fmtDate(j.CompletedAt),
			j.HoursSpent,
			j.HourlyRate,
			j.VATPercent,
			j.ChargeTotal,
		})
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to build workbook",
		})
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="support-jobs-%s.xlsx"`, time.Now().Format("2006-01-02")))
	return c.Send(buf.Bytes())
}
