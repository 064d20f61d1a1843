package handlers

import (
	"github.com/google/uuid"
	"github.com/touchstonehq/touchstone/internal/audit"
	"github.com/touchstonehq/touchstone/internal/models"
	"gorm.io/gorm"
)

// Snapshot builders: one per audited entity, shared by every capture site so
// create, update and delete events describe a record with the same field set.
// Related records resolve to their display label; absent relations resolve
// to the placeholder.

func picklistLabel(db *gorm.DB, table string, id *uuid.UUID) string {
	if id == nil {
		return audit.Placeholder
	}
	var e models.PicklistEntry
	if err := db.Table(table).First(&e, "id = ?", *id).Error; err != nil {
		return audit.Placeholder
	}
	return e.Identifier
}

func accountLabel(db *gorm.DB, id uuid.UUID) string {
	var a models.Account
	if err := db.First(&a, "id = ?", id).Error; err != nil {
		return audit.Placeholder
	}
	return a.Name
}

func userLabel(db *gorm.DB, id *uuid.UUID) string {
	if id == nil {
		return audit.Placeholder
	}
	var u models.User
	if err := db.First(&u, "id = ?", *id).Error; err != nil {
		return audit.Placeholder
	}
	return u.DisplayName
}

func licenseLabel(db *gorm.DB, id uuid.UUID) string {
	var l models.License
	if err := db.First(&l, "id = ?", id).Error; err != nil {
		return audit.Placeholder
	}
	return l.Product
}

func accountSnapshot(db *gorm.DB, a *models.Account) audit.Snapshot {
	return audit.Snapshot{
		"name":           a.Name,
		"contact_person": a.ContactPerson,
		"email":          a.Email,
		"phone":          a.Phone,
		"address":        a.Address,
		"area":           picklistLabel(db, "areas", a.AreaID),
		"city":           picklistLabel(db, "cities", a.CityID),
		"group":          picklistLabel(db, "groups", a.GroupID),
		"operator":       picklistLabel(db, "operators", a.OperatorID),
		"sector":         picklistLabel(db, "sectors", a.SectorID),
		"status":         picklistLabel(db, "statuses", a.StatusID),
		"notes":          a.Notes,
	}
}

func licenseSnapshot(db *gorm.DB, l *models.License) audit.Snapshot {
	return audit.Snapshot{
		"account":     accountLabel(db, l.AccountID),
		"product":     l.Product,
		"seats":       l.Seats,
		"start_date":  l.StartDate,
		"expiry_date": l.ExpiryDate,
		"net_amount":  l.NetAmount,
		"vat_percent": l.VATPercent,
		"total":       l.Total,
	}
}

func licenseDetailSnapshot(db *gorm.DB, d *models.LicenseDetail) audit.Snapshot {
	return audit.Snapshot{
		"license":     licenseLabel(db, d.LicenseID),
		"description": d.Description,
		"quantity":    d.Quantity,
		"unit_price":  d.UnitPrice,
		"line_total":  d.LineTotal,
	}
}

func databaseSnapshot(db *gorm.DB, d *models.ClientDatabase) audit.Snapshot {
	return audit.Snapshot{
		"account": accountLabel(db, d.AccountID),
		"name":    d.Name,
		"server":  d.Server,
		"version": d.Version,
		"size_mb": d.SizeMB,
	}
}

func jobSnapshot(db *gorm.DB, j *models.SupportJob) audit.Snapshot {
	return audit.Snapshot{
		"account":      accountLabel(db, j.AccountID),
		"assigned_to":  userLabel(db, j.AssignedToID),
		"title":        j.Title,
		"description":  j.Description,
		"priority":     j.Priority,
		"status":       j.Status,
		"reported_at":  j.ReportedAt,
		"completed_at": j.CompletedAt,
		"hours_spent":  j.HoursSpent,
		"hourly_rate":  j.HourlyRate,
		"vat_percent":  j.VATPercent,
		"charge_total": j.ChargeTotal,
	}
}

// userSnapshot never includes the password hash; password-only changes leave
// an update event with an empty change set.
func userSnapshot(u *models.User) audit.Snapshot {
	return audit.Snapshot{
		"username":     u.Username,
		"display_name": u.DisplayName,
		"email":        u.Email,
		"role":         u.Role,
		"active":       u.Active,
	}
}
