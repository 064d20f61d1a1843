package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SupportJob struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"account_id"`
	AssignedToID *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to_id"`
	Title        string     `gorm:"not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Priority     string     `gorm:"default:'normal'" json:"priority"` // low, normal, high
	Status       string     `gorm:"default:'open';index" json:"status"` // open, in_progress, done
	ReportedAt   time.Time  `gorm:"not null" json:"reported_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	HoursSpent   float64    `json:"hours_spent"`
	HourlyRate   float64    `json:"hourly_rate"`
	VATPercent   float64    `gorm:"default:15" json:"vat_percent"`
	ChargeTotal  float64    `json:"charge_total"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Recalculate derives the VAT-inclusive charge from hours and rate.
func (j *SupportJob) Recalculate() {
	j.ChargeTotal = round2(j.HoursSpent * j.HourlyRate * (1 + j.VATPercent/100))
}

func (j *SupportJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

var JobPriorities = []string{"low", "normal", "high"}
var JobStatuses = []string{"open", "in_progress", "done"}
