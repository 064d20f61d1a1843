package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type License struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"account_id"`
	Product    string     `gorm:"not null" json:"product"`
	Seats      int        `gorm:"default:1" json:"seats"`
	StartDate  *time.Time `json:"start_date"`
	ExpiryDate *time.Time `json:"expiry_date"`
	NetAmount  float64    `json:"net_amount"`
	VATPercent float64    `gorm:"default:15" json:"vat_percent"`
	Total      float64    `json:"total"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Recalculate derives the VAT-inclusive total from the net amount, rounded
// to cents.
func (l *License) Recalculate() {
	l.Total = round2(l.NetAmount * (1 + l.VATPercent/100))
}

func (l *License) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

type LicenseDetail struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LicenseID   uuid.UUID `gorm:"type:uuid;not null;index" json:"license_id"`
	Description string    `gorm:"not null" json:"description"`
	Quantity    int       `gorm:"default:1" json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	LineTotal   float64   `json:"line_total"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (d *LicenseDetail) Recalculate() {
	d.LineTotal = round2(float64(d.Quantity) * d.UnitPrice)
}

func (d *LicenseDetail) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
