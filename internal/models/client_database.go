package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientDatabase is a customer database under support (the "Database"
// business record, named to avoid clashing with the database package).
type ClientDatabase struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index" json:"account_id"`
	Name      string    `gorm:"not null" json:"name"`
	Server    string    `json:"server"`
	Version   string    `json:"version"`
	SizeMB    float64   `json:"size_mb"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ClientDatabase) TableName() string { return "client_databases" }

func (d *ClientDatabase) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
