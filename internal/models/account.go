package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Account struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string     `gorm:"not null;index" json:"name"`
	ContactPerson string     `json:"contact_person"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address"`
	AreaID        *uuid.UUID `gorm:"type:uuid" json:"area_id"`
	CityID        *uuid.UUID `gorm:"type:uuid" json:"city_id"`
	GroupID       *uuid.UUID `gorm:"type:uuid" json:"group_id"`
	OperatorID    *uuid.UUID `gorm:"type:uuid" json:"operator_id"`
	SectorID      *uuid.UUID `gorm:"type:uuid" json:"sector_id"`
	StatusID      *uuid.UUID `gorm:"type:uuid" json:"status_id"`
	Notes         string     `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
