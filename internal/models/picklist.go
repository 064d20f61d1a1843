package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PicklistEntry is the shared row shape of every picklist (reference data)
// type: Area, City, Group, Operator, Sector, Status. Each type keeps its own
// physical table; access goes through db.Table(PicklistTables[name]).
type PicklistEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Identifier string    `gorm:"not null;uniqueIndex" json:"identifier"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p *PicklistEntry) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PicklistTables maps the picklist type name used in URLs and audit tags to
// its physical table. Iteration order matters for grouped listings, so the
// names are kept separately.
var PicklistTables = map[string]string{
	"area":     "areas",
	"city":     "cities",
	"group":    "groups",
	"operator": "operators",
	"sector":   "sectors",
	"status":   "statuses",
}

var PicklistNames = []string{"area", "city", "group", "operator", "sector", "status"}
