package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel is embedded by every row the engine itself owns (queue rows,
// audit rows, sync status, dry-run captures). Identity is a generated
// UUID, matching the engine's process-lifetime ownership of these rows.
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID when the caller left ID unset.
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	return nil
}

// CatalogModel is embedded by OPMS catalog rows (Item, Product). OPMS is
// the system of record for these ids; the engine reads and joins against
// them but never mints new ones, so identity here is the plain numeric id
// OPMS assigned, not a generated UUID.
type CatalogModel struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
