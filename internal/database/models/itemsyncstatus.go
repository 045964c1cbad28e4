package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncStatus is the per-item latest outcome, owned jointly by the
// Dispatcher (sync outcome fields) and the Webhook Applier (pricing
// fields are disjoint and live on OpmsPrice/OpmsCost, not here).
type SyncStatus string

const (
	SyncStatusSuccess    SyncStatus = "SUCCESS"
	SyncStatusSkipped    SyncStatus = "SKIPPED"
	SyncStatusInProgress SyncStatus = "IN_PROGRESS"
	SyncStatusFailed     SyncStatus = "FAILED"
)

// ItemSyncStatus is the per-item latest state row, keyed 1:1 on ItemID.
type ItemSyncStatus struct {
	BaseModel
	ItemID                  uint           `gorm:"column:item_id;uniqueIndex" json:"item_id"`
	Status                  SyncStatus     `gorm:"column:status" json:"status"`
	LastSyncAt              *time.Time     `gorm:"column:last_sync_at" json:"last_sync_at,omitempty"`
	ERPItemID               *uint          `gorm:"column:erp_item_id" json:"erp_item_id,omitempty"`
	LastError               string         `gorm:"column:last_error" json:"last_error,omitempty"`
	FieldValidationSummary  datatypes.JSON `gorm:"column:field_validation_summary;type:jsonb" json:"field_validation_summary,omitempty"`
}

func (ItemSyncStatus) TableName() string { return "opms_item_sync" }
