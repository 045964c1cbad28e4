package models

import "github.com/tatidev/opms-erp-sync/internal/eventdata"

// Provenance keys the detection layer that produced a ChangeLog entry.
type Provenance string

const (
	ProvenanceTrigger Provenance = "TRIGGER"
	ProvenancePolling Provenance = "POLLING"
	ProvenanceManual  Provenance = "MANUAL"
	ProvenanceWebhook Provenance = "WEBHOOK"
)

// ChangeLog is the append-only audit table of detected changes, with an
// Enqueued flag and a SkipReason for changes that did not become a
// SyncJob. The table is migrated by database.Migrate; no component in
// this repository writes ChangeLog rows.
type ChangeLog struct {
	BaseModel
	ItemID     uint                `gorm:"column:item_id;index" json:"item_id"`
	ProductID  uint                `gorm:"column:product_id;index" json:"product_id"`
	Provenance Provenance          `gorm:"column:provenance;index" json:"provenance"`
	EventData  eventdata.EventData `gorm:"column:event_data;type:jsonb" json:"event_data"`
	Enqueued   bool                `gorm:"column:enqueued" json:"enqueued"`
	SkipReason string              `gorm:"column:skip_reason" json:"skip_reason,omitempty"`
}

func (ChangeLog) TableName() string { return "opms_change_log" }
