package models

import "gorm.io/datatypes"

// DryRunRecord captures one Dry-Run Simulator execution: the payload it
// would have sent, the validation outcome, and a simulated response —
// never an actual network call.
type DryRunRecord struct {
	BaseModel
	ItemID             uint           `gorm:"column:item_id;index" json:"item_id"`
	Payload            datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	ValidationSummary  datatypes.JSON `gorm:"column:validation_summary;type:jsonb" json:"validation_summary"`
	SimulatedResponse  datatypes.JSON `gorm:"column:simulated_response;type:jsonb" json:"simulated_response"`
}

func (DryRunRecord) TableName() string { return "opms_dry_run_record" }

// SyncConfig is the single-row config table the Config Gate reads
// through with a short-lived cache.
type SyncConfig struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	SyncEnabled  bool `gorm:"column:sync_enabled" json:"sync_enabled"`
}

func (SyncConfig) TableName() string { return "opms_sync_config" }
