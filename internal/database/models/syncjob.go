package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/tatidev/opms-erp-sync/internal/eventdata"
)

// EventType is the catalog-side mutation kind that produced a SyncJob.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Priority orders claimable work; manual per-item triggers are HIGH,
// polling/triggers are NORMAL, nothing currently produces LOW (reserved
// for future bulk/backfill provenance).
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// JobStatus is the SyncJob lifecycle state (spec.md §3/§4.10's state
// machine: PENDING -> PROCESSING -> (COMPLETED | FAILED | PENDING)).
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// SyncJob is the durable queue row. batch_size for claims is fixed at 1
// by the Queue Store, never by a column here.
type SyncJob struct {
	BaseModel
	ItemID            uint              `gorm:"column:item_id;index" json:"item_id"`
	ProductID         uint              `gorm:"column:product_id;index" json:"product_id"`
	EventType         EventType         `gorm:"column:event_type" json:"event_type"`
	EventData         eventdata.EventData `gorm:"column:event_data;type:jsonb" json:"event_data"`
	Priority          Priority          `gorm:"column:priority;index" json:"priority"`
	Status            JobStatus         `gorm:"column:status;index" json:"status"`
	RetryCount        int               `gorm:"column:retry_count" json:"retry_count"`
	MaxRetries        int               `gorm:"column:max_retries" json:"max_retries"`
	ScheduledAt       time.Time         `gorm:"column:scheduled_at;index" json:"scheduled_at"`
	LastError         string            `gorm:"column:last_error" json:"last_error,omitempty"`
	ProcessingResults datatypes.JSON    `gorm:"column:processing_results;type:jsonb" json:"processing_results,omitempty"`
	ClaimedAt         *time.Time        `gorm:"column:claimed_at" json:"claimed_at,omitempty"`
}

func (SyncJob) TableName() string { return "opms_sync_queue" }

// NewSyncJob builds a PENDING job with MaxRetries defaulted to 3 per
// spec.md §3.
func NewSyncJob(itemID, productID uint, eventType EventType, priority Priority, data eventdata.EventData) *SyncJob {
	return &SyncJob{
		ItemID:      itemID,
		ProductID:   productID,
		EventType:   eventType,
		EventData:   data,
		Priority:    priority,
		Status:      StatusPending,
		MaxRetries:  3,
		ScheduledAt: time.Now(),
	}
}
