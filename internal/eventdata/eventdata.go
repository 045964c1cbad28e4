// Package eventdata defines the structured, typed replacement for the
// loosely-typed event payload maps the distillation source used (see
// Design Note 9): a tagged sum type with one concrete struct per
// provenance kind, serialized to a jsonb column via gorm.io/datatypes.
package eventdata

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Kind discriminates which variant of EventData is populated.
type Kind string

const (
	KindTrigger        Kind = "TRIGGER"
	KindPolling        Kind = "POLLING"
	KindManualItem     Kind = "MANUAL_ITEM"
	KindManualProduct  Kind = "MANUAL_PRODUCT"
	KindWebhookCascade Kind = "WEBHOOK_CASCADE"
)

// Trigger captures provenance for a row deposited by a database trigger.
type Trigger struct {
	TriggerName string   `json:"trigger_name"`
	ChangeKind  string   `json:"change_kind"` // INSERT | UPDATE
	ChangeFields []string `json:"change_fields,omitempty"`
}

// Polling captures provenance for a row discovered by the backup poller.
type Polling struct {
	WatermarkBefore string `json:"watermark_before"`
	ModifiedAt      string `json:"modified_at"`
}

// ManualItem captures a per-item manual trigger.
type ManualItem struct {
	TriggeredBy      string `json:"triggered_by"`
	Reason           string `json:"reason,omitempty"`
	EnvironmentOverride string `json:"environment_override,omitempty"`
	LiveSync         bool   `json:"live_sync"`
	Override         bool   `json:"override"`
}

// ManualProduct captures a per-product manual trigger that fans out to
// every matching item.
type ManualProduct struct {
	TriggeredBy      string `json:"triggered_by"`
	Reason           string `json:"reason,omitempty"`
	EnvironmentOverride string `json:"environment_override,omitempty"`
	LiveSync         bool   `json:"live_sync"`
	Override         bool   `json:"override"`
}

// WebhookCascade is modeled so the type system has a home for the
// "cascade to sibling items" path, but per spec.md §9 nothing
// constructs one: the cascade policy is an open question and the
// feature is not implemented.
type WebhookCascade struct {
	SourceItemID uint   `json:"source_item_id"`
	Reason       string `json:"reason,omitempty"`
}

// EventData is the structured event_data attached to a SyncJob/ChangeLog
// row. Exactly one of the variant fields is populated, selected by Kind.
type EventData struct {
	Kind           Kind            `json:"kind"`
	Trigger        *Trigger        `json:"trigger,omitempty"`
	Polling        *Polling        `json:"polling,omitempty"`
	ManualItem     *ManualItem     `json:"manual_item,omitempty"`
	ManualProduct  *ManualProduct  `json:"manual_product,omitempty"`
	WebhookCascade *WebhookCascade `json:"webhook_cascade,omitempty"`
}

func ForTrigger(t Trigger) EventData {
	return EventData{Kind: KindTrigger, Trigger: &t}
}

func ForPolling(p Polling) EventData {
	return EventData{Kind: KindPolling, Polling: &p}
}

func ForManualItem(m ManualItem) EventData {
	return EventData{Kind: KindManualItem, ManualItem: &m}
}

func ForManualProduct(m ManualProduct) EventData {
	return EventData{Kind: KindManualProduct, ManualProduct: &m}
}

// LiveSync reports the live_sync flag carried by manual triggers; other
// provenance kinds always imply a live (networked) sync.
func (e EventData) LiveSync() bool {
	switch e.Kind {
	case KindManualItem:
		if e.ManualItem != nil {
			return e.ManualItem.LiveSync
		}
	case KindManualProduct:
		if e.ManualProduct != nil {
			return e.ManualProduct.LiveSync
		}
	}
	return true
}

// Override reports whether this event carries a manual override
// permitting dispatch while sync is globally disabled.
func (e EventData) Override() bool {
	switch e.Kind {
	case KindManualItem:
		return e.ManualItem != nil && e.ManualItem.Override
	case KindManualProduct:
		return e.ManualProduct != nil && e.ManualProduct.Override
	default:
		return false
	}
}

// EnvironmentOverride returns the per-job environment override, if any.
func (e EventData) EnvironmentOverride() string {
	switch e.Kind {
	case KindManualItem:
		if e.ManualItem != nil {
			return e.ManualItem.EnvironmentOverride
		}
	case KindManualProduct:
		if e.ManualProduct != nil {
			return e.ManualProduct.EnvironmentOverride
		}
	}
	return ""
}

// IsManual reports whether this event originated from a manual trigger,
// which is permitted to bypass certain enqueue-time filters per §4.6.
func (e EventData) IsManual() bool {
	return e.Kind == KindManualItem || e.Kind == KindManualProduct
}

// Value implements driver.Valuer so EventData can be stored directly in
// a jsonb column.
func (e EventData) Value() (driver.Value, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data).Value()
}

// Scan implements sql.Scanner.
func (e *EventData) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var raw datatypes.JSON
	if err := raw.Scan(value); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, e)
}

// GormDataType tells gorm which column type to use for this type.
func (EventData) GormDataType() string {
	return "jsonb"
}

// String is for logging.
func (e EventData) String() string {
	return fmt.Sprintf("EventData{kind=%s}", e.Kind)
}
