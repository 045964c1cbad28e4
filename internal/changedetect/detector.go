// Package changedetect implements the Change Detector: trigger-presence
// verification, a backup polling cron, and manual per-item/per-product
// triggers, all funneling into the Queue Store (spec.md §4.6).
package changedetect

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/configgate"
	"github.com/tatidev/opms-erp-sync/internal/database"
	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/errs"
	"github.com/tatidev/opms-erp-sync/internal/eventdata"
	"github.com/tatidev/opms-erp-sync/internal/logger"
	"github.com/tatidev/opms-erp-sync/internal/queuestore"
)

var codeFormat = regexp.MustCompile(`^\d{4}-\d{4}[A-Za-z]?$`)

// Health reports the Change Detector's own contribution to supervisor
// health: whether both catalog triggers were found at startup.
type Health struct {
	ItemTriggerPresent    bool
	ProductTriggerPresent bool
}

func (h Health) Degraded() bool {
	return !h.ItemTriggerPresent || !h.ProductTriggerPresent
}

// Detector is the Change Detector's public contract.
type Detector interface {
	Health() Health
	StartPolling()
	StopPolling()
	TriggerItem(itemID uint, triggeredBy, reason, envOverride string, liveSync, override bool) error
	TriggerProduct(productID uint, triggeredBy, reason, envOverride string, liveSync, override bool) error
}

type detector struct {
	db    *gorm.DB
	log   *logger.Logger
	gate  configgate.Gate
	store queuestore.Store
	batch int

	cron      *cron.Cron
	entryID   cron.EntryID
	pollEvery time.Duration

	mu        sync.Mutex
	health    Health
	watermark time.Time
}

// New constructs a Change Detector. batchLimit bounds each polling tick
// (spec.md §4.6: "≤100 rows"); pollEvery is the backup poll interval
// (default 60s).
func New(db *gorm.DB, log *logger.Logger, gate configgate.Gate, store queuestore.Store, pollEvery time.Duration, batchLimit int) Detector {
	d := &detector{
		db:        db,
		log:       log,
		gate:      gate,
		store:     store,
		batch:     batchLimit,
		pollEvery: pollEvery,
		watermark: time.Now(),
		cron:      cron.New(cron.WithSeconds()),
	}
	d.checkTriggers()
	return d
}

// checkTriggers verifies trigger presence at startup; a missing trigger
// downgrades health but never stops operation (spec.md §4.6).
func (d *detector) checkTriggers() {
	itemOK, productOK, err := database.TriggersPresent(d.db)
	if err != nil {
		d.log.Warnw("trigger presence check failed, assuming absent", "error", err)
	}
	d.mu.Lock()
	d.health = Health{ItemTriggerPresent: itemOK, ProductTriggerPresent: productOK}
	d.mu.Unlock()
}

func (d *detector) Health() Health {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.health
}

// StartPolling schedules the backup poller on a seconds-resolution cron
// expression derived from pollEvery.
func (d *detector) StartPolling() {
	spec := fmt.Sprintf("@every %s", d.pollEvery)
	id, err := d.cron.AddFunc(spec, d.pollOnce)
	if err != nil {
		d.log.Errorw("failed to schedule poller", "error", err)
		return
	}
	d.entryID = id
	d.cron.Start()
}

func (d *detector) StopPolling() {
	if d.entryID != 0 {
		d.cron.Remove(d.entryID)
	}
	ctx := d.cron.Stop()
	<-ctx.Done()
}

// pollOnce reads items modified since the last watermark, excluding
// those already PENDING/PROCESSING, bounded to d.batch rows, and
// enqueues them with NORMAL priority and POLLING provenance.
func (d *detector) pollOnce() {
	d.mu.Lock()
	since := d.watermark
	d.mu.Unlock()

	var items []models.Item
	err := d.db.Raw(`
		SELECT i.* FROM opms_item i
		WHERE i.modified_at > ?
		AND NOT EXISTS (
			SELECT 1 FROM opms_sync_queue q
			WHERE q.item_id = i.id AND q.status IN ('PENDING', 'PROCESSING')
		)
		ORDER BY i.modified_at ASC
		LIMIT ?
	`, since.UnixMilli(), d.batch).Scan(&items).Error
	if err != nil {
		d.log.Errorw("polling query failed", "error", err)
		return
	}

	newWatermark := since
	for _, item := range items {
		if !d.isSyncable(item, false) {
			continue
		}
		data := eventdata.ForPolling(eventdata.Polling{
			WatermarkBefore: since.Format(time.RFC3339),
			ModifiedAt:      time.UnixMilli(item.ModifiedAt).Format(time.RFC3339),
		})
		if _, err := d.store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityNormal, data); err != nil {
			d.log.Errorw("poller enqueue failed", "item_id", item.ID, "error", err)
			continue
		}
		if t := time.UnixMilli(item.ModifiedAt); t.After(newWatermark) {
			newWatermark = t
		}
	}

	if len(items) > 0 {
		d.mu.Lock()
		d.watermark = newWatermark
		d.mu.Unlock()
	}
	if len(items) == d.batch {
		d.log.Warnw("polling tick hit batch cap, more changes may be pending", "batch", d.batch)
	}
}

// TriggerItem enqueues a single manual item trigger at HIGH priority.
func (d *detector) TriggerItem(itemID uint, triggeredBy, reason, envOverride string, liveSync, override bool) error {
	var item models.Item
	if err := d.db.First(&item, itemID).Error; err != nil {
		return errs.Wrap(errs.KindNotSyncable, "item not found", err)
	}

	if !d.isSyncable(item, true) {
		return errs.New(errs.KindNotSyncable, "item fails digital-item block")
	}
	if !d.gate.IsEnabled() && !override {
		return errs.New(errs.KindConfigDisabled, "sync disabled by configuration")
	}

	data := eventdata.ForManualItem(eventdata.ManualItem{
		TriggeredBy:         triggeredBy,
		Reason:              reason,
		EnvironmentOverride: envOverride,
		LiveSync:            liveSync,
		Override:            override,
	})
	_, err := d.store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityHigh, data)
	return err
}

// TriggerProduct enqueues every matching item of a product.
func (d *detector) TriggerProduct(productID uint, triggeredBy, reason, envOverride string, liveSync, override bool) error {
	var items []models.Item
	if err := d.db.Where("product_id = ?", productID).Find(&items).Error; err != nil {
		return errs.Wrap(errs.KindNotSyncable, "product lookup failed", err)
	}
	if !d.gate.IsEnabled() && !override {
		return errs.New(errs.KindConfigDisabled, "sync disabled by configuration")
	}

	data := eventdata.ForManualProduct(eventdata.ManualProduct{
		TriggeredBy:         triggeredBy,
		Reason:              reason,
		EnvironmentOverride: envOverride,
		LiveSync:            liveSync,
		Override:            override,
	})

	var firstErr error
	for _, item := range items {
		if !d.isSyncable(item, true) {
			continue
		}
		if _, err := d.store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityHigh, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// isSyncable applies the enqueue-time filters (spec.md §4.6): format
// check (bypassable by manual triggers) plus the digital-item block
// (never bypassable).
func (d *detector) isSyncable(item models.Item, manual bool) bool {
	if item.ProductType == models.ProductTypeDigital || strings.Contains(strings.ToLower(item.Code), "digital") {
		return false
	}
	if !manual && !codeFormat.MatchString(item.Code) {
		return false
	}
	return true
}
