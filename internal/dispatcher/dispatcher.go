// Package dispatcher implements the Dispatcher: the single cooperative
// worker owning all outbound ERP traffic (spec.md §4.8). It wakes on a
// fixed interval, claims at most one job, and runs it end-to-end before
// claiming the next — no parallel ERP requests are ever in flight.
package dispatcher

import (
	"context"
	"math"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/configgate"
	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/errs"
	"github.com/tatidev/opms-erp-sync/internal/erpclient"
	"github.com/tatidev/opms-erp-sync/internal/extractor"
	"github.com/tatidev/opms-erp-sync/internal/logger"
	"github.com/tatidev/opms-erp-sync/internal/payload"
	"github.com/tatidev/opms-erp-sync/internal/queuestore"
	"github.com/tatidev/opms-erp-sync/internal/ratelimit"
	"github.com/tatidev/opms-erp-sync/internal/vendormap"
)

// RetryPolicy carries the exponential backoff parameters (spec.md §4.8:
// min(base * 2^(retry_count-1), max)).
type RetryPolicy struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	MaxRetries int
}

func (r RetryPolicy) Delay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	d := float64(r.Base) * math.Pow(r.Multiplier, float64(retryCount-1))
	if d > float64(r.Max) {
		d = float64(r.Max)
	}
	return time.Duration(d)
}

// Dispatcher runs the claim-process-outcome loop.
type Dispatcher struct {
	db        *gorm.DB
	log       *logger.Logger
	gate      configgate.Gate
	store     queuestore.Store
	extractor extractor.Extractor
	vendors   vendormap.Mapper
	builder   payload.Builder
	erp       erpclient.Client
	limiter   *ratelimit.Limiter
	retry     RetryPolicy
	wake      time.Duration

	stop chan struct{}
	done chan struct{}
}

// New wires a Dispatcher from its already-constructed dependencies; the
// Supervisor owns construction order and lifetime.
func New(
	db *gorm.DB,
	log *logger.Logger,
	gate configgate.Gate,
	store queuestore.Store,
	ext extractor.Extractor,
	vendors vendormap.Mapper,
	builder payload.Builder,
	erp erpclient.Client,
	limiter *ratelimit.Limiter,
	retry RetryPolicy,
	wake time.Duration,
) *Dispatcher {
	return &Dispatcher{
		db: db, log: log, gate: gate, store: store,
		extractor: ext, vendors: vendors, builder: builder, erp: erp,
		limiter: limiter, retry: retry, wake: wake,
		stop: make(chan struct{}), done: make(chan struct{}),
	}
}

// Run blocks, waking every d.wake to claim and process at most one job,
// until ctx is cancelled or Stop is called. It finishes any in-flight
// job before returning (spec.md §5: "the dispatcher finishes its
// current job before exiting").
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.wake)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// Stop requests the loop to exit after its current tick and waits for it.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Dispatcher) tick(ctx context.Context) {
	job, err := d.store.ClaimNext()
	if err != nil {
		d.log.Errorw("claim failed", "error", err)
		return
	}
	if job == nil {
		return
	}
	d.process(ctx, job)
}

func (d *Dispatcher) process(ctx context.Context, job *models.SyncJob) {
	if !d.gate.IsEnabled() && !job.EventData.Override() {
		d.fail(job, "Sync disabled by configuration")
		return
	}

	var item models.Item
	if err := d.db.First(&item, job.ItemID).Error; err != nil {
		d.fail(job, "item not found: "+err.Error())
		return
	}
	if payload.IsDigital(item.ProductType, item.Code) {
		d.skip(job, "digital item")
		return
	}

	extracted, err := d.extractor.Extract(job.ItemID)
	if err != nil {
		d.handleFailure(job, err)
		return
	}
	extracted.VendorID = item.VendorID
	if extracted.VendorID != nil {
		if erpID, ok := d.vendors.ERPIDFor(*extracted.VendorID); ok {
			extracted.ERPVendorID = &erpID
		}
	}

	built, err := d.builder.Build(extracted)
	if err != nil {
		d.handleFailure(job, err)
		return
	}

	if !job.EventData.LiveSync() {
		d.completeSkipped(job, "manual no-live trigger")
		return
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.handleFailure(job, errs.Wrap(errs.KindTransportFailure, "rate limiter wait interrupted", err))
		return
	}

	resp, err := d.erp.Upsert(ctx, built, erpclient.Options{EnvironmentOverride: job.EventData.EnvironmentOverride()})
	if err != nil {
		d.handleFailure(job, err)
		return
	}
	erpItemID := ""
	if resp.ID != 0 {
		erpItemID = strconv.FormatUint(uint64(resp.ID), 10)
	}
	d.succeed(job, erpItemID)
}

func (d *Dispatcher) handleFailure(job *models.SyncJob, err error) {
	if errs.Skip(err) {
		d.skip(job, err.Error())
		return
	}
	if !errs.Retryable(err) || job.RetryCount >= job.MaxRetries {
		d.fail(job, err.Error())
		return
	}

	delay := d.retry.Delay(job.RetryCount + 1)
	if sErr := d.store.ScheduleRetry(job.ID, delay, err.Error()); sErr != nil {
		d.log.Errorw("schedule retry failed", "job_id", job.ID, "error", sErr)
	}
}

func (d *Dispatcher) succeed(job *models.SyncJob, erpItemID string) {
	if err := d.store.Mark(job.ID, models.StatusCompleted, ""); err != nil {
		d.log.Errorw("mark completed failed", "job_id", job.ID, "error", err)
	}
	d.upsertSyncStatus(job.ItemID, models.SyncStatusSuccess, erpItemID, "")
}

func (d *Dispatcher) skip(job *models.SyncJob, reason string) {
	if err := d.store.Mark(job.ID, models.StatusCompleted, reason); err != nil {
		d.log.Errorw("mark skipped failed", "job_id", job.ID, "error", err)
	}
	d.upsertSyncStatus(job.ItemID, models.SyncStatusSkipped, "", reason)
}

func (d *Dispatcher) completeSkipped(job *models.SyncJob, reason string) {
	d.skip(job, reason)
}

func (d *Dispatcher) fail(job *models.SyncJob, reason string) {
	if err := d.store.Mark(job.ID, models.StatusFailed, reason); err != nil {
		d.log.Errorw("mark failed failed", "job_id", job.ID, "error", err)
	}
	d.upsertSyncStatus(job.ItemID, models.SyncStatusFailed, "", reason)
}

func (d *Dispatcher) upsertSyncStatus(itemID uint, status models.SyncStatus, erpItemID, lastError string) {
	now := time.Now()
	update := models.ItemSyncStatus{
		ItemID:     itemID,
		Status:     status,
		LastSyncAt: &now,
		LastError:  lastError,
	}
	if erpItemID != "" {
		// erpItemID is the ERP internal id (Response.ID) in decimal form;
		// stored as *uint for joinability with OPMS tables when it parses cleanly.
		if parsed, ok := parseUint(erpItemID); ok {
			update.ERPItemID = &parsed
		}
	}

	err := d.db.Where(models.ItemSyncStatus{ItemID: itemID}).
		Assign(update).
		FirstOrCreate(&models.ItemSyncStatus{}).Error
	if err != nil {
		d.log.Errorw("item sync status upsert failed", "item_id", itemID, "error", err)
	}
}

func parseUint(s string) (uint, bool) {
	var n uint
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + uint(r-'0')
	}
	return n, len(s) > 0
}
