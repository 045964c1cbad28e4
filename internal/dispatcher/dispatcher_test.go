package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/configgate"
	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/errs"
	"github.com/tatidev/opms-erp-sync/internal/erpclient"
	"github.com/tatidev/opms-erp-sync/internal/eventdata"
	"github.com/tatidev/opms-erp-sync/internal/extractor"
	"github.com/tatidev/opms-erp-sync/internal/logger"
	"github.com/tatidev/opms-erp-sync/internal/payload"
	"github.com/tatidev/opms-erp-sync/internal/queuestore"
	"github.com/tatidev/opms-erp-sync/internal/ratelimit"
	"github.com/tatidev/opms-erp-sync/internal/vendormap"
)

type stubExtractor struct {
	item *extractor.ExtractedItem
	err  error
}

func (s *stubExtractor) Extract(itemID uint) (*extractor.ExtractedItem, error) { return s.item, s.err }

type stubMapper struct{}

func (stubMapper) ERPIDFor(opmsVendorID uint) (uint, bool) { return 0, false }
func (stubMapper) Stats() vendormap.Stats                  { return vendormap.Stats{} }

type stubBuilder struct {
	built *payload.Payload
	err   error
}

func (s *stubBuilder) Build(item *extractor.ExtractedItem) (*payload.Payload, error) {
	return s.built, s.err
}

type stubERP struct {
	resp *erpclient.Response
	err  error
}

func (s *stubERP) Upsert(ctx context.Context, p *payload.Payload, opts erpclient.Options) (*erpclient.Response, error) {
	return s.resp, s.err
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Item{}, &models.Product{}, &models.SyncConfig{}, &models.SyncJob{}, &models.ItemSyncStatus{}))
	return db
}

func seedItem(t *testing.T, db *gorm.DB, code string, productType models.ProductType) models.Item {
	t.Helper()
	product := models.Product{Name: "p"}
	require.NoError(t, db.Create(&product).Error)
	item := models.Item{Code: code, ProductID: product.ID, ProductType: productType}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func newTestDispatcher(t *testing.T, db *gorm.DB, ext extractor.Extractor, builder payload.Builder, erp erpclient.Client) (*Dispatcher, queuestore.Store) {
	t.Helper()
	log := logger.New("error")
	gate := configgate.New(db, log)
	store := queuestore.New(db, log)
	limiter := ratelimit.New(1000, 0)
	retry := RetryPolicy{Base: time.Millisecond, Max: 10 * time.Millisecond, Multiplier: 2.0, MaxRetries: 3}
	d := New(db, log, gate, store, ext, stubMapper{}, builder, erp, limiter, retry, time.Hour)
	return d, store
}

// fetchJob reads a job by id directly, bypassing ClaimNext: that method's
// raw SQL (NOW(), FOR UPDATE SKIP LOCKED) is postgres-only and cannot run
// against the sqlite test database.
func fetchJob(t *testing.T, db *gorm.DB, id uuid.UUID) *models.SyncJob {
	t.Helper()
	var job models.SyncJob
	require.NoError(t, db.First(&job, "id = ?", id).Error)
	return &job
}

func TestProcessSkipsDigitalItem(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.SyncConfig{ID: 1, SyncEnabled: true}).Error)
	item := seedItem(t, db, "1234-5678", models.ProductTypeDigital)

	d, store := newTestDispatcher(t, db, &stubExtractor{}, &stubBuilder{}, &stubERP{})
	id, err := store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityNormal, eventdata.ForPolling(eventdata.Polling{}))
	require.NoError(t, err)

	job := fetchJob(t, db, id)
	d.process(context.Background(), job)

	var status models.ItemSyncStatus
	require.NoError(t, db.Where("item_id = ?", item.ID).First(&status).Error)
	require.Equal(t, models.SyncStatusSkipped, status.Status)

	reloaded := fetchJob(t, db, id)
	require.Equal(t, models.StatusCompleted, reloaded.Status)
}

func TestProcessFailsWhenConfigDisabledWithoutOverride(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.SyncConfig{ID: 1, SyncEnabled: false}).Error)
	item := seedItem(t, db, "1234-5678", models.ProductTypeRegular)

	d, store := newTestDispatcher(t, db, &stubExtractor{}, &stubBuilder{}, &stubERP{})
	id, err := store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityNormal, eventdata.ForPolling(eventdata.Polling{}))
	require.NoError(t, err)

	job := fetchJob(t, db, id)
	d.process(context.Background(), job)

	var status models.ItemSyncStatus
	require.NoError(t, db.Where("item_id = ?", item.ID).First(&status).Error)
	require.Equal(t, models.SyncStatusFailed, status.Status)
}

func TestProcessSucceedsOnHappyPath(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.SyncConfig{ID: 1, SyncEnabled: true}).Error)
	item := seedItem(t, db, "1234-5678", models.ProductTypeRegular)

	ext := &stubExtractor{item: &extractor.ExtractedItem{ItemID: item.ID, ItemCode: item.Code, ProductType: item.ProductType}}
	builder := &stubBuilder{built: &payload.Payload{ItemID: item.Code}}
	erp := &stubERP{resp: &erpclient.Response{Success: true, ID: 9001, ItemID: item.Code}}

	d, store := newTestDispatcher(t, db, ext, builder, erp)
	id, err := store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityNormal,
		eventdata.ForManualItem(eventdata.ManualItem{TriggeredBy: "operator", LiveSync: true}))
	require.NoError(t, err)

	job := fetchJob(t, db, id)
	d.process(context.Background(), job)

	var status models.ItemSyncStatus
	require.NoError(t, db.Where("item_id = ?", item.ID).First(&status).Error)
	require.Equal(t, models.SyncStatusSuccess, status.Status)
	require.NotNil(t, status.ERPItemID)
	require.Equal(t, uint(9001), *status.ERPItemID)
}

func TestProcessSkipsManualNoLiveSyncTrigger(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.SyncConfig{ID: 1, SyncEnabled: true}).Error)
	item := seedItem(t, db, "1234-5678", models.ProductTypeRegular)

	ext := &stubExtractor{item: &extractor.ExtractedItem{ItemID: item.ID, ItemCode: item.Code, ProductType: item.ProductType}}
	builder := &stubBuilder{built: &payload.Payload{ItemID: item.Code}}
	erp := &stubERP{}

	d, store := newTestDispatcher(t, db, ext, builder, erp)
	id, err := store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityNormal,
		eventdata.ForManualItem(eventdata.ManualItem{TriggeredBy: "operator", LiveSync: false}))
	require.NoError(t, err)

	job := fetchJob(t, db, id)
	d.process(context.Background(), job)

	var status models.ItemSyncStatus
	require.NoError(t, db.Where("item_id = ?", item.ID).First(&status).Error)
	require.Equal(t, models.SyncStatusSkipped, status.Status)
}

func TestProcessSchedulesRetryOnTransportFailure(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.SyncConfig{ID: 1, SyncEnabled: true}).Error)
	item := seedItem(t, db, "1234-5678", models.ProductTypeRegular)

	ext := &stubExtractor{item: &extractor.ExtractedItem{ItemID: item.ID, ItemCode: item.Code, ProductType: item.ProductType}}
	builder := &stubBuilder{built: &payload.Payload{ItemID: item.Code}}
	erp := &stubERP{err: errs.New(errs.KindTransportFailure, "connection reset")}

	d, store := newTestDispatcher(t, db, ext, builder, erp)
	id, err := store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityNormal, eventdata.ForPolling(eventdata.Polling{}))
	require.NoError(t, err)

	job := fetchJob(t, db, id)
	d.process(context.Background(), job)

	reloaded := fetchJob(t, db, id)
	require.Equal(t, models.StatusPending, reloaded.Status, "retryable failure must reschedule, not fail")
	require.Equal(t, 1, reloaded.RetryCount)
}

func TestProcessFailsImmediatelyOnNonRetryableKind(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.SyncConfig{ID: 1, SyncEnabled: true}).Error)
	item := seedItem(t, db, "1234-5678", models.ProductTypeRegular)

	ext := &stubExtractor{item: &extractor.ExtractedItem{ItemID: item.ID, ItemCode: item.Code, ProductType: item.ProductType}}
	builder := &stubBuilder{built: &payload.Payload{ItemID: item.Code}}
	erp := &stubERP{err: errs.New(errs.KindTransformationFailure, "malformed response")}

	d, store := newTestDispatcher(t, db, ext, builder, erp)
	id, err := store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityNormal, eventdata.ForPolling(eventdata.Polling{}))
	require.NoError(t, err)

	job := fetchJob(t, db, id)
	d.process(context.Background(), job)

	var status models.ItemSyncStatus
	require.NoError(t, db.Where("item_id = ?", item.ID).First(&status).Error)
	require.Equal(t, models.SyncStatusFailed, status.Status, "non-retryable kinds must fail outright")
}

func TestProcessFailsOnceRetriesExhausted(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.SyncConfig{ID: 1, SyncEnabled: true}).Error)
	item := seedItem(t, db, "1234-5678", models.ProductTypeRegular)

	ext := &stubExtractor{item: &extractor.ExtractedItem{ItemID: item.ID, ItemCode: item.Code, ProductType: item.ProductType}}
	builder := &stubBuilder{built: &payload.Payload{ItemID: item.Code}}
	erp := &stubERP{err: errs.New(errs.KindSemanticRejection, "erp rejected payload")}

	d, store := newTestDispatcher(t, db, ext, builder, erp)
	id, err := store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityNormal, eventdata.ForPolling(eventdata.Polling{}))
	require.NoError(t, err)
	// default MaxRetries is 3 (models.NewSyncJob); the 4th attempt (retry_count
	// already at the max) must fail outright, not reschedule a 5th.
	require.NoError(t, db.Model(&models.SyncJob{}).Where("id = ?", id).Update("retry_count", 3).Error)

	job := fetchJob(t, db, id)
	d.process(context.Background(), job)

	var status models.ItemSyncStatus
	require.NoError(t, db.Where("item_id = ?", item.ID).First(&status).Error)
	require.Equal(t, models.SyncStatusFailed, status.Status, "retries exhausted must resolve as a terminal failure")
}

type sequencedERP struct {
	attempts []error
	calls    int
}

func (s *sequencedERP) Upsert(ctx context.Context, p *payload.Payload, opts erpclient.Options) (*erpclient.Response, error) {
	err := s.attempts[s.calls]
	s.calls++
	if err != nil {
		return nil, err
	}
	return &erpclient.Response{Success: true, ID: 9001}, nil
}

// TestProcessRetriesThreeTimesThenSucceeds walks the exact sequence spec.md
// scenario 4 describes: failures at retry_count 0, 1, 2 reschedule at 2s,
// 4s, 8s respectively, and the 4th attempt (retry_count=3) succeeds and
// completes the job.
func TestProcessRetriesThreeTimesThenSucceeds(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.SyncConfig{ID: 1, SyncEnabled: true}).Error)
	item := seedItem(t, db, "1234-5678", models.ProductTypeRegular)

	ext := &stubExtractor{item: &extractor.ExtractedItem{ItemID: item.ID, ItemCode: item.Code, ProductType: item.ProductType}}
	builder := &stubBuilder{built: &payload.Payload{ItemID: item.Code}}
	rejection := errs.New(errs.KindSemanticRejection, "erp rejected payload")
	erp := &sequencedERP{attempts: []error{rejection, rejection, rejection, nil}}

	log := logger.New("error")
	gate := configgate.New(db, log)
	store := queuestore.New(db, log)
	limiter := ratelimit.New(1000, 0)
	// matches spec.md's default backoff (base=2s, max=30s, x2) so the
	// scheduled delays below can be asserted against the real values.
	retry := RetryPolicy{Base: 2 * time.Second, Max: 30 * time.Second, Multiplier: 2.0, MaxRetries: 3}
	d := New(db, log, gate, store, ext, stubMapper{}, builder, erp, limiter, retry, time.Hour)

	id, err := store.Enqueue(item.ID, item.ProductID, models.EventUpdate, models.PriorityNormal, eventdata.ForPolling(eventdata.Polling{}))
	require.NoError(t, err)

	wantDelays := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, wantDelay := range wantDelays {
		job := fetchJob(t, db, id)
		require.Equal(t, i, job.RetryCount)
		d.process(context.Background(), job)

		reloaded := fetchJob(t, db, id)
		require.Equal(t, models.StatusPending, reloaded.Status)
		require.Equal(t, i+1, reloaded.RetryCount)
		require.WithinDuration(t, time.Now().Add(wantDelay), reloaded.ScheduledAt, 2*time.Second)
	}

	job := fetchJob(t, db, id)
	require.Equal(t, 3, job.RetryCount)
	d.process(context.Background(), job)

	reloaded := fetchJob(t, db, id)
	require.Equal(t, models.StatusCompleted, reloaded.Status)

	var status models.ItemSyncStatus
	require.NoError(t, db.Where("item_id = ?", item.ID).First(&status).Error)
	require.Equal(t, models.SyncStatusSuccess, status.Status)
}
