// Package queuestore implements the Queue Store: the durable,
// atomic-claim job queue backing the Dispatcher (spec.md §4.7). A claim
// runs in one transaction (a SELECT ... FOR UPDATE SKIP LOCKED followed
// by an UPDATE conditional on status = PENDING) so two Dispatcher
// instances can never both win the same row, replacing the teacher's
// Redis-backed queue with a database-native one (see DESIGN.md).
package queuestore

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/errs"
	"github.com/tatidev/opms-erp-sync/internal/eventdata"
	"github.com/tatidev/opms-erp-sync/internal/logger"
)

// StatusBreakdown counts jobs per status, for the operational surface.
type StatusBreakdown struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

// Stats summarizes queue activity over a trailing window.
type Stats struct {
	Enqueued  int64
	Completed int64
	Failed    int64
	Window    time.Duration
}

// Store is the Queue Store's public contract.
type Store interface {
	Enqueue(itemID, productID uint, eventType models.EventType, priority models.Priority, data eventdata.EventData) (uuid.UUID, error)
	ClaimNext() (*models.SyncJob, error)
	Mark(id uuid.UUID, status models.JobStatus, lastError string) error
	ScheduleRetry(id uuid.UUID, delay time.Duration, lastError string) error
	Stats(window time.Duration) (Stats, error)
	StatusBreakdown() (StatusBreakdown, error)
	ReclaimExpiredLeases(leaseTTL time.Duration) (int64, error)
}

type store struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(db *gorm.DB, log *logger.Logger) Store {
	return &store{db: db, log: log}
}

// Enqueue inserts a PENDING job. Duplicate suppression (spec.md §4.7:
// "do not enqueue a second PENDING/PROCESSING job for the same item")
// is the caller's responsibility (Change Detector), since only it knows
// whether the enqueue is a manual override that should bypass the
// dedup rule.
func (s *store) Enqueue(itemID, productID uint, eventType models.EventType, priority models.Priority, data eventdata.EventData) (uuid.UUID, error) {
	job := models.NewSyncJob(itemID, productID, eventType, priority, data)
	if err := s.db.Create(job).Error; err != nil {
		return uuid.Nil, errs.Wrap(errs.KindUnknown, "enqueue failed", err)
	}
	return job.ID, nil
}

// ClaimNext atomically claims the single oldest eligible PENDING job,
// ordered HIGH priority first, then by scheduled_at. Inside one
// transaction it locks the candidate with SELECT ... FOR UPDATE SKIP
// LOCKED and moves it to PROCESSING with an UPDATE conditional on
// status = PENDING, so no two callers can claim the same row (spec.md
// §4.7). Returns (nil, nil) when the queue is empty.
func (s *store) ClaimNext() (*models.SyncJob, error) {
	var job models.SyncJob

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var candidate models.SyncJob
		err := tx.Raw(`
			SELECT * FROM opms_sync_queue
			WHERE status = ? AND scheduled_at <= NOW()
			ORDER BY CASE priority WHEN 'HIGH' THEN 0 ELSE 1 END, scheduled_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`, models.StatusPending).Scan(&candidate).Error
		if err != nil {
			return err
		}
		if candidate.ID == uuid.Nil {
			return gorm.ErrRecordNotFound
		}

		now := time.Now()
		result := tx.Model(&models.SyncJob{}).
			Where("id = ? AND status = ?", candidate.ID, models.StatusPending).
			Updates(map[string]interface{}{"status": models.StatusProcessing, "claimed_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		candidate.Status = models.StatusProcessing
		candidate.ClaimedAt = &now
		job = candidate
		return nil
	})

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, "claim failed", err)
	}
	return &job, nil
}

// Mark sets a terminal or pending status on a job outcome.
func (s *store) Mark(id uuid.UUID, status models.JobStatus, lastError string) error {
	updates := map[string]interface{}{"status": status, "last_error": lastError}
	if err := s.db.Model(&models.SyncJob{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return errs.Wrap(errs.KindUnknown, "mark job failed", err)
	}
	return nil
}

// ScheduleRetry resets a job to PENDING at now+delay, incrementing
// retry_count (spec.md §4.10's exponential backoff is computed by the
// Dispatcher; this method only persists the chosen delay).
func (s *store) ScheduleRetry(id uuid.UUID, delay time.Duration, lastError string) error {
	updates := map[string]interface{}{
		"status":       models.StatusPending,
		"scheduled_at": time.Now().Add(delay),
		"last_error":   lastError,
		"claimed_at":   nil,
	}
	err := s.db.Model(&models.SyncJob{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return errs.Wrap(errs.KindUnknown, "schedule retry failed", err)
	}
	return s.db.Model(&models.SyncJob{}).Where("id = ?", id).UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}

func (s *store) Stats(window time.Duration) (Stats, error) {
	since := time.Now().Add(-window)
	var stats Stats
	stats.Window = window

	if err := s.db.Model(&models.SyncJob{}).Where("created_at >= ?", since).Count(&stats.Enqueued).Error; err != nil {
		return stats, err
	}
	if err := s.db.Model(&models.SyncJob{}).Where("created_at >= ? AND status = ?", since, models.StatusCompleted).Count(&stats.Completed).Error; err != nil {
		return stats, err
	}
	if err := s.db.Model(&models.SyncJob{}).Where("created_at >= ? AND status = ?", since, models.StatusFailed).Count(&stats.Failed).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *store) StatusBreakdown() (StatusBreakdown, error) {
	var b StatusBreakdown
	if err := s.db.Model(&models.SyncJob{}).Where("status = ?", models.StatusPending).Count(&b.Pending).Error; err != nil {
		return b, err
	}
	if err := s.db.Model(&models.SyncJob{}).Where("status = ?", models.StatusProcessing).Count(&b.Processing).Error; err != nil {
		return b, err
	}
	if err := s.db.Model(&models.SyncJob{}).Where("status = ?", models.StatusCompleted).Count(&b.Completed).Error; err != nil {
		return b, err
	}
	if err := s.db.Model(&models.SyncJob{}).Where("status = ?", models.StatusFailed).Count(&b.Failed).Error; err != nil {
		return b, err
	}
	return b, nil
}

// ReclaimExpiredLeases resets PROCESSING jobs whose claimed_at predates
// now-leaseTTL back to PENDING, incrementing retry_count — the
// Supervisor runs this once at startup to recover from a crashed
// Dispatcher (spec.md §4.11).
func (s *store) ReclaimExpiredLeases(leaseTTL time.Duration) (int64, error) {
	cutoff := time.Now().Add(-leaseTTL)
	result := s.db.Model(&models.SyncJob{}).
		Where("status = ? AND claimed_at < ?", models.StatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":       models.StatusPending,
			"claimed_at":   nil,
			"retry_count":  gorm.Expr("retry_count + 1"),
			"scheduled_at": time.Now(),
		})
	if result.Error != nil {
		return 0, errs.Wrap(errs.KindUnknown, "reclaim leases failed", result.Error)
	}
	if result.RowsAffected > 0 {
		s.log.Warnw("reclaimed expired job leases", "count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
