// Package configgate implements the Config Gate: a single boolean,
// sync_enabled, read through a short-lived cache and fail-closed on
// error (spec.md §4.1).
package configgate

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/logger"
)

const staleness = 5 * time.Second

// Gate is the Config Gate contract: IsEnabled reports whether sync is
// globally on. It never returns an error across the boundary — on a
// read failure it logs and reports disabled (fails closed).
type Gate interface {
	IsEnabled() bool
	Refresh()
}

type gate struct {
	db  *gorm.DB
	log *logger.Logger

	mu        sync.RWMutex
	enabled   bool
	loadedAt  time.Time
}

// New constructs a Config Gate backed by the opms_sync_config table.
func New(db *gorm.DB, log *logger.Logger) Gate {
	g := &gate{db: db, log: log}
	g.Refresh()
	return g
}

// IsEnabled is the Config Gate's one public operation. It re-reads the
// backing table when the cached value is older than the staleness
// bound (spec.md §4.1: "refreshed on every dispatcher iteration ...
// ≤5s staleness"), and otherwise serves the cache.
func (g *gate) IsEnabled() bool {
	g.mu.RLock()
	fresh := time.Since(g.loadedAt) < staleness
	enabled := g.enabled
	g.mu.RUnlock()

	if fresh {
		return enabled
	}

	g.Refresh()

	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled
}

// Refresh forces an immediate re-read of the backing table.
func (g *gate) Refresh() {
	var cfg models.SyncConfig
	err := g.db.First(&cfg, 1).Error

	g.mu.Lock()
	defer g.mu.Unlock()

	if err != nil {
		g.log.Warn("config gate read failed, failing closed", "error", err)
		g.enabled = false
		g.loadedAt = time.Now()
		return
	}

	g.enabled = cfg.SyncEnabled
	g.loadedAt = time.Now()
}
