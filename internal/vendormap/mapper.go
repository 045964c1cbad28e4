// Package vendormap implements the Vendor Mapper: OPMS vendor id -> ERP
// vendor id, cached with a TTL, trusting only mappings whose stored
// names agree (spec.md §4.2). Named vendormap, not vendor, because
// "vendor" is a reserved directory name for Go's module tooling.
package vendormap

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/logger"
)

const ttl = 5 * time.Minute

// Stats summarizes mapping coverage.
type Stats struct {
	Total    int
	Mapped   int
	Coverage float64
}

// Mapper is the Vendor Mapper contract.
type Mapper interface {
	ERPIDFor(opmsVendorID uint) (erpID uint, ok bool)
	Stats() Stats
}

type cacheEntry struct {
	erpID     uint
	trusted   bool
	expiresAt time.Time
}

type mapper struct {
	db  *gorm.DB
	log *logger.Logger

	mu    sync.Mutex
	cache map[uint]cacheEntry
}

// New constructs a Vendor Mapper backed by opms_netsuite_vendor_mapping.
func New(db *gorm.DB, log *logger.Logger) Mapper {
	return &mapper{db: db, log: log, cache: make(map[uint]cacheEntry)}
}

// ERPIDFor returns the mapped ERP vendor id, only when the stored
// opms_name equals erp_name at mapping-creation time. On any database
// error it returns (0, false) and logs — it never throws across the
// boundary.
func (m *mapper) ERPIDFor(opmsVendorID uint) (uint, bool) {
	m.mu.Lock()
	entry, found := m.cache[opmsVendorID]
	m.mu.Unlock()

	if found && time.Now().Before(entry.expiresAt) {
		return entry.erpID, entry.trusted
	}

	var row models.VendorMapping
	err := m.db.Where("opms_vendor_id = ?", opmsVendorID).First(&row).Error
	if err != nil {
		m.log.Warn("vendor mapping lookup failed", "opms_vendor_id", opmsVendorID, "error", err)
		m.storeMiss(opmsVendorID)
		return 0, false
	}

	trusted := row.OPMSName == row.ERPName
	m.mu.Lock()
	m.cache[opmsVendorID] = cacheEntry{erpID: row.ERPVendorID, trusted: trusted, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()

	if !trusted {
		return 0, false
	}
	return row.ERPVendorID, true
}

func (m *mapper) storeMiss(opmsVendorID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[opmsVendorID] = cacheEntry{expiresAt: time.Now().Add(ttl)}
}

// Stats reports total mappings, how many are trustworthy, and coverage.
func (m *mapper) Stats() Stats {
	var rows []models.VendorMapping
	if err := m.db.Find(&rows).Error; err != nil {
		m.log.Warn("vendor mapping stats query failed", "error", err)
		return Stats{}
	}

	mapped := 0
	for _, r := range rows {
		if r.OPMSName == r.ERPName {
			mapped++
		}
	}

	total := len(rows)
	coverage := 0.0
	if total > 0 {
		coverage = float64(mapped) / float64(total) * 100
	}
	return Stats{Total: total, Mapped: mapped, Coverage: coverage}
}
