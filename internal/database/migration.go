package database

import (
	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/database/models"
)

// Migrate runs schema migrations for the engine-owned tables. OPMS
// catalog tables (opms_item, opms_product, opms_vendor) are not
// migrated here — their schema belongs to OPMS, not to this engine
// (spec.md §1 Non-goals: "schema migrations of OPMS").
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}

	if err := db.AutoMigrate(
		&models.SyncConfig{},
		&models.VendorMapping{},
		&models.SyncJob{},
		&models.ChangeLog{},
		&models.ItemSyncStatus{},
		&models.OpmsPrice{},
		&models.OpmsCost{},
		&models.DryRunRecord{},
	); err != nil {
		return err
	}

	return seedDefaultConfig(db)
}

func seedDefaultConfig(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.SyncConfig{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.Create(&models.SyncConfig{ID: 1, SyncEnabled: true}).Error
}

// TriggersPresent checks whether the two database triggers the Change
// Detector relies on as its primary detection layer exist. Their
// absence downgrades health to "degraded" but never stops the engine
// (spec.md §4.6).
func TriggersPresent(db *gorm.DB) (itemTrigger, productTrigger bool, err error) {
	check := func(name string) (bool, error) {
		var n int64
		e := db.Raw(`SELECT count(*) FROM pg_trigger WHERE tgname = ?`, name).Scan(&n).Error
		return n > 0, e
	}
	if itemTrigger, err = check("opms_item_sync_trigger"); err != nil {
		return
	}
	if productTrigger, err = check("opms_product_sync_trigger"); err != nil {
		return
	}
	return
}
