package vendormap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.VendorMapping{}))
	return db
}

func TestERPIDForTrustedMapping(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.VendorMapping{
		OPMSVendorID: 10, ERPVendorID: 900, OPMSName: "Acme Textiles", ERPName: "Acme Textiles",
	}).Error)

	m := New(db, logger.New("error"))
	erpID, ok := m.ERPIDFor(10)
	require.True(t, ok)
	require.Equal(t, uint(900), erpID)
}

func TestERPIDForUntrustedMappingIsIgnored(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.VendorMapping{
		OPMSVendorID: 11, ERPVendorID: 901, OPMSName: "Acme Textiles", ERPName: "Acme Textiles Inc.",
	}).Error)

	m := New(db, logger.New("error"))
	_, ok := m.ERPIDFor(11)
	require.False(t, ok, "mismatched names must never be trusted")
}

func TestERPIDForUnknownVendor(t *testing.T) {
	db := setupDB(t)
	m := New(db, logger.New("error"))
	_, ok := m.ERPIDFor(999)
	require.False(t, ok)
}

func TestStatsComputesCoverage(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.VendorMapping{OPMSVendorID: 1, ERPVendorID: 100, OPMSName: "A", ERPName: "A"}).Error)
	require.NoError(t, db.Create(&models.VendorMapping{OPMSVendorID: 2, ERPVendorID: 200, OPMSName: "B", ERPName: "B-different"}).Error)

	m := New(db, logger.New("error"))
	stats := m.Stats()
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Mapped)
	require.InDelta(t, 50.0, stats.Coverage, 0.01)
}
