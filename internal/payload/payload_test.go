package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/extractor"
	"github.com/tatidev/opms-erp-sync/internal/validator"
)

func baseItem() *extractor.ExtractedItem {
	return &extractor.ExtractedItem{
		ItemID:      101,
		ItemCode:    "1234-5678A",
		ProductID:   55,
		ProductName: "Coastal Weave",
		ColorName:   "Sand",
		Colors:      []string{"Sand", "Dune"},
		Finish:      []string{"Matte"},
		Cleaning:    []string{"Dry Clean Only"},
		Origin:      []string{"USA"},
		Use:         []string{"Upholstery"},
		ProductType: models.ProductTypeRegular,
	}
}

func TestBuildFixedConstants(t *testing.T) {
	b := New("1")
	p, err := b.Build(baseItem())
	require.NoError(t, err)

	assert.True(t, p.UseBins)
	assert.True(t, p.MatchBillToReceipt)
	assert.True(t, p.AutoNumbered)
	assert.Equal(t, 2, p.UnitsType)
	assert.Equal(t, 1, p.NumberFormat)
	assert.Equal(t, 1, p.InitialSequence)
}

func TestBuildDisplayName(t *testing.T) {
	b := New("1")
	p, err := b.Build(baseItem())
	require.NoError(t, err)
	assert.Equal(t, "Coastal Weave: Sand", p.DisplayName)
}

func TestBuildRejectsMissingCode(t *testing.T) {
	b := New("1")
	item := baseItem()
	item.ItemCode = ""
	_, err := b.Build(item)
	assert.Error(t, err)
}

func TestBuildSentinelProjection(t *testing.T) {
	b := New("1")
	item := baseItem()
	item.Finish = nil
	item.TariffCode = ""
	p, err := b.Build(item)
	require.NoError(t, err)

	assert.Equal(t, validator.Sentinel, p.Finish)
	assert.Equal(t, validator.Sentinel, p.TariffCode)
}

func TestComplianceTriState(t *testing.T) {
	yes := "Y"
	no := "N"
	dunno := "D"

	assert.Equal(t, "Yes", complianceTriState(&yes))
	assert.Equal(t, "No", complianceTriState(&no))
	assert.Equal(t, validator.Sentinel, complianceTriState(&dunno))
	assert.Equal(t, validator.Sentinel, complianceTriState(nil))
}

func TestBuildOmitsVendorWhenUnmapped(t *testing.T) {
	b := New("1")
	p, err := b.Build(baseItem())
	require.NoError(t, err)
	assert.Nil(t, p.Vendor)
}

func TestBuildIncludesVendorWhenMapped(t *testing.T) {
	b := New("1")
	item := baseItem()
	erpID := uint(42)
	item.ERPVendorID = &erpID
	p, err := b.Build(item)
	require.NoError(t, err)
	require.NotNil(t, p.Vendor)
	assert.Equal(t, 42, *p.Vendor)
}

func TestBuildDescriptionsIncludeFireRatingAndCountryOfOrigin(t *testing.T) {
	b := New("1")
	item := baseItem()
	item.Firecodes = "Class A"
	item.OriginNames = "USA, Italy"
	p, err := b.Build(item)
	require.NoError(t, err)

	assert.Contains(t, p.PurchaseDescription, "Fire Rating: Class A")
	assert.Contains(t, p.SalesDescription, "Fire Rating: Class A")
	assert.Contains(t, p.SalesDescription, "Country of Origin: USA, Italy")
}

func TestIsDigital(t *testing.T) {
	assert.True(t, IsDigital(models.ProductTypeDigital, "1234-5678"))
	assert.True(t, IsDigital(models.ProductTypeRegular, "DIGITAL-SAMPLE"))
	assert.False(t, IsDigital(models.ProductTypeRegular, "1234-5678"))
}
