// Package extractor implements the OPMS Extractor: one master join per
// item plus auxiliary aggregation queries, with a diagnostic follow-up
// when the master join returns nothing (spec.md §4.3).
package extractor

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/errs"
	"github.com/tatidev/opms-erp-sync/internal/logger"
)

// ExtractedItem is the fully-populated row for one item plus its
// auxiliary aggregations. Fields use pointers/empty-slice zero values
// to distinguish "absent" from "present but empty" for the Field
// Validator; the extractor itself never substitutes the sentinel.
type ExtractedItem struct {
	ItemID      uint
	ItemCode    string
	ProductID   uint
	ProductName string

	Width            *float64
	VerticalRepeat   *float64
	HorizontalRepeat *float64

	ColorName string

	Colors   []string
	Vendors  []string
	Finish   []string
	Cleaning []string
	Origin   []string
	Use      []string

	ContentFront string // canonical comma-separated text
	ContentBack  string
	Abrasion     string // placeholder-stripped, comma-joined; not filtered by visibility
	Firecodes    string // comma-joined; not filtered by visibility
	OriginNames  string

	Prop65Compliance *string // "Y" | "N" | "D" | nil
	AB2998Compliance *string
	TariffCode       string

	ProductType models.ProductType
	VendorID    *uint

	ERPVendorID *uint // resolved by vendormap, attached by the caller before Payload Builder runs
}

// Extractor is the OPMS Extractor's one public operation.
type Extractor interface {
	Extract(itemID uint) (*ExtractedItem, error)
}

type extractor struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(db *gorm.DB, log *logger.Logger) Extractor {
	return &extractor{db: db, log: log}
}

// masterRow is the shape of the one master join across item, product,
// vendor, and vendor-mapping tables.
type masterRow struct {
	ItemID      uint
	ItemCode    string
	ProductID   uint
	ProductName string

	Width            *float64
	VerticalRepeat   *float64
	HorizontalRepeat *float64

	Prop65Compliance *string
	AB2998Compliance *string
	TariffCode       string

	ProductType models.ProductType
	VendorID    *uint
	ColorName   string
}

func (e *extractor) Extract(itemID uint) (*ExtractedItem, error) {
	var row masterRow
	err := e.db.Raw(`
		SELECT
			i.id AS item_id, i.code AS item_code, i.color_name AS color_name,
			p.id AS product_id, p.name AS product_name,
			p.width, p.vertical_repeat, p.horizontal_repeat,
			p.prop65_compliance, p.ab2998_compliance, p.tariff_code,
			i.product_type, i.vendor_id
		FROM opms_item i
		JOIN opms_product p ON p.id = i.product_id
		LEFT JOIN opms_vendor v ON v.id = i.vendor_id
		LEFT JOIN opms_netsuite_vendor_mapping vm ON vm.opms_vendor_id = i.vendor_id
		WHERE i.archived = false
		  AND p.archived = false
		  AND i.code IS NOT NULL AND i.code != ''
		  AND i.id = ?
		  AND (i.vendor_id IS NULL OR (v.active = true AND v.archived = false))
		  AND (vm.id IS NULL OR vm.opms_name = vm.erp_name)
	`, itemID).Scan(&row).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindExtractionFailure, "master join query failed", err)
	}
	if row.ItemID == 0 {
		reason, diagErr := e.diagnose(itemID)
		if diagErr != nil {
			reason = "unknown reason"
		}
		return nil, errs.New(errs.KindExtractionFailure, reason)
	}

	item := &ExtractedItem{
		ItemID:           row.ItemID,
		ItemCode:         row.ItemCode,
		ProductID:        row.ProductID,
		ProductName:      row.ProductName,
		Width:            row.Width,
		VerticalRepeat:   row.VerticalRepeat,
		HorizontalRepeat: row.HorizontalRepeat,
		ColorName:        row.ColorName,
		Prop65Compliance: row.Prop65Compliance,
		AB2998Compliance: row.AB2998Compliance,
		TariffCode:       row.TariffCode,
		ProductType:      row.ProductType,
		VendorID:         row.VendorID,
	}

	var product models.Product
	if err := e.db.First(&product, row.ProductID).Error; err != nil {
		return nil, errs.Wrap(errs.KindExtractionFailure, "product aggregation query failed", err)
	}

	item.Colors = []string(product.Colors)
	item.Vendors = []string(product.Vendors)
	item.Finish = []string(product.Finish)
	item.Cleaning = []string(product.Cleaning)
	item.Origin = []string(product.Origin)
	item.Use = []string(product.Use)

	if len(item.Colors) == 0 {
		return nil, errs.New(errs.KindExtractionFailure, "No colors assigned")
	}

	item.ContentFront = canonicalText(product.ContentFront)
	item.ContentBack = canonicalText(product.ContentBack)
	item.Abrasion = cleanAbrasion(product.AbrasionTests)
	item.Firecodes = canonicalVisible(product.Firecodes)
	item.OriginNames = canonicalText(product.Origin)

	return item, nil
}

// diagnose explains why the master join produced no row, per spec.md
// §4.3's "diagnostic follow-up query".
func (e *extractor) diagnose(itemID uint) (string, error) {
	var item models.Item
	err := e.db.First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "Item not found", nil
	}
	if err != nil {
		return "", err
	}
	if item.Archived {
		return "Item is archived", nil
	}
	if item.Code == "" {
		return "Item has no code", nil
	}

	var product models.Product
	if err := e.db.First(&product, item.ProductID).Error; err != nil {
		return "Parent product not found", nil
	}
	if product.Archived {
		return "Parent product is archived", nil
	}
	if len(product.Colors) == 0 {
		return "No colors assigned", nil
	}

	return "Item excluded by master join filters", nil
}

var placeholders = []string{"unknown", "don't know", "n/a", "(unknown)"}

func canonicalText(values []string) string {
	filtered := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		filtered = append(filtered, v)
	}
	return strings.Join(filtered, ", ")
}

// canonicalVisible applies the same trimming and joining as
// canonicalText. No visibility filter is applied: the Product model
// carries no per-value visibility flag, so every firecode is included.
// Kept as a separate name so a visibility filter has an obvious place to
// go without touching canonicalText's callers.
func canonicalVisible(values []string) string {
	return canonicalText(values)
}

// cleanAbrasion strips placeholder tokens (case-insensitive "unknown",
// "don't know", "n/a", and the parenthetical "(Unknown)") before
// joining; if nothing meaningful remains, it returns "" so the Payload
// Builder omits the abrasion line entirely (spec.md §4.3).
func cleanAbrasion(values []string) string {
	filtered := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		skip := false
		for _, p := range placeholders {
			if lower == p {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		filtered = append(filtered, trimmed)
	}
	if len(filtered) == 0 {
		return ""
	}
	return strings.Join(filtered, ", ")
}

// PurchaseDescription composes the purchase description from the fixed
// ordered template in spec.md §4.3. Empty sources are skipped except
// Pattern/Color, which always appear (sentinel applied by the Field
// Validator upstream of this call, so blank here means "already
// sentineled" or "never populated").
func PurchaseDescription(item *ExtractedItem, pattern, color, abrasionCleaned, fireRating string) string {
	lines := []string{
		fmt.Sprintf("Pattern: %s", pattern),
		fmt.Sprintf("Color: %s", color),
	}
	if item.Width != nil {
		lines = append(lines, fmt.Sprintf("Width: %v", *item.Width))
	}
	if item.VerticalRepeat != nil || item.HorizontalRepeat != nil {
		lines = append(lines, fmt.Sprintf("Repeat (H/V): %v/%v", derefOrZero(item.HorizontalRepeat), derefOrZero(item.VerticalRepeat)))
	}
	if item.ContentFront != "" {
		lines = append(lines, fmt.Sprintf("Content: %s", item.ContentFront))
	}
	if item.ContentBack != "" {
		lines = append(lines, fmt.Sprintf("Back Content: %s", item.ContentBack))
	}
	if abrasionCleaned != "" {
		lines = append(lines, fmt.Sprintf("Abrasion: %s", abrasionCleaned))
	}
	if fireRating != "" {
		lines = append(lines, fmt.Sprintf("Fire Rating: %s", fireRating))
	}
	return strings.Join(lines, "\n")
}

// SalesDescription composes the sales description per spec.md §4.3.
func SalesDescription(item *ExtractedItem, pattern, color, abrasionCleaned, fireRating, countryOfOrigin string) string {
	lines := []string{fmt.Sprintf("#%s", item.ItemCode), pattern, color}
	if item.Width != nil {
		lines = append(lines, fmt.Sprintf("Width: %v", *item.Width))
	}
	if item.VerticalRepeat != nil || item.HorizontalRepeat != nil {
		lines = append(lines, fmt.Sprintf("Repeat (H/V): %v/%v", derefOrZero(item.HorizontalRepeat), derefOrZero(item.VerticalRepeat)))
	}
	if item.ContentFront != "" {
		lines = append(lines, fmt.Sprintf("Content: %s", item.ContentFront))
	}
	if item.ContentBack != "" {
		lines = append(lines, fmt.Sprintf("Back Content: %s", item.ContentBack))
	}
	if abrasionCleaned != "" {
		lines = append(lines, fmt.Sprintf("Abrasion: %s", abrasionCleaned))
	}
	if fireRating != "" {
		lines = append(lines, fmt.Sprintf("Fire Rating: %s", fireRating))
	}
	lines = append(lines, fmt.Sprintf("Country of Origin: %s", countryOfOrigin))
	return strings.Join(lines, "\n")
}

func derefOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
