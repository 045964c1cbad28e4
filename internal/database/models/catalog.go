package models

import (
	"github.com/lib/pq"
)

// ProductType distinguishes regular sellable fabric from digital items,
// which are excluded from ERP sync entirely (spec.md §3, glossary
// "Digital item").
type ProductType string

const (
	ProductTypeRegular ProductType = "R"
	ProductTypeDigital ProductType = "D"
)

// Item is the syncable unit: one external-code-bearing row belonging to
// a Product. Identity is OPMS's own numeric id (CatalogModel), never a
// generated UUID — OPMS is the system of record for this id.
type Item struct {
	CatalogModel
	Code        string      `gorm:"column:code;index" json:"code"`
	ProductID   uint        `gorm:"column:product_id;index" json:"product_id"`
	Product     *Product    `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Archived    bool        `gorm:"column:archived" json:"archived"`
	ProductType ProductType `gorm:"column:product_type" json:"product_type"`
	VendorID    *uint       `gorm:"column:vendor_id" json:"vendor_id,omitempty"`
	ColorID     *uint       `gorm:"column:color_id" json:"color_id,omitempty"`
	ColorName   string      `gorm:"column:color_name" json:"color_name"`
	ModifiedAt  int64       `gorm:"column:modified_at;autoUpdateTime:milli" json:"modified_at"`
}

func (Item) TableName() string { return "opms_item" }

// Product groups items sharing a pattern/specification. Multi-valued
// relations are stored as Postgres text arrays (pq.StringArray),
// grounded on the teacher's own use of pq.StringArray for comparable
// many-valued columns.
type Product struct {
	CatalogModel
	Name               string         `gorm:"column:name" json:"name"`
	Width              *float64       `gorm:"column:width" json:"width,omitempty"`
	VerticalRepeat     *float64       `gorm:"column:vertical_repeat" json:"vertical_repeat,omitempty"`
	HorizontalRepeat   *float64       `gorm:"column:horizontal_repeat" json:"horizontal_repeat,omitempty"`
	Archived           bool           `gorm:"column:archived" json:"archived"`
	Colors             pq.StringArray `gorm:"column:colors;type:text[]" json:"colors,omitempty"`
	Vendors            pq.StringArray `gorm:"column:vendors;type:text[]" json:"vendors,omitempty"`
	Finish             pq.StringArray `gorm:"column:finish;type:text[]" json:"finish,omitempty"`
	Cleaning           pq.StringArray `gorm:"column:cleaning;type:text[]" json:"cleaning,omitempty"`
	Origin             pq.StringArray `gorm:"column:origin;type:text[]" json:"origin,omitempty"`
	Use                pq.StringArray `gorm:"column:use;type:text[]" json:"use,omitempty"`
	ContentFront       pq.StringArray `gorm:"column:content_front;type:text[]" json:"content_front,omitempty"`
	ContentBack        pq.StringArray `gorm:"column:content_back;type:text[]" json:"content_back,omitempty"`
	AbrasionTests      pq.StringArray `gorm:"column:abrasion_tests;type:text[]" json:"abrasion_tests,omitempty"`
	Firecodes          pq.StringArray `gorm:"column:firecodes;type:text[]" json:"firecodes,omitempty"`
	Prop65Compliance   *string        `gorm:"column:prop65_compliance" json:"prop65_compliance,omitempty"`   // "Y" | "N" | "D" | null
	AB2998Compliance   *string        `gorm:"column:ab2998_compliance" json:"ab2998_compliance,omitempty"`   // "Y" | "N" | "D" | null
	TariffCode         string         `gorm:"column:tariff_code" json:"tariff_code"`
	ModifiedAt         int64          `gorm:"column:modified_at;autoUpdateTime:milli" json:"modified_at"`
}

func (Product) TableName() string { return "opms_product" }

// Vendor is a thin read-side model: the extractor only needs to confirm
// a vendor is active/not archived.
type Vendor struct {
	CatalogModel
	Name     string `gorm:"column:name" json:"name"`
	Active   bool   `gorm:"column:active" json:"active"`
	Archived bool   `gorm:"column:archived" json:"archived"`
}

func (Vendor) TableName() string { return "opms_vendor" }

// VendorMapping links an OPMS vendor to its ERP counterpart. A mapping
// is only trusted by syncability filters when OPMSName == ERPName at
// creation time (spec.md §3); VendorMapper enforces this, not the schema.
type VendorMapping struct {
	CatalogModel
	OPMSVendorID uint   `gorm:"column:opms_vendor_id;uniqueIndex" json:"opms_vendor_id"`
	ERPVendorID  uint   `gorm:"column:erp_vendor_id" json:"erp_vendor_id"`
	OPMSName     string `gorm:"column:opms_name" json:"opms_name"`
	ERPName      string `gorm:"column:erp_name" json:"erp_name"`
}

func (VendorMapping) TableName() string { return "opms_netsuite_vendor_mapping" }
