// Package payload implements the Payload Builder: a deterministic,
// statically-typed mapping from an ExtractedItem to the ERP upsert
// payload (spec.md §4.5, §6). Every field is declared ahead of time —
// no map[string]interface{} — per Design Note 9.
package payload

import (
	"fmt"
	"strings"

	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/errs"
	"github.com/tatidev/opms-erp-sync/internal/extractor"
	"github.com/tatidev/opms-erp-sync/internal/validator"
)

// Fixed ERP constants, carried as typed values on every payload
// (spec.md §4.5, §8).
const (
	ConstUseBins          = true
	ConstMatchBillToReceipt = true
	ConstAutoNumbered     = true
	ConstUnitsType        = 2
	ConstNumberFormat     = 1
	ConstInitialSequence  = 1
)

// Payload is the ERP upsert payload, field names matching the canonical
// keys in spec.md §6 exactly.
type Payload struct {
	ItemID         string `json:"itemId"`
	UPCCode        string `json:"upcCode"`
	TaxScheduleID  string `json:"taxScheduleId"`
	DisplayName    string `json:"displayName"`

	Description        string `json:"description"`
	PurchaseDescription string `json:"purchaseDescription"`
	SalesDescription    string `json:"salesDescription"`

	Vendor *int `json:"vendor,omitempty"`

	OPMSProductID uint   `json:"custitem_opms_prod_id"`
	OPMSItemID    uint   `json:"custitem_opms_item_id"`
	ParentProductName string `json:"custitem_opms_parent_product_name"`

	FabricWidth           string `json:"fabricWidth"`
	VerticalRepeat        string `json:"custitem_vertical_repeat"`
	HorizontalRepeat      string `json:"custitem_horizontal_repeat"`
	IsRepeat              bool   `json:"custitem_is_repeat"`

	ItemColors   string `json:"custitem_opms_item_colors"`
	Finish       string `json:"finish"`
	Cleaning     string `json:"cleaning"`
	Origin       string `json:"origin"`
	Application  string `json:"custitem_item_application"`

	Prop65Compliance string `json:"custitem_prop65_compliance"`
	AB2998Compliance string `json:"custitem_ab2998_compliance"`
	TariffCode       string `json:"custitem_tariff_harmonized_code"`

	FrontContent string `json:"custitem_opms_front_content"`
	BackContent  string `json:"custitem_opms_back_content"`
	Abrasion     string `json:"custitem_opms_abrasion"`
	Firecodes    string `json:"custitem_opms_firecodes"`

	FieldValidationSummary string `json:"custitem_opms_field_validation_summary"`

	UseBins          bool `json:"usebins"`
	MatchBillToReceipt bool `json:"matchbilltoreceipt"`
	AutoNumbered     bool `json:"custitem_aln_1_auto_numbered"`

	UnitsType        int `json:"unitstype"`
	NumberFormat     int `json:"custitem_aln_2_number_format"`
	InitialSequence  int `json:"custitem_aln_3_initial_sequence"`
}

// Builder is the Payload Builder's one public operation.
type Builder interface {
	Build(item *extractor.ExtractedItem) (*Payload, error)
}

type builder struct {
	defaultTaxScheduleID string
}

func New(defaultTaxScheduleID string) Builder {
	return &builder{defaultTaxScheduleID: defaultTaxScheduleID}
}

func (b *builder) Build(item *extractor.ExtractedItem) (*Payload, error) {
	if item == nil {
		return nil, errs.New(errs.KindTransformationFailure, "nil extracted item")
	}
	if item.ItemCode == "" {
		return nil, errs.New(errs.KindTransformationFailure, "item code required")
	}

	var acc validator.Accumulator

	pattern := acc.ClassifyString(true, item.ProductName)
	color := acc.ClassifyString(true, item.ColorName)
	frontContent := acc.ClassifyString(true, item.ContentFront)
	backContent := acc.ClassifyString(true, item.ContentBack)
	abrasion := acc.ClassifyString(true, item.Abrasion)
	firecodes := acc.ClassifyString(true, item.Firecodes)
	finish := acc.ClassifyCollection(item.Finish)
	cleaning := acc.ClassifyCollection(item.Cleaning)
	origin := acc.ClassifyCollection(item.Origin)
	use := acc.ClassifyCollection(item.Use)
	colors := acc.ClassifyCollection(item.Colors)
	tariff := acc.ClassifyString(true, item.TariffCode)

	p := &Payload{
		ItemID:        truncate(item.ItemCode, 40),
		UPCCode:       fallbackUPC(""),
		TaxScheduleID: b.defaultTaxScheduleID,
		DisplayName:   fmt.Sprintf("%s: %s", pattern.Value, color.Value),

		Description:         "",
		PurchaseDescription: extractor.PurchaseDescription(item, pattern.Value, color.Value, item.Abrasion, item.Firecodes),
		SalesDescription:    extractor.SalesDescription(item, pattern.Value, color.Value, item.Abrasion, item.Firecodes, item.OriginNames),

		OPMSProductID:     item.ProductID,
		OPMSItemID:        item.ItemID,
		ParentProductName: pattern.Value,

		FabricWidth:      numericOrSentinel(item.Width),
		VerticalRepeat:   numericOrSentinel(item.VerticalRepeat),
		HorizontalRepeat: numericOrSentinel(item.HorizontalRepeat),
		IsRepeat:         item.VerticalRepeat != nil || item.HorizontalRepeat != nil,

		ItemColors:  colors.Value,
		Finish:      finish.Value,
		Cleaning:    cleaning.Value,
		Origin:      origin.Value,
		Application: use.Value,

		Prop65Compliance: complianceTriState(item.Prop65Compliance),
		AB2998Compliance: complianceTriState(item.AB2998Compliance),
		TariffCode:       tariff.Value,

		FrontContent: frontContent.Value,
		BackContent:  backContent.Value,
		Abrasion:     abrasion.Value,
		Firecodes:    firecodes.Value,

		UseBins:            ConstUseBins,
		MatchBillToReceipt: ConstMatchBillToReceipt,
		AutoNumbered:       ConstAutoNumbered,
		UnitsType:          ConstUnitsType,
		NumberFormat:       ConstNumberFormat,
		InitialSequence:    ConstInitialSequence,
	}

	if item.ERPVendorID != nil {
		id := int(*item.ERPVendorID)
		p.Vendor = &id
	}

	summary := acc.Summary()
	p.FieldValidationSummary = fmt.Sprintf("has_data=%d,src_empty=%d,query_failed=%d", summary.HasData, summary.SrcEmpty, summary.QueryFailed)

	return p, nil
}

// complianceTriState maps OPMS {Y, N, D, null} -> ERP {"Yes", "No", " - ", " - "}.
func complianceTriState(v *string) string {
	if v == nil {
		return validator.Sentinel
	}
	switch *v {
	case "Y":
		return "Yes"
	case "N":
		return "No"
	default: // "D" or anything else unrecognized
		return validator.Sentinel
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func fallbackUPC(upc string) string {
	if upc != "" {
		return truncate(upc, 20)
	}
	return "0000000000"
}

func numericOrSentinel(v *float64) string {
	if v == nil {
		return validator.Sentinel
	}
	return fmt.Sprintf("%v", *v)
}

// IsDigital reports whether an item is a digital item (product type "D",
// or a code containing "digital" in any case), which is never synced. It
// checks nothing else (archived flags are not consulted); callers use it
// before Build is even invoked, and it is kept here because it shares the
// digital-item criteria the builder must never contradict (spec.md
// glossary "Digital item").
func IsDigital(productType models.ProductType, code string) bool {
	return productType == models.ProductTypeDigital || strings.Contains(strings.ToLower(code), "digital")
}
