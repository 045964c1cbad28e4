// Package dryrun implements the Dry-Run Simulator: Extractor + Validator
// + Payload Builder without any network call, persisting what would
// have been sent (spec.md §4 Dry-Run Simulator row).
package dryrun

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/errs"
	"github.com/tatidev/opms-erp-sync/internal/extractor"
	"github.com/tatidev/opms-erp-sync/internal/payload"
	"github.com/tatidev/opms-erp-sync/internal/vendormap"
)

// SimulatedResponse is the canned, never-sent response a dry run
// records in place of an actual ERP round trip.
type SimulatedResponse struct {
	Success   bool   `json:"success"`
	Simulated bool   `json:"simulated"`
	ItemID    string `json:"itemId"`
	Note      string `json:"note"`
}

// Simulator is the Dry-Run Simulator's one public operation.
type Simulator interface {
	Run(itemID uint) (*models.DryRunRecord, error)
}

type simulator struct {
	db      *gorm.DB
	extract extractor.Extractor
	vendors vendormap.Mapper
	builder payload.Builder
}

func New(db *gorm.DB, ext extractor.Extractor, vendors vendormap.Mapper, builder payload.Builder) Simulator {
	return &simulator{db: db, extract: ext, vendors: vendors, builder: builder}
}

// Run extracts and builds exactly like the Dispatcher would, but never
// calls erpclient and always persists a DryRunRecord, whatever the
// outcome.
func (s *simulator) Run(itemID uint) (*models.DryRunRecord, error) {
	record := &models.DryRunRecord{ItemID: itemID}

	extracted, err := s.extract.Extract(itemID)
	if err != nil {
		record.ValidationSummary = marshalOrEmpty(map[string]string{"error": err.Error()})
		record.SimulatedResponse = marshalOrEmpty(SimulatedResponse{Simulated: true, Success: false, Note: "extraction failed"})
		s.persist(record)
		return record, errs.Wrap(errs.KindExtractionFailure, "dry run extraction failed", err)
	}

	var item models.Item
	if err := s.db.First(&item, itemID).Error; err == nil {
		extracted.VendorID = item.VendorID
		if extracted.VendorID != nil {
			if erpID, ok := s.vendors.ERPIDFor(*extracted.VendorID); ok {
				extracted.ERPVendorID = &erpID
			}
		}
	}

	built, err := s.builder.Build(extracted)
	if err != nil {
		record.ValidationSummary = marshalOrEmpty(map[string]string{"error": err.Error()})
		record.SimulatedResponse = marshalOrEmpty(SimulatedResponse{Simulated: true, Success: false, Note: "payload build failed"})
		s.persist(record)
		return record, errs.Wrap(errs.KindTransformationFailure, "dry run build failed", err)
	}

	record.Payload = marshalOrEmpty(built)
	record.ValidationSummary = marshalOrEmpty(map[string]string{"field_validation_summary": built.FieldValidationSummary})
	record.SimulatedResponse = marshalOrEmpty(SimulatedResponse{
		Success: true, Simulated: true, ItemID: built.ItemID,
		Note: "no network call was made",
	})
	s.persist(record)
	return record, nil
}

func (s *simulator) persist(record *models.DryRunRecord) {
	record.UpdatedAt = time.Now()
	_ = s.db.Create(record).Error
}

func marshalOrEmpty(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(data)
}
