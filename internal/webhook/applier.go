// Package webhook implements the Webhook Applier: the inbound pricing
// callback handler that writes ERP-sourced cost/price data back into
// OPMS (spec.md §4.6). Every apply is a single transaction across the
// two pricing tables, with a before/after snapshot kept for audit.
package webhook

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tatidev/opms-erp-sync/internal/database/models"
	"github.com/tatidev/opms-erp-sync/internal/errs"
	"github.com/tatidev/opms-erp-sync/internal/logger"
	"github.com/tatidev/opms-erp-sync/internal/middleware"
)

const (
	minPriceValue = 0.01
	maxPriceValue = 999999.99
)

// Payload is the inbound ERP webhook body (spec.md §4.6).
type Payload struct {
	ItemID       string  `json:"itemid" binding:"required"`
	InternalID   string  `json:"internalid" binding:"required"`
	Protected    bool    `json:"protected"`
	ProductID    uint    `json:"custitem_opms_prod_id"`
	ProductType  string  `json:"custitem_opms_product_type"`
	CustomerCut  *float64 `json:"customer_cut"`
	CustomerRoll *float64 `json:"customer_roll"`
	VendorCut    *float64 `json:"vendor_cut"`
	VendorRoll   *float64 `json:"vendor_roll"`
}

// Snapshot captures the pricing rows before and after an apply, for the
// response body and for audit logging.
type Snapshot struct {
	Before *PricingState `json:"before"`
	After  *PricingState `json:"after"`
}

// PricingState is the full pair of pricing rows for one product.
type PricingState struct {
	Price *models.OpmsPrice `json:"price,omitempty"`
	Cost  *models.OpmsCost  `json:"cost,omitempty"`
}

// Outcome is the result of one Apply call.
type Outcome struct {
	Applied  bool
	Skipped  bool
	Reason   string
	Snapshot *Snapshot
}

// Applier is the Webhook Applier's one public operation.
type Applier interface {
	Apply(p Payload) (*Outcome, error)
}

type applier struct {
	db  *gorm.DB
	log *logger.Logger

	mu       sync.Mutex
	lastCall time.Time
	spacing  time.Duration
}

// New builds an Applier. spacing enforces spec.md §4.6's 1-second
// minimum gap between consecutive webhook applies.
func New(db *gorm.DB, log *logger.Logger, spacing time.Duration) Applier {
	return &applier{db: db, log: log, spacing: spacing}
}

// Apply validates, matches, and writes one webhook's pricing data.
// A guarded/protected item is a SKIPPED outcome, never a write and
// never an error (spec.md §4.6: "never silently override a protected
// item").
func (a *applier) Apply(p Payload) (*Outcome, error) {
	a.throttle()

	if p.Protected {
		return &Outcome{Skipped: true, Reason: "item is protected in ERP"}, nil
	}
	if p.ItemID == "" || p.InternalID == "" {
		return nil, errs.New(errs.KindWebhookInvalid, "itemid and internalid are required")
	}

	var item models.Item
	if err := a.db.Where("code = ? AND archived = false", p.ItemID).First(&item).Error; err != nil {
		return nil, errs.Wrap(errs.KindWebhookInvalid, "no matching non-archived item for itemid", err)
	}

	var product models.Product
	if err := a.db.Where("id = ? AND archived = false", item.ProductID).First(&product).Error; err != nil {
		return nil, errs.Wrap(errs.KindWebhookInvalid, "matching product is archived or missing", err)
	}

	customerCut := coerceZero(p.CustomerCut)
	customerRoll := coerceZero(p.CustomerRoll)
	vendorCut := coerceZero(p.VendorCut)
	vendorRoll := coerceZero(p.VendorRoll)

	for _, v := range []float64{customerCut, customerRoll, vendorCut, vendorRoll} {
		if v != 0 && (v < minPriceValue || v > maxPriceValue) {
			return nil, errs.New(errs.KindWebhookInvalid, "price value out of range")
		}
	}
	if customerCut > 0 && vendorCut > 0 && customerCut <= vendorCut {
		a.log.Warnw("customer price not above cost", "item_code", p.ItemID, "customer_cut", customerCut, "vendor_cut", vendorCut)
	}

	productType := models.ProductType(p.ProductType)
	if productType == "" {
		productType = item.ProductType
	}

	before := a.snapshot(item.ProductID, productType)

	var after *PricingState
	err := a.db.Transaction(func(tx *gorm.DB) error {
		price := models.OpmsPrice{
			ProductID:    item.ProductID,
			ProductType:  productType,
			CustomerCut:  customerCut,
			CustomerRoll: customerRoll,
			UpdatedAt:    time.Now(),
		}
		if err := tx.Save(&price).Error; err != nil {
			return err
		}

		cost := models.OpmsCost{
			ProductID:  item.ProductID,
			VendorCut:  vendorCut,
			VendorRoll: vendorRoll,
			UpdatedAt:  time.Now(),
		}
		if err := tx.Save(&cost).Error; err != nil {
			return err
		}

		after = &PricingState{Price: &price, Cost: &cost}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindWebhookApplyFailure, "pricing write failed", err)
	}

	return &Outcome{
		Applied:  true,
		Snapshot: &Snapshot{Before: before, After: after},
	}, nil
}

func (a *applier) snapshot(productID uint, productType models.ProductType) *PricingState {
	var price models.OpmsPrice
	var cost models.OpmsCost
	state := &PricingState{}
	if err := a.db.Where("product_id = ? AND product_type = ?", productID, productType).First(&price).Error; err == nil {
		state.Price = &price
	}
	if err := a.db.Where("product_id = ?", productID).First(&cost).Error; err == nil {
		state.Cost = &cost
	}
	return state
}

func (a *applier) throttle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if since := time.Since(a.lastCall); since < a.spacing {
		time.Sleep(a.spacing - since)
	}
	a.lastCall = time.Now()
}

func coerceZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Handler returns the gin handler for the inbound pricing webhook,
// wired to the shared signature-validation middleware (spec.md §4.6).
func Handler(a Applier, log *logger.Logger, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !middleware.ValidateWebhookSignature(c, secret) {
			c.JSON(401, gin.H{"error": "invalid signature"})
			return
		}

		var p Payload
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		outcome, err := a.Apply(p)
		if err != nil {
			log.Errorw("webhook apply failed", "error", err, "itemid", p.ItemID)
			status := 422
			if errs.KindOf(err) == errs.KindWebhookApplyFailure {
				status = 500
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if outcome.Skipped {
			c.JSON(200, gin.H{"skipped": true, "reason": outcome.Reason})
			return
		}
		c.JSON(200, gin.H{"applied": true, "snapshot": outcome.Snapshot})
	}
}
