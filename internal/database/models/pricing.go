package models

import "time"

// OpmsPrice is one of the two tables the Webhook Applier updates,
// keyed on (product_id, product_type) per spec.md §3.
type OpmsPrice struct {
	ProductID     uint        `gorm:"column:product_id;primaryKey" json:"product_id"`
	ProductType   ProductType `gorm:"column:product_type;primaryKey" json:"product_type"`
	CustomerCut   float64     `gorm:"column:customer_cut" json:"customer_cut"`
	CustomerRoll  float64     `gorm:"column:customer_roll" json:"customer_roll"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (OpmsPrice) TableName() string { return "opms_price" }

// OpmsCost is the second table, keyed on product_id alone.
type OpmsCost struct {
	ProductID uint      `gorm:"column:product_id;primaryKey" json:"product_id"`
	VendorCut  float64   `gorm:"column:vendor_cut" json:"vendor_cut"`
	VendorRoll float64   `gorm:"column:vendor_roll" json:"vendor_roll"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (OpmsCost) TableName() string { return "opms_cost" }
