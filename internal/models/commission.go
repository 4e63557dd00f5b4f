// internal/models/commission.go
package models

import (
	"github.com/google/uuid"
)

// CommissionRecord is written exactly once per (sale, beneficiary, role).
// The unique index doubles as the race-safe idempotency guard: an
// insert-conflict means another delivery already processed the sale.
type CommissionRecord struct {
	BaseModel
	SaleID         uuid.UUID        `json:"sale_id" gorm:"type:uuid;not null;index;uniqueIndex:ux_commission_sale_user_role"`
	UserID         uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index;uniqueIndex:ux_commission_sale_user_role"`
	Role           CommissionRole   `json:"role" gorm:"type:varchar(20);not null;uniqueIndex:ux_commission_sale_user_role"`
	CommissionType CommissionType   `json:"commission_type" gorm:"type:varchar(20);not null"`
	Percentage     float64          `json:"percentage" gorm:"type:decimal(5,2);default:0"`
	Amount         float64          `json:"amount" gorm:"type:decimal(10,2);not null"`
	Status         CommissionStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
}

// OrderItemCommission holds the per-order-bump-item sub-split, scoped to the
// item's own product and co-producers, with the item subtotal as the base.
type OrderItemCommission struct {
	BaseModel
	OrderItemID    uuid.UUID        `json:"order_item_id" gorm:"type:uuid;not null;index;uniqueIndex:ux_item_commission_user_role"`
	SaleID         uuid.UUID        `json:"sale_id" gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:ux_item_commission_user_role"`
	Role           CommissionRole   `json:"role" gorm:"type:varchar(20);not null;uniqueIndex:ux_item_commission_user_role"`
	CommissionType CommissionType   `json:"commission_type" gorm:"type:varchar(20);not null"`
	Percentage     float64          `json:"percentage" gorm:"type:decimal(5,2);default:0"`
	Amount         float64          `json:"amount" gorm:"type:decimal(10,2);not null"`
	Status         CommissionStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
}

// PaymentSplit is the settlement-facing counterpart of CommissionRecord,
// including the platform fee attribution against the gross amount.
type PaymentSplit struct {
	BaseModel
	SaleID          uuid.UUID       `json:"sale_id" gorm:"type:uuid;not null;index;uniqueIndex:ux_split_sale_beneficiary"`
	BeneficiaryType BeneficiaryType `json:"beneficiary_type" gorm:"type:varchar(20);not null;uniqueIndex:ux_split_sale_beneficiary"`
	UserID          *uuid.UUID      `json:"user_id" gorm:"type:uuid;index;uniqueIndex:ux_split_sale_beneficiary"`
	Role            CommissionRole  `json:"role" gorm:"type:varchar(20)"`
	Amount          float64         `json:"amount" gorm:"type:decimal(10,2);not null"`
	Percentage      float64         `json:"percentage" gorm:"type:decimal(5,2);default:0"`
}

// AffiliateSaleRecord is created on first approval of an affiliated sale,
// guarded by an existence check on (affiliation, product, sale amount).
type AffiliateSaleRecord struct {
	BaseModel
	AffiliationID    uuid.UUID `json:"affiliation_id" gorm:"type:uuid;not null;index;uniqueIndex:ux_affiliate_sale"`
	ProductID        uuid.UUID `json:"product_id" gorm:"type:uuid;not null;uniqueIndex:ux_affiliate_sale"`
	SaleID           uuid.UUID `json:"sale_id" gorm:"type:uuid;not null;index"`
	SaleAmount       float64   `json:"sale_amount" gorm:"type:decimal(10,2);not null;uniqueIndex:ux_affiliate_sale"`
	CommissionAmount float64   `json:"commission_amount" gorm:"type:decimal(10,2);not null"`
	OwnerEarnings    float64   `json:"owner_earnings" gorm:"type:decimal(10,2);not null"`
}
