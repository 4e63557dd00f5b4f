// internal/models/sale.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Sale is the canonical record of one checkout attempt and its financial
// lifecycle. Status writes go through the reconciliation engine only; a sale
// is never deleted, it can only advance to a terminal status.
type Sale struct {
	BaseModel
	ProductID        uuid.UUID  `json:"product_id" gorm:"type:uuid;not null;index"`
	SellerUserID     uuid.UUID  `json:"seller_user_id" gorm:"type:uuid;not null;index"`
	AffiliationID    *uuid.UUID `json:"affiliation_id" gorm:"type:uuid;index"`
	CampaignID       *uuid.UUID `json:"campaign_id" gorm:"type:uuid;index"`
	Status           SaleStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Amount           float64    `json:"amount" gorm:"type:decimal(10,2);not null"`
	NetAmount        float64    `json:"net_amount" gorm:"type:decimal(10,2);not null"`
	PaymentFee       float64    `json:"payment_fee" gorm:"type:decimal(10,2);default:0"`
	CommissionAmount float64    `json:"commission_amount" gorm:"type:decimal(10,2);default:0"`
	TransactionID    string     `json:"transaction_id" gorm:"size:255;index"`
	PaymentMethod    string     `json:"payment_method" gorm:"size:50"`
	CouponCode       string     `json:"coupon_code,omitempty" gorm:"size:100"`
	BuyerName        string     `json:"buyer_name" gorm:"size:255"`
	BuyerEmail       string     `json:"buyer_email" gorm:"size:255;index"`
	BuyerDocument    string     `json:"buyer_document" gorm:"size:50"`
	ApprovedAt       *time.Time `json:"approved_at"`

	// Relationships
	Product     Product      `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Seller      User         `json:"seller,omitempty" gorm:"foreignKey:SellerUserID"`
	Affiliation *Affiliation `json:"affiliation,omitempty" gorm:"foreignKey:AffiliationID"`
	Items       []OrderItem  `json:"items,omitempty" gorm:"foreignKey:SaleID"`
}

// OrderItem is one purchasable line on a sale: the main product plus zero or
// more order-bump add-ons, each with its own delivery and commission scope.
type OrderItem struct {
	BaseModel
	SaleID         uuid.UUID      `json:"sale_id" gorm:"type:uuid;not null;index"`
	ProductID      uuid.UUID      `json:"product_id" gorm:"type:uuid;not null;index"`
	ItemType       OrderItemType  `json:"item_type" gorm:"type:varchar(10);not null;default:'main'"`
	Subtotal       float64        `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	DeliveryStatus DeliveryStatus `json:"delivery_status" gorm:"type:varchar(20);default:'pending'"`

	// Relationships
	Product Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}
