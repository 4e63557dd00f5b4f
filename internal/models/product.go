// internal/models/product.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Product struct {
	BaseModel
	OwnerUserID uuid.UUID      `json:"owner_user_id" gorm:"type:uuid;not null;index"`
	Title       string         `json:"title" gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"type:text"`
	Price       float64        `json:"price" gorm:"type:decimal(10,2);not null"`
	Recurring   bool           `json:"recurring" gorm:"default:false"`
	Tags        pq.StringArray `json:"tags" gorm:"type:text[]"`
	Active      bool           `json:"active" gorm:"default:true"`

	// Relationships
	Owner       User         `json:"owner,omitempty" gorm:"foreignKey:OwnerUserID"`
	CoProducers []CoProducer `json:"co_producers,omitempty" gorm:"foreignKey:ProductID"`
}

// CoProducer is a secondary beneficiary entitled to a configured share of a
// product's net revenue, either a percentage or a fixed amount per sale.
type CoProducer struct {
	BaseModel
	ProductID      uuid.UUID      `json:"product_id" gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	CommissionType CommissionType `json:"commission_type" gorm:"type:varchar(20);not null"`
	Percentage     float64        `json:"percentage" gorm:"type:decimal(5,2);default:0"`
	FixedAmount    float64        `json:"fixed_amount" gorm:"type:decimal(10,2);default:0"`
	Active         bool           `json:"active" gorm:"default:true"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

type Affiliation struct {
	BaseModel
	ProductID  uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Percentage float64   `json:"percentage" gorm:"type:decimal(5,2);default:0"`
	Active     bool      `json:"active" gorm:"default:true"`

	// Relationships
	User    User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Product Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

// AffiliateClick tracks referral traffic; the most recent unconverted click
// for an affiliation is marked converted when the sale is approved.
type AffiliateClick struct {
	BaseModel
	AffiliationID uuid.UUID  `json:"affiliation_id" gorm:"type:uuid;not null;index"`
	Source        string     `json:"source" gorm:"size:255"`
	Converted     bool       `json:"converted" gorm:"default:false;index"`
	ConvertedAt   *time.Time `json:"converted_at"`
}

// Campaign is a discount coupon campaign configured by the seller.
type Campaign struct {
	BaseModel
	SellerUserID uuid.UUID `json:"seller_user_id" gorm:"type:uuid;not null;index"`
	Code         string    `json:"code" gorm:"size:100;not null;index"`
	UsageCount   int64     `json:"usage_count" gorm:"default:0"`
	UsageLimit   int64     `json:"usage_limit" gorm:"default:0"`
	Active       bool      `json:"active" gorm:"default:true"`
}

type CampaignUsage struct {
	BaseModel
	CampaignID uuid.UUID `json:"campaign_id" gorm:"type:uuid;not null;index"`
	SaleID     uuid.UUID `json:"sale_id" gorm:"type:uuid;not null;index"`
	Code       string    `json:"code" gorm:"size:100"`
}

// SellerWebhook is a seller-configured endpoint that receives a normalized
// payload for every reconciled event on that seller's sales.
type SellerWebhook struct {
	BaseModel
	SellerUserID uuid.UUID      `json:"seller_user_id" gorm:"type:uuid;not null;index"`
	URL          string         `json:"url" gorm:"size:1024;not null"`
	Secret       string         `json:"-" gorm:"size:255"`
	Events       pq.StringArray `json:"events" gorm:"type:text[]"`
	Active       bool           `json:"active" gorm:"default:true"`
}

// Subscribes reports whether the endpoint wants eventType. An empty event
// list means all events.
func (w *SellerWebhook) Subscribes(eventType string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, event := range w.Events {
		if event == eventType {
			return true
		}
	}
	return false
}
