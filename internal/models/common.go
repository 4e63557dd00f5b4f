// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns an ID client-side so the models also work on databases
// without gen_random_uuid() (the sqlite test database in particular).
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

// Enums

type SaleStatus string

const (
	SaleStatusPending    SaleStatus = "pending"
	SaleStatusApproved   SaleStatus = "approved"
	SaleStatusRefused    SaleStatus = "refused"
	SaleStatusRefunded   SaleStatus = "refunded"
	SaleStatusChargeback SaleStatus = "chargeback"
	SaleStatusCancelled  SaleStatus = "cancelled"
	SaleStatusExpired    SaleStatus = "expired"
)

// Transition priorities. An incoming status with a lower priority than the
// sale's current status is a regression and is never applied.
var saleStatusPriority = map[SaleStatus]int{
	SaleStatusPending:    1,
	SaleStatusRefused:    2,
	SaleStatusCancelled:  2,
	SaleStatusExpired:    2,
	SaleStatusApproved:   3,
	SaleStatusRefunded:   4,
	SaleStatusChargeback: 5,
}

func (s SaleStatus) Priority() int {
	return saleStatusPriority[s]
}

// IsRevocation reports whether the status takes money back from the seller.
func (s SaleStatus) IsRevocation() bool {
	return s == SaleStatusRefunded || s == SaleStatusChargeback
}

type OrderItemType string

const (
	OrderItemTypeMain OrderItemType = "main"
	OrderItemTypeBump OrderItemType = "bump"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRevoked   DeliveryStatus = "revoked"
)

type CommissionType string

const (
	CommissionTypePercentage CommissionType = "percentage"
	CommissionTypeFixed      CommissionType = "fixed"
)

type CommissionRole string

const (
	CommissionRoleProducer   CommissionRole = "producer"
	CommissionRoleCoProducer CommissionRole = "coproducer"
)

type CommissionStatus string

const (
	CommissionStatusPending  CommissionStatus = "pending"
	CommissionStatusReleased CommissionStatus = "released"
	CommissionStatusReversed CommissionStatus = "reversed"
)

type BeneficiaryType string

const (
	BeneficiaryTypePlatform BeneficiaryType = "platform"
	BeneficiaryTypeUser     BeneficiaryType = "user"
)

// AuditAction is the decision recorded for every event that reaches a
// resolved sale, whether or not the sale was mutated.
type AuditAction string

const (
	AuditActionAccepted          AuditAction = "accepted"
	AuditActionBlockedFromWallet AuditAction = "blocked_from_wallet"
	AuditActionIdempotentSkip    AuditAction = "idempotent_skip"
	AuditActionRegressionBlocked AuditAction = "status_regression_blocked"
	AuditActionError             AuditAction = "error"
)

type UserType string

const (
	UserTypeSeller UserType = "seller"
	UserTypeBuyer  UserType = "buyer"
	UserTypeAdmin  UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)
