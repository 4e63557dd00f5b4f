// internal/models/audit.go
package models

import (
	"github.com/google/uuid"
)

// FinancialAuditLogEntry records every transition decision, applied or not.
// It is the system of record for "why did the balance change (or not)":
// append-only, never updated, never deleted, total-ordered by insertion.
type FinancialAuditLogEntry struct {
	BaseModel
	SaleID          uuid.UUID   `json:"sale_id" gorm:"type:uuid;not null;index"`
	StatusReceived  SaleStatus  `json:"status_received" gorm:"type:varchar(20);not null"`
	RawStatus       string      `json:"raw_status" gorm:"size:100"`
	PreviousStatus  SaleStatus  `json:"previous_status" gorm:"type:varchar(20)"`
	WalletImpacting bool        `json:"wallet_impacting" gorm:"default:false"`
	Action          AuditAction `json:"action" gorm:"type:varchar(40);not null;index"`
	Reason          string      `json:"reason" gorm:"type:text"`
}

// WebhookLogEntry records one inbound HTTP call: raw payload, resolved
// status and outcome. Operational replay/debugging only, not financial truth.
type WebhookLogEntry struct {
	BaseModel
	Method         string     `json:"method" gorm:"size:10"`
	SourceIP       string     `json:"source_ip" gorm:"size:64"`
	RawPayload     string     `json:"raw_payload" gorm:"type:text"`
	ContentType    string     `json:"content_type" gorm:"size:100"`
	SignatureValid *bool      `json:"signature_valid"`
	ResolvedStatus SaleStatus `json:"resolved_status" gorm:"type:varchar(20)"`
	SaleID         *uuid.UUID `json:"sale_id" gorm:"type:uuid;index"`
	Outcome        string     `json:"outcome" gorm:"size:40;index"`
	ArchiveKey     string     `json:"archive_key,omitempty" gorm:"size:512"`
}

// SellerNotification is the in-app notification row created for the seller
// when a sale is approved, refunded or charged back.
type SellerNotification struct {
	BaseModel
	SellerUserID uuid.UUID  `json:"seller_user_id" gorm:"type:uuid;not null;index"`
	SaleID       *uuid.UUID `json:"sale_id" gorm:"type:uuid;index"`
	Type         string     `json:"type" gorm:"size:50;not null"`
	Title        string     `json:"title" gorm:"size:255;not null"`
	Message      string     `json:"message" gorm:"type:text"`
	Data         JSONB      `json:"data,omitempty" gorm:"type:jsonb"`
	Read         bool       `json:"read" gorm:"default:false"`
}
