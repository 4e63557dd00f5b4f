// internal/gateway/status.go
package gateway

import (
	"strings"

	"github.com/sellgate/checkout-backend/internal/models"
)

var statusTable = map[string]models.SaleStatus{
	"paid":            models.SaleStatusApproved,
	"approved":        models.SaleStatusApproved,
	"confirmed":       models.SaleStatusApproved,
	"succeeded":       models.SaleStatusApproved,
	"completed":       models.SaleStatusApproved,
	"captured":        models.SaleStatusApproved,
	"pending":         models.SaleStatusPending,
	"processing":      models.SaleStatusPending,
	"created":         models.SaleStatusPending,
	"waiting_payment": models.SaleStatusPending,
	"in_analysis":     models.SaleStatusPending,
	"refused":         models.SaleStatusRefused,
	"declined":        models.SaleStatusRefused,
	"rejected":        models.SaleStatusRefused,
	"failed":          models.SaleStatusRefused,
	"refunded":        models.SaleStatusRefunded,
	"reversed":        models.SaleStatusRefunded,
	"chargeback":      models.SaleStatusChargeback,
	"chargedback":     models.SaleStatusChargeback,
	"dispute":         models.SaleStatusChargeback,
	"canceled":        models.SaleStatusCancelled,
	"cancelled":       models.SaleStatusCancelled,
	"voided":          models.SaleStatusCancelled,
	"expired":         models.SaleStatusExpired,
	"overdue":         models.SaleStatusExpired,
}

// Event-type vocabulary used when the payload carries no explicit status.
var eventTypeTable = map[string]models.SaleStatus{
	"purchase_approved":   models.SaleStatusApproved,
	"payment_approved":    models.SaleStatusApproved,
	"purchase_refunded":   models.SaleStatusRefunded,
	"purchase_chargeback": models.SaleStatusChargeback,
	"purchase_canceled":   models.SaleStatusCancelled,
	"purchase_expired":    models.SaleStatusExpired,
	"purchase_refused":    models.SaleStatusRefused,
}

// Translate maps gateway vocabulary to the canonical status set. An explicit
// rawStatus wins over the envelope event type, because some gateways send a
// generic envelope ("transaction") with the real status nested in the
// payload. Unrecognized tokens map to pending: money is never assumed to
// have moved without explicit positive confirmation.
func Translate(eventType, rawStatus string) models.SaleStatus {
	if status, ok := statusTable[normalizeToken(rawStatus)]; ok {
		return status
	}
	token := normalizeToken(eventType)
	if token != "" && token != "transaction" {
		if status, ok := eventTypeTable[token]; ok {
			return status
		}
		if status, ok := statusTable[token]; ok {
			return status
		}
	}
	return models.SaleStatusPending
}

// WalletImpacting reports whether the raw status is in the fixed set of
// tokens that increase a seller's available balance.
func WalletImpacting(rawStatus string) bool {
	switch normalizeToken(rawStatus) {
	case "paid", "approved", "confirmed":
		return true
	}
	return false
}

func normalizeToken(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	token = strings.ReplaceAll(token, "-", "_")
	token = strings.ReplaceAll(token, ".", "_")
	token = strings.ReplaceAll(token, " ", "_")
	return token
}
