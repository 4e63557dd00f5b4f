// internal/services/reconciliation_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sellgate/checkout-backend/internal/gateway"
	"github.com/sellgate/checkout-backend/internal/models"
)

// Outcome codes returned to the gateway in the acknowledgment body. They
// extend the audit actions with the resolver-level miss, which never reaches
// the financial ledger because there is no sale to attach it to.
const (
	OutcomeNoMatchingSale = "no_matching_sale"
)

type ReconciliationService struct {
	db          *gorm.DB
	commissions *CommissionService
	dispatcher  *DispatchService
}

// ReconcileResult is what the webhook handler reports back to the gateway.
type ReconcileResult struct {
	Action string
	Status models.SaleStatus
	Sale   *models.Sale
}

func NewReconciliationService(db *gorm.DB, commissions *CommissionService, dispatcher *DispatchService) *ReconciliationService {
	return &ReconciliationService{
		db:          db,
		commissions: commissions,
		dispatcher:  dispatcher,
	}
}

// ProcessEvent advances the referenced sale through the status state machine
// and, on a genuine forward transition into approved, fans out the monetary
// splits and side effects. Every decision for a resolved sale is appended to
// the financial audit ledger, whether or not the sale was mutated.
//
// ProcessEvent never fails the webhook: unresolvable and rejected events are
// reported through the result's Action so the handler can acknowledge 200.
func (s *ReconciliationService) ProcessEvent(ctx context.Context, event *gateway.GatewayEvent) *ReconcileResult {
	status := gateway.Translate(event.EventType, event.RawStatus)

	sale := s.resolveSale(ctx, event)
	if sale == nil {
		// Not an error: the event may belong to a sale outside this
		// system's knowledge, test traffic included.
		logrus.WithFields(logrus.Fields{
			"event_type":     event.EventType,
			"transaction_id": event.GatewayTransactionID,
			"external_ref":   event.ExternalRef,
			"status":         status,
		}).Info("Gateway event did not resolve to a sale")
		return &ReconcileResult{Action: OutcomeNoMatchingSale, Status: status}
	}

	previous := sale.Status
	action, reason, applied := s.applyTransition(ctx, sale, status, event.RawStatus)

	s.appendAuditEntry(ctx, sale, event, status, previous, action, reason)

	if applied && status == models.SaleStatusApproved && previous != models.SaleStatusApproved {
		s.onApproved(ctx, sale)
	}
	// A redelivered revocation is re-applied (same priority) but must not
	// re-notify the seller or re-report analytics.
	if applied && status.IsRevocation() && previous != status {
		s.onRevoked(ctx, sale, status)
	}

	return &ReconcileResult{Action: string(action), Status: status, Sale: sale}
}

// resolveSale tries the correlation keys in fixed priority order, stopping at
// the first hit. The checkout flow supplies either a sale id or an order
// ref depending on the call path, and the gateway echoes back whichever it
// was given plus its own transaction id, so no single field is reliably
// present across gateways and code paths.
func (s *ReconciliationService) resolveSale(ctx context.Context, event *gateway.GatewayEvent) *models.Sale {
	preload := func(db *gorm.DB) *gorm.DB {
		return db.Preload("Product").Preload("Product.CoProducers").Preload("Seller").
			Preload("Items").Preload("Items.Product").Preload("Items.Product.CoProducers")
	}

	if saleID, err := uuid.Parse(event.Metadata.SaleID); err == nil {
		var sale models.Sale
		if err := preload(s.db.WithContext(ctx)).First(&sale, "id = ?", saleID).Error; err == nil {
			return &sale
		}
	}

	for _, ref := range []string{event.GatewayTransactionID, event.ExternalRef, event.Metadata.OrderID} {
		if ref == "" {
			continue
		}
		var sale models.Sale
		if err := preload(s.db.WithContext(ctx)).First(&sale, "transaction_id = ?", ref).Error; err == nil {
			return &sale
		}
	}

	return nil
}

// applyTransition enforces the idempotent, monotonic state machine. The
// write is a single conditional UPDATE keyed on the previously read status:
// two concurrent deliveries of the same event race on it and exactly one
// wins; the loser's zero-row update is an idempotent skip, not an error.
func (s *ReconciliationService) applyTransition(ctx context.Context, sale *models.Sale, incoming models.SaleStatus, rawStatus string) (models.AuditAction, string, bool) {
	current := sale.Status

	if current == models.SaleStatusApproved && incoming == models.SaleStatusApproved {
		return models.AuditActionIdempotentSkip, "sale already approved, duplicate delivery ignored", false
	}

	if incoming.Priority() < current.Priority() {
		reason := fmt.Sprintf("incoming status %s (priority %d) cannot regress current status %s (priority %d)",
			incoming, incoming.Priority(), current, current.Priority())
		return models.AuditActionRegressionBlocked, reason, false
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     incoming,
		"updated_at": now,
	}
	if incoming == models.SaleStatusApproved {
		updates["approved_at"] = now
	}

	res := s.db.WithContext(ctx).Model(&models.Sale{}).
		Where("id = ? AND status = ?", sale.ID, current).
		Updates(updates)
	if res.Error != nil {
		logrus.WithError(res.Error).WithField("sale_id", sale.ID).
			Error("Failed to persist status transition")
		return models.AuditActionError, "persistence failure: " + res.Error.Error(), false
	}
	if res.RowsAffected == 0 {
		return models.AuditActionIdempotentSkip, "concurrent delivery already advanced the sale", false
	}

	sale.Status = incoming
	sale.UpdatedAt = now
	if incoming == models.SaleStatusApproved {
		sale.ApprovedAt = &now
	}

	if gateway.WalletImpacting(effectiveStatusToken(rawStatus, incoming)) {
		return models.AuditActionAccepted, fmt.Sprintf("transition %s -> %s applied", current, incoming), true
	}
	return models.AuditActionBlockedFromWallet,
		fmt.Sprintf("transition %s -> %s applied, status does not release seller balance", current, incoming), true
}

// appendAuditEntry writes the immutable transition-decision record. The
// ledger never drives control flow; a failed insert is logged and the event
// continues, so a reporting outage cannot turn into dropped gateway traffic.
func (s *ReconciliationService) appendAuditEntry(ctx context.Context, sale *models.Sale, event *gateway.GatewayEvent, status, previous models.SaleStatus, action models.AuditAction, reason string) {
	entry := &models.FinancialAuditLogEntry{
		SaleID:          sale.ID,
		StatusReceived:  status,
		RawStatus:       event.RawStatus,
		PreviousStatus:  previous,
		WalletImpacting: gateway.WalletImpacting(effectiveStatusToken(event.RawStatus, status)),
		Action:          action,
		Reason:          reason,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"sale_id": sale.ID,
			"action":  action,
		}).Error("Failed to append financial audit entry")
	}
}

func (s *ReconciliationService) onApproved(ctx context.Context, sale *models.Sale) {
	if err := s.commissions.ProcessApproval(ctx, sale); err != nil {
		logrus.WithError(err).WithField("sale_id", sale.ID).
			Error("Commission processing failed")
	}
	s.dispatcher.DispatchApproval(ctx, sale)
}

func (s *ReconciliationService) onRevoked(ctx context.Context, sale *models.Sale, status models.SaleStatus) {
	s.dispatcher.DispatchRevocation(ctx, sale, status)
}

// effectiveStatusToken prefers the gateway's own token for the
// wallet-impacting check, falling back to the canonical status when the
// payload carried no explicit status field.
func effectiveStatusToken(raw string, status models.SaleStatus) string {
	if raw != "" {
		return raw
	}
	return string(status)
}
