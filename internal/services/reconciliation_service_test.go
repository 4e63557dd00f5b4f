// internal/services/reconciliation_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/sellgate/checkout-backend/internal/gateway"
	"github.com/sellgate/checkout-backend/internal/models"
)

type ReconciliationServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	fakes   *dispatchFakes
	service *ReconciliationService

	ownerID uuid.UUID
	product *models.Product
	sale    *models.Sale
}

func (suite *ReconciliationServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.fakes = newDispatchFakes()

	cfg := newTestConfig()
	commissions := NewCommissionService(suite.db, cfg)
	suite.service = NewReconciliationService(suite.db, commissions, suite.fakes.service(suite.db))

	suite.ownerID = uuid.New()
	seller := &models.User{Username: "seller", Email: "seller@example.com", UserType: models.UserTypeSeller, Status: models.UserStatusActive}
	seller.ID = suite.ownerID
	suite.Require().NoError(suite.db.Create(seller).Error)

	suite.product = &models.Product{OwnerUserID: suite.ownerID, Title: "Mentorship", Price: 200, Active: true}
	suite.Require().NoError(suite.db.Create(suite.product).Error)

	suite.sale = &models.Sale{
		ProductID:     suite.product.ID,
		SellerUserID:  suite.ownerID,
		Status:        models.SaleStatusPending,
		Amount:        200,
		NetAmount:     188,
		TransactionID: "tx-abc-1",
		BuyerEmail:    "buyer@example.com",
	}
	suite.Require().NoError(suite.db.Create(suite.sale).Error)
}

func (suite *ReconciliationServiceTestSuite) process(event *gateway.GatewayEvent) *ReconcileResult {
	return suite.service.ProcessEvent(context.Background(), event)
}

func (suite *ReconciliationServiceTestSuite) reloadSale() *models.Sale {
	var sale models.Sale
	suite.Require().NoError(suite.db.First(&sale, "id = ?", suite.sale.ID).Error)
	return &sale
}

func (suite *ReconciliationServiceTestSuite) auditEntries() []models.FinancialAuditLogEntry {
	var entries []models.FinancialAuditLogEntry
	suite.Require().NoError(suite.db.Where("sale_id = ?", suite.sale.ID).Order("created_at").Find(&entries).Error)
	return entries
}

func (suite *ReconciliationServiceTestSuite) TestApprovalByMetadataSaleID() {
	result := suite.process(&gateway.GatewayEvent{
		EventType: "purchase_approved",
		RawStatus: "paid",
		Metadata:  gateway.EventMetadata{SaleID: suite.sale.ID.String()},
	})

	suite.Equal(string(models.AuditActionAccepted), result.Action)
	suite.Equal(models.SaleStatusApproved, result.Status)

	sale := suite.reloadSale()
	suite.Equal(models.SaleStatusApproved, sale.Status)
	suite.NotNil(sale.ApprovedAt)

	entries := suite.auditEntries()
	suite.Require().Len(entries, 1)
	suite.Equal(models.AuditActionAccepted, entries[0].Action)
	suite.Equal(models.SaleStatusPending, entries[0].PreviousStatus)
	suite.Equal("paid", entries[0].RawStatus)
	suite.True(entries[0].WalletImpacting)

	// A genuine first approval runs splits and side effects.
	var commissionCount int64
	suite.db.Model(&models.CommissionRecord{}).Where("sale_id = ?", suite.sale.ID).Count(&commissionCount)
	suite.Equal(int64(1), commissionCount)
	suite.Equal(1, suite.fakes.entitlements.grantCount())
	suite.Equal(1, suite.fakes.notifier.approvedCount())
	suite.Equal([]string{"sale.approved"}, suite.fakes.fanout.broadcasts())
}

func (suite *ReconciliationServiceTestSuite) TestResolutionFallbackChain() {
	// Generic envelope with the real status nested and only an external ref
	// to correlate on.
	result := suite.process(&gateway.GatewayEvent{
		EventType:   "transaction",
		RawStatus:   "paid",
		ExternalRef: "tx-abc-1",
	})
	suite.Equal(string(models.AuditActionAccepted), result.Action)
	suite.Equal(models.SaleStatusApproved, suite.reloadSale().Status)
}

func (suite *ReconciliationServiceTestSuite) TestResolutionByGatewayTransactionID() {
	result := suite.process(&gateway.GatewayEvent{
		RawStatus:            "paid",
		GatewayTransactionID: "tx-abc-1",
	})
	suite.Equal(string(models.AuditActionAccepted), result.Action)
}

func (suite *ReconciliationServiceTestSuite) TestResolutionByMetadataOrderID() {
	result := suite.process(&gateway.GatewayEvent{
		RawStatus: "paid",
		Metadata:  gateway.EventMetadata{OrderID: "tx-abc-1"},
	})
	suite.Equal(string(models.AuditActionAccepted), result.Action)
}

func (suite *ReconciliationServiceTestSuite) TestNoMatchingSale() {
	result := suite.process(&gateway.GatewayEvent{
		RawStatus:            "paid",
		GatewayTransactionID: "tx-unknown",
	})

	suite.Equal(OutcomeNoMatchingSale, result.Action)
	suite.Nil(result.Sale)

	// Unresolvable events never reach the financial ledger.
	suite.Empty(suite.auditEntries())
	suite.Equal(models.SaleStatusPending, suite.reloadSale().Status)
}

func (suite *ReconciliationServiceTestSuite) TestDuplicateApprovalIsIdempotent() {
	event := &gateway.GatewayEvent{
		RawStatus: "paid",
		Metadata:  gateway.EventMetadata{SaleID: suite.sale.ID.String()},
	}

	first := suite.process(event)
	second := suite.process(event)

	suite.Equal(string(models.AuditActionAccepted), first.Action)
	suite.Equal(string(models.AuditActionIdempotentSkip), second.Action)

	// Splits and side effects ran exactly once.
	var commissionCount int64
	suite.db.Model(&models.CommissionRecord{}).Where("sale_id = ?", suite.sale.ID).Count(&commissionCount)
	suite.Equal(int64(1), commissionCount)
	suite.Equal(1, suite.fakes.entitlements.grantCount())
	suite.Equal(1, suite.fakes.notifier.approvedCount())

	entries := suite.auditEntries()
	suite.Require().Len(entries, 2)
	suite.Equal(models.AuditActionIdempotentSkip, entries[1].Action)
}

func (suite *ReconciliationServiceTestSuite) TestRegressionBlocked() {
	suite.Require().NoError(suite.db.Model(suite.sale).Update("status", models.SaleStatusChargeback).Error)

	result := suite.process(&gateway.GatewayEvent{
		RawStatus: "approved",
		Metadata:  gateway.EventMetadata{SaleID: suite.sale.ID.String()},
	})

	suite.Equal(string(models.AuditActionRegressionBlocked), result.Action)
	suite.Equal(models.SaleStatusChargeback, suite.reloadSale().Status)

	// No splits, no side effects for a blocked transition.
	var commissionCount int64
	suite.db.Model(&models.CommissionRecord{}).Where("sale_id = ?", suite.sale.ID).Count(&commissionCount)
	suite.Equal(int64(0), commissionCount)
	suite.Equal(0, suite.fakes.entitlements.grantCount())

	entries := suite.auditEntries()
	suite.Require().Len(entries, 1)
	suite.Equal(models.AuditActionRegressionBlocked, entries[0].Action)
}

func (suite *ReconciliationServiceTestSuite) TestPendingCannotRegressApproved() {
	suite.process(&gateway.GatewayEvent{
		RawStatus: "paid",
		Metadata:  gateway.EventMetadata{SaleID: suite.sale.ID.String()},
	})

	result := suite.process(&gateway.GatewayEvent{
		RawStatus: "waiting_payment",
		Metadata:  gateway.EventMetadata{SaleID: suite.sale.ID.String()},
	})

	suite.Equal(string(models.AuditActionRegressionBlocked), result.Action)
	suite.Equal(models.SaleStatusApproved, suite.reloadSale().Status)
}

func (suite *ReconciliationServiceTestSuite) TestRefundAfterApproval() {
	suite.process(&gateway.GatewayEvent{
		RawStatus: "paid",
		Metadata:  gateway.EventMetadata{SaleID: suite.sale.ID.String()},
	})

	result := suite.process(&gateway.GatewayEvent{
		RawStatus: "refunded",
		Metadata:  gateway.EventMetadata{SaleID: suite.sale.ID.String()},
	})

	// Applied, but a refund never releases seller balance.
	suite.Equal(string(models.AuditActionBlockedFromWallet), result.Action)
	suite.Equal(models.SaleStatusRefunded, suite.reloadSale().Status)

	suite.Equal(1, suite.fakes.entitlements.revokeCount())
	suite.Equal([]models.SaleStatus{models.SaleStatusRefunded}, suite.fakes.notifier.revokedStatuses())
	suite.Contains(suite.fakes.fanout.broadcasts(), "sale.refunded")

	entries := suite.auditEntries()
	suite.Require().Len(entries, 2)
	suite.Equal(models.AuditActionBlockedFromWallet, entries[1].Action)
	suite.False(entries[1].WalletImpacting)
}

func (suite *ReconciliationServiceTestSuite) TestChargebackAfterRefund() {
	suite.Require().NoError(suite.db.Model(suite.sale).Update("status", models.SaleStatusRefunded).Error)

	result := suite.process(&gateway.GatewayEvent{
		RawStatus: "chargeback",
		Metadata:  gateway.EventMetadata{SaleID: suite.sale.ID.String()},
	})

	suite.Equal(string(models.AuditActionBlockedFromWallet), result.Action)
	suite.Equal(models.SaleStatusChargeback, suite.reloadSale().Status)
}

func (suite *ReconciliationServiceTestSuite) TestConcurrentDeliveryLoserIsIdempotentSkip() {
	// Two deliveries race: both read the sale as pending, one lands the
	// conditional UPDATE first. The loser's write matches zero rows and must
	// degrade to a skip with no splits or side effects.
	stale := suite.reloadSale()
	suite.Equal(models.SaleStatusPending, stale.Status)

	suite.Require().NoError(suite.db.Model(&models.Sale{}).
		Where("id = ?", suite.sale.ID).
		Update("status", models.SaleStatusApproved).Error)

	action, _, applied := suite.service.applyTransition(
		context.Background(), stale, models.SaleStatusApproved, "paid")

	suite.Equal(models.AuditActionIdempotentSkip, action)
	suite.False(applied)
	suite.Equal(models.SaleStatusApproved, suite.reloadSale().Status)

	var commissionCount int64
	suite.db.Model(&models.CommissionRecord{}).Where("sale_id = ?", suite.sale.ID).Count(&commissionCount)
	suite.Equal(int64(0), commissionCount)
	suite.Equal(0, suite.fakes.entitlements.grantCount())
	suite.Equal(0, suite.fakes.notifier.approvedCount())
}

func (suite *ReconciliationServiceTestSuite) TestDuplicateRevocationDoesNotRefanOut() {
	saleRef := gateway.EventMetadata{SaleID: suite.sale.ID.String()}
	suite.process(&gateway.GatewayEvent{RawStatus: "paid", Metadata: saleRef})
	suite.process(&gateway.GatewayEvent{RawStatus: "refunded", Metadata: saleRef})

	result := suite.process(&gateway.GatewayEvent{RawStatus: "refunded", Metadata: saleRef})

	// The redelivery is re-applied (same priority) but the seller is not
	// re-notified and analytics is not re-reported.
	suite.Equal(string(models.AuditActionBlockedFromWallet), result.Action)
	suite.Equal(models.SaleStatusRefunded, suite.reloadSale().Status)
	suite.Equal(1, suite.fakes.entitlements.revokeCount())
	suite.Equal([]models.SaleStatus{models.SaleStatusRefunded}, suite.fakes.notifier.revokedStatuses())
	suite.Equal([]models.SaleStatus{models.SaleStatusApproved, models.SaleStatusRefunded}, suite.fakes.analytics.reported())
}

func (suite *ReconciliationServiceTestSuite) TestUnknownStatusTreatedAsPending() {
	result := suite.process(&gateway.GatewayEvent{
		RawStatus: "mystery_status",
		Metadata:  gateway.EventMetadata{SaleID: suite.sale.ID.String()},
	})

	// pending -> pending is an applied same-priority transition that never
	// touches the wallet.
	suite.Equal(models.SaleStatusPending, result.Status)
	suite.Equal(string(models.AuditActionBlockedFromWallet), result.Action)
	suite.Equal(0, suite.fakes.entitlements.grantCount())
}

func TestReconciliationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReconciliationServiceTestSuite))
}
