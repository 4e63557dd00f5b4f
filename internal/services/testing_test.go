// internal/services/testing_test.go
package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sellgate/checkout-backend/internal/config"
	"github.com/sellgate/checkout-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.CoProducer{},
		&models.Affiliation{},
		&models.AffiliateClick{},
		&models.Campaign{},
		&models.CampaignUsage{},
		&models.SellerWebhook{},
		&models.Sale{},
		&models.OrderItem{},
		&models.CommissionRecord{},
		&models.OrderItemCommission{},
		&models.PaymentSplit{},
		&models.AffiliateSaleRecord{},
		&models.FinancialAuditLogEntry{},
		&models.WebhookLogEntry{},
		&models.SellerNotification{},
	)
	require.NoError(t, err)

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Gateway:     config.GatewayConfig{PlatformFeePercent: 5.0},
	}
}

// Fakes for the dispatcher collaborator contracts. Every fake records its
// calls under a mutex because the dispatcher fans out concurrently.

type fakeEntitlements struct {
	mu       sync.Mutex
	grants   []uuid.UUID
	revokes  []uuid.UUID
	grantErr error
}

func (f *fakeEntitlements) Grant(_ context.Context, _, productID uuid.UUID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants = append(f.grants, productID)
	return f.grantErr
}

func (f *fakeEntitlements) Revoke(_ context.Context, _, productID uuid.UUID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokes = append(f.revokes, productID)
	return nil
}

func (f *fakeEntitlements) grantCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.grants)
}

func (f *fakeEntitlements) revokeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.revokes)
}

type fakeSubscriptions struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSubscriptions) ActivateOrRenew(_ context.Context, _, _ uuid.UUID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeSubscriptions) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu       sync.Mutex
	approved int
	revoked  []models.SaleStatus
	panics   bool
}

func (f *fakeNotifier) NotifySaleApproved(_ context.Context, _ *models.Sale) error {
	if f.panics {
		panic("notifier exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved++
	return nil
}

func (f *fakeNotifier) NotifySaleRevoked(_ context.Context, _ *models.Sale, status models.SaleStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, status)
	return nil
}

func (f *fakeNotifier) approvedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.approved
}

func (f *fakeNotifier) revokedStatuses() []models.SaleStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SaleStatus(nil), f.revoked...)
}

type fakePixel struct {
	mu    sync.Mutex
	calls int
}

func (f *fakePixel) ReportConversion(_ context.Context, _ *models.Sale) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakePixel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAnalytics struct {
	mu       sync.Mutex
	statuses []models.SaleStatus
}

func (f *fakeAnalytics) ReportStatus(_ context.Context, _ *models.Sale, status models.SaleStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeAnalytics) reported() []models.SaleStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SaleStatus(nil), f.statuses...)
}

type fakePush struct {
	mu    sync.Mutex
	calls int
}

func (f *fakePush) SendSaleAlert(_ context.Context, _ *models.Sale) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakePush) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFanout struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeFanout) Broadcast(_ context.Context, _ *models.Sale, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func (f *fakeFanout) broadcasts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type dispatchFakes struct {
	entitlements  *fakeEntitlements
	subscriptions *fakeSubscriptions
	notifier      *fakeNotifier
	pixel         *fakePixel
	analytics     *fakeAnalytics
	push          *fakePush
	fanout        *fakeFanout
}

func newDispatchFakes() *dispatchFakes {
	return &dispatchFakes{
		entitlements:  &fakeEntitlements{},
		subscriptions: &fakeSubscriptions{},
		notifier:      &fakeNotifier{},
		pixel:         &fakePixel{},
		analytics:     &fakeAnalytics{},
		push:          &fakePush{},
		fanout:        &fakeFanout{},
	}
}

func (f *dispatchFakes) service(db *gorm.DB) *DispatchService {
	return NewDispatchService(DispatchServiceConfig{
		DB:            db,
		Entitlements:  f.entitlements,
		Subscriptions: f.subscriptions,
		Notifier:      f.notifier,
		Pixel:         f.pixel,
		Analytics:     f.analytics,
		Push:          f.push,
		Fanout:        f.fanout,
	})
}
