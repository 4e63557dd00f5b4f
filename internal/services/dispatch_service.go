// internal/services/dispatch_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sellgate/checkout-backend/internal/models"
)

// Collaborator contracts. Each downstream system is an opaque external
// function from the engine's point of view: it takes a sale-shaped payload
// and returns success or failure that the dispatcher logs but never
// propagates as a handler-level error.

type EntitlementClient interface {
	Grant(ctx context.Context, saleID, productID uuid.UUID, buyerEmail string) error
	Revoke(ctx context.Context, saleID, productID uuid.UUID, buyerEmail string) error
}

type SubscriptionClient interface {
	ActivateOrRenew(ctx context.Context, saleID, productID uuid.UUID, buyerEmail string) error
}

type SellerNotifier interface {
	NotifySaleApproved(ctx context.Context, sale *models.Sale) error
	NotifySaleRevoked(ctx context.Context, sale *models.Sale, status models.SaleStatus) error
}

type PixelReporter interface {
	ReportConversion(ctx context.Context, sale *models.Sale) error
}

type AnalyticsReporter interface {
	ReportStatus(ctx context.Context, sale *models.Sale, status models.SaleStatus) error
}

type PushSender interface {
	SendSaleAlert(ctx context.Context, sale *models.Sale) error
}

type WebhookFanout interface {
	Broadcast(ctx context.Context, sale *models.Sale, eventType string) error
}

// DispatchService fans the post-transition side effects out to the
// downstream collaborators. Each collaborator runs in its own goroutine
// under its own timeout, with its own error capture: one slow or failing
// integration never affects another, and none can fail the webhook
// acknowledgment.
type DispatchService struct {
	db            *gorm.DB
	entitlements  EntitlementClient
	subscriptions SubscriptionClient
	notifier      SellerNotifier
	pixel         PixelReporter
	analytics     AnalyticsReporter
	push          PushSender
	fanout        WebhookFanout
	taskTimeout   time.Duration
}

type DispatchServiceConfig struct {
	DB            *gorm.DB
	Entitlements  EntitlementClient
	Subscriptions SubscriptionClient
	Notifier      SellerNotifier
	Pixel         PixelReporter
	Analytics     AnalyticsReporter
	Push          PushSender
	Fanout        WebhookFanout
	TaskTimeout   time.Duration
}

func NewDispatchService(cfg DispatchServiceConfig) *DispatchService {
	timeout := cfg.TaskTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DispatchService{
		db:            cfg.DB,
		entitlements:  cfg.Entitlements,
		subscriptions: cfg.Subscriptions,
		notifier:      cfg.Notifier,
		pixel:         cfg.Pixel,
		analytics:     cfg.Analytics,
		push:          cfg.Push,
		fanout:        cfg.Fanout,
		taskTimeout:   timeout,
	}
}

type dispatchTask struct {
	name string
	fn   func(context.Context) error
}

// DispatchApproval runs the approval fan-out: entitlement grant for the
// main product and each order bump independently, subscription activation
// for recurring plans, seller notification, ad pixel, external analytics,
// push, and the seller's custom webhooks.
func (s *DispatchService) DispatchApproval(ctx context.Context, sale *models.Sale) {
	tasks := []dispatchTask{}

	for _, item := range s.deliverables(sale) {
		item := item
		tasks = append(tasks, dispatchTask{
			name: "entitlement_grant",
			fn: func(tctx context.Context) error {
				if err := s.entitlements.Grant(tctx, sale.ID, item.ProductID, sale.BuyerEmail); err != nil {
					return err
				}
				s.markDelivered(item.ID, models.DeliveryStatusDelivered)
				return nil
			},
		})
	}

	if sale.Product.Recurring {
		tasks = append(tasks, dispatchTask{
			name: "subscription_activation",
			fn: func(tctx context.Context) error {
				return s.subscriptions.ActivateOrRenew(tctx, sale.ID, sale.ProductID, sale.BuyerEmail)
			},
		})
	}

	tasks = append(tasks,
		dispatchTask{"seller_notification", func(tctx context.Context) error {
			return s.notifier.NotifySaleApproved(tctx, sale)
		}},
		dispatchTask{"ad_pixel", func(tctx context.Context) error {
			return s.pixel.ReportConversion(tctx, sale)
		}},
		dispatchTask{"analytics", func(tctx context.Context) error {
			return s.analytics.ReportStatus(tctx, sale, models.SaleStatusApproved)
		}},
		dispatchTask{"push_notification", func(tctx context.Context) error {
			return s.push.SendSaleAlert(tctx, sale)
		}},
		dispatchTask{"custom_webhooks", func(tctx context.Context) error {
			return s.fanout.Broadcast(tctx, sale, "sale.approved")
		}},
	)

	s.run(sale, tasks)
}

// DispatchRevocation runs the refund/chargeback fan-out: entitlement
// revocation per product, seller notification, analytics re-report and the
// seller's custom webhooks.
func (s *DispatchService) DispatchRevocation(ctx context.Context, sale *models.Sale, status models.SaleStatus) {
	tasks := []dispatchTask{}

	for _, item := range s.deliverables(sale) {
		item := item
		tasks = append(tasks, dispatchTask{
			name: "entitlement_revoke",
			fn: func(tctx context.Context) error {
				if err := s.entitlements.Revoke(tctx, sale.ID, item.ProductID, sale.BuyerEmail); err != nil {
					return err
				}
				s.markDelivered(item.ID, models.DeliveryStatusRevoked)
				return nil
			},
		})
	}

	tasks = append(tasks,
		dispatchTask{"seller_notification", func(tctx context.Context) error {
			return s.notifier.NotifySaleRevoked(tctx, sale, status)
		}},
		dispatchTask{"analytics", func(tctx context.Context) error {
			return s.analytics.ReportStatus(tctx, sale, status)
		}},
		dispatchTask{"custom_webhooks", func(tctx context.Context) error {
			return s.fanout.Broadcast(tctx, sale, "sale."+string(status))
		}},
	)

	s.run(sale, tasks)
}

// run executes the fan-out and waits for every task. Each task gets a fresh
// timeout context detached from the inbound request: an accepted event runs
// its side effects to completion, there is no cancellation concept.
func (s *DispatchService) run(sale *models.Sale, tasks []dispatchTask) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(t dispatchTask) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithFields(logrus.Fields{
						"sale_id": sale.ID,
						"task":    t.name,
						"panic":   r,
					}).Error("Side effect panicked")
				}
			}()

			tctx, cancel := context.WithTimeout(context.Background(), s.taskTimeout)
			defer cancel()

			if err := t.fn(tctx); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"sale_id": sale.ID,
					"task":    t.name,
				}).Error("Side effect failed")
			}
		}(task)
	}
	wg.Wait()
}

// deliverables lists the order items to grant or revoke. A sale created
// before order items existed has none; the sale's own product is the
// fallback deliverable.
func (s *DispatchService) deliverables(sale *models.Sale) []models.OrderItem {
	if len(sale.Items) > 0 {
		return sale.Items
	}
	return []models.OrderItem{{SaleID: sale.ID, ProductID: sale.ProductID}}
}

func (s *DispatchService) markDelivered(itemID uuid.UUID, status models.DeliveryStatus) {
	if itemID == uuid.Nil || s.db == nil {
		return
	}
	if err := s.db.Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		UpdateColumn("delivery_status", status).Error; err != nil {
		logrus.WithError(err).WithField("order_item_id", itemID).
			Warn("Failed to update delivery status")
	}
}
