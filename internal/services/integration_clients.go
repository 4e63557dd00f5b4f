// internal/services/integration_clients.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sellgate/checkout-backend/internal/config"
	"github.com/sellgate/checkout-backend/internal/gateway"
	"github.com/sellgate/checkout-backend/internal/models"
)

// HTTP implementations of the dispatcher's collaborator contracts. Every
// client shares the same posture: a bounded per-call timeout, JSON bodies,
// and only 2xx counted as success. An unconfigured base URL disables the
// client, which then reports success without calling out.

func integrationHTTPClient(cfg *config.Config) *http.Client {
	timeout := time.Duration(cfg.Integrations.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Only 2xx counts as success. Some upstream integrations historically
	// answered 400/422 for "already known" requests; those are treated as
	// failures here and surfaced in the logs instead of silently passing.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return nil
}

// EnrollmentClient grants and revokes course/content access.
type EnrollmentClient struct {
	baseURL string
	client  *http.Client
}

func NewEnrollmentClient(cfg *config.Config) *EnrollmentClient {
	return &EnrollmentClient{
		baseURL: cfg.Integrations.EnrollmentURL,
		client:  integrationHTTPClient(cfg),
	}
}

func (c *EnrollmentClient) Grant(ctx context.Context, saleID, productID uuid.UUID, buyerEmail string) error {
	if c.baseURL == "" {
		return nil
	}
	return postJSON(ctx, c.client, c.baseURL+"/enrollments", map[string]interface{}{
		"sale_id":     saleID,
		"product_id":  productID,
		"buyer_email": buyerEmail,
		"action":      "grant",
	}, nil)
}

func (c *EnrollmentClient) Revoke(ctx context.Context, saleID, productID uuid.UUID, buyerEmail string) error {
	if c.baseURL == "" {
		return nil
	}
	return postJSON(ctx, c.client, c.baseURL+"/enrollments/revoke", map[string]interface{}{
		"sale_id":     saleID,
		"product_id":  productID,
		"buyer_email": buyerEmail,
		"action":      "revoke",
	}, nil)
}

// SubscriptionServiceClient activates or renews a recurring plan.
type SubscriptionServiceClient struct {
	baseURL string
	client  *http.Client
}

func NewSubscriptionServiceClient(cfg *config.Config) *SubscriptionServiceClient {
	return &SubscriptionServiceClient{
		baseURL: cfg.Integrations.SubscriptionURL,
		client:  integrationHTTPClient(cfg),
	}
}

func (c *SubscriptionServiceClient) ActivateOrRenew(ctx context.Context, saleID, productID uuid.UUID, buyerEmail string) error {
	if c.baseURL == "" {
		return nil
	}
	return postJSON(ctx, c.client, c.baseURL+"/subscriptions/activate", map[string]interface{}{
		"sale_id":     saleID,
		"product_id":  productID,
		"buyer_email": buyerEmail,
	}, nil)
}

// AdPixelClient fires the ad-attribution pixel for an approved sale.
type AdPixelClient struct {
	baseURL string
	client  *http.Client
}

func NewAdPixelClient(cfg *config.Config) *AdPixelClient {
	return &AdPixelClient{
		baseURL: cfg.Integrations.PixelURL,
		client:  integrationHTTPClient(cfg),
	}
}

func (c *AdPixelClient) ReportConversion(ctx context.Context, sale *models.Sale) error {
	if c.baseURL == "" {
		return nil
	}
	return postJSON(ctx, c.client, c.baseURL, map[string]interface{}{
		"event":          "purchase",
		"sale_id":        sale.ID,
		"product_id":     sale.ProductID,
		"value":          sale.Amount,
		"payment_method": sale.PaymentMethod,
	}, nil)
}

// analyticsVocabulary maps canonical statuses to the external analytics
// integration's own event names.
var analyticsVocabulary = map[models.SaleStatus]string{
	models.SaleStatusPending:    "checkout_pending",
	models.SaleStatusApproved:   "purchase",
	models.SaleStatusRefused:    "purchase_refused",
	models.SaleStatusRefunded:   "refund",
	models.SaleStatusChargeback: "chargeback_received",
	models.SaleStatusCancelled:  "purchase_cancelled",
	models.SaleStatusExpired:    "purchase_expired",
}

// AnalyticsClient reports sale lifecycle events to the external analytics
// integration using that integration's vocabulary.
type AnalyticsClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewAnalyticsClient(cfg *config.Config) *AnalyticsClient {
	return &AnalyticsClient{
		baseURL: cfg.Integrations.AnalyticsURL,
		apiKey:  cfg.Integrations.AnalyticsKey,
		client:  integrationHTTPClient(cfg),
	}
}

func (c *AnalyticsClient) ReportStatus(ctx context.Context, sale *models.Sale, status models.SaleStatus) error {
	if c.baseURL == "" {
		return nil
	}
	eventName, ok := analyticsVocabulary[status]
	if !ok {
		eventName = string(status)
	}
	return postJSON(ctx, c.client, c.baseURL+"/events", map[string]interface{}{
		"event":       eventName,
		"sale_id":     sale.ID,
		"product_id":  sale.ProductID,
		"seller_id":   sale.SellerUserID,
		"amount":      sale.Amount,
		"buyer_email": sale.BuyerEmail,
	}, map[string]string{"X-Api-Key": c.apiKey})
}

// PushClient delivers the seller-configured push notification.
type PushClient struct {
	baseURL string
	client  *http.Client
}

func NewPushClient(cfg *config.Config) *PushClient {
	return &PushClient{
		baseURL: cfg.Integrations.PushURL,
		client:  integrationHTTPClient(cfg),
	}
}

func (c *PushClient) SendSaleAlert(ctx context.Context, sale *models.Sale) error {
	if c.baseURL == "" {
		return nil
	}
	if sale.Seller.PushToken == "" {
		return nil
	}
	return postJSON(ctx, c.client, c.baseURL+"/push", map[string]interface{}{
		"token":   sale.Seller.PushToken,
		"title":   "New sale approved",
		"message": fmt.Sprintf("%s sold for %.2f", sale.Product.Title, sale.Amount),
		"sale_id": sale.ID,
	}, nil)
}

// CustomWebhookFanout sends a normalized payload to every active webhook
// the seller configured for the event, signing each request with the
// endpoint's own secret.
type CustomWebhookFanout struct {
	db     *gorm.DB
	client *http.Client
}

func NewCustomWebhookFanout(db *gorm.DB, cfg *config.Config) *CustomWebhookFanout {
	return &CustomWebhookFanout{db: db, client: integrationHTTPClient(cfg)}
}

func (c *CustomWebhookFanout) Broadcast(ctx context.Context, sale *models.Sale, eventType string) error {
	var hooks []models.SellerWebhook
	err := c.db.WithContext(ctx).
		Where("seller_user_id = ? AND active = ?", sale.SellerUserID, true).
		Find(&hooks).Error
	if err != nil {
		return fmt.Errorf("failed to load seller webhooks: %w", err)
	}

	payload := map[string]interface{}{
		"event":          eventType,
		"sale_id":        sale.ID,
		"product_id":     sale.ProductID,
		"status":         sale.Status,
		"amount":         sale.Amount,
		"net_amount":     sale.NetAmount,
		"payment_method": sale.PaymentMethod,
		"buyer": map[string]string{
			"name":  sale.BuyerName,
			"email": sale.BuyerEmail,
		},
		"occurred_at": time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	for _, hook := range hooks {
		if !hook.Subscribes(eventType) {
			continue
		}
		headers := map[string]string{"X-Sellgate-Event": eventType}
		if hook.Secret != "" {
			headers["X-Sellgate-Signature"] = "sha256=" + gateway.Sign(body, hook.Secret)
		}
		if err := postJSON(ctx, c.client, hook.URL, payload, headers); err != nil {
			// Per-endpoint failures are isolated: one dead seller URL must
			// not stop the rest of the fan-out.
			logrus.WithError(err).WithFields(logrus.Fields{
				"sale_id":    sale.ID,
				"webhook_id": hook.ID,
			}).Warn("Custom webhook delivery failed")
		}
	}
	return nil
}
