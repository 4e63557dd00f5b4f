// internal/handlers/webhook.go
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sellgate/checkout-backend/internal/gateway"
	"github.com/sellgate/checkout-backend/internal/models"
	"github.com/sellgate/checkout-backend/internal/services"
)

// WebhookHandler is the single inbound surface for gateway notifications.
// It always acknowledges HTTP 200 (duplicates, regressions, unknown sales
// and even persistence failures included) because any error code invites
// the gateway to retry the entire event. The one exception is a true
// normalizer-level failure, the only case where a retry can help.
type WebhookHandler struct {
	db            *gorm.DB
	reconciler    *services.ReconciliationService
	archive       *services.ArchiveService
	webhookSecret string
}

func NewWebhookHandler(db *gorm.DB, reconciler *services.ReconciliationService, archive *services.ArchiveService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		db:            db,
		reconciler:    reconciler,
		archive:       archive,
		webhookSecret: webhookSecret,
	}
}

// POST /webhooks/gateway (primary)
// GET  /webhooks/gateway (compatibility)
func (h *WebhookHandler) HandleGatewayEvent(c *gin.Context) {
	// GET compatibility calls can arrive without a body.
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
	}
	contentType := c.GetHeader("Content-Type")

	signatureValid := h.verifySignature(c, body)

	event, normErr := safeNormalize(c.Request.Method, contentType, body, c.Request.URL.Query())
	if normErr != nil {
		logrus.WithError(normErr).Error("Webhook normalizer failure")
		h.writeLog(c, body, contentType, signatureValid, "", nil, "normalizer_error")
		c.JSON(http.StatusInternalServerError, gin.H{"received": false, "error": "internal error"})
		return
	}

	result := h.reconciler.ProcessEvent(c.Request.Context(), event)

	var saleID *string
	var saleRef *models.Sale
	if result.Sale != nil {
		id := result.Sale.ID.String()
		saleID = &id
		saleRef = result.Sale
	}

	h.writeLog(c, body, contentType, signatureValid, result.Status, saleRef, result.Action)

	response := gin.H{
		"received": true,
		"status":   result.Status,
		"action":   result.Action,
	}
	if saleID != nil {
		response["sale_id"] = *saleID
	}
	c.JSON(http.StatusOK, response)
}

// verifySignature is soft: a missing or invalid signature is logged and the
// request still processed, so legitimate traffic from gateways with
// inconsistent signing is never dropped.
func (h *WebhookHandler) verifySignature(c *gin.Context, body []byte) *bool {
	if h.webhookSecret == "" {
		return nil
	}

	header := c.GetHeader("X-Webhook-Signature")
	if header == "" {
		header = c.GetHeader("X-Hub-Signature-256")
	}

	valid := gateway.VerifySignature(body, header, h.webhookSecret)
	if !valid {
		logrus.WithFields(logrus.Fields{
			"source_ip":     c.ClientIP(),
			"has_signature": header != "",
		}).Warn("Webhook signature verification failed")
	}
	return &valid
}

func (h *WebhookHandler) writeLog(c *gin.Context, body []byte, contentType string, signatureValid *bool, status models.SaleStatus, sale *models.Sale, outcome string) {
	// GET compatibility calls carry the event in the query string; store
	// that as the raw payload so replay can reconstruct the event.
	raw := string(body)
	if c.Request.Method == http.MethodGet && raw == "" {
		raw = c.Request.URL.RawQuery
	}

	entry := &models.WebhookLogEntry{
		Method:         c.Request.Method,
		SourceIP:       c.ClientIP(),
		RawPayload:     raw,
		ContentType:    contentType,
		SignatureValid: signatureValid,
		ResolvedStatus: status,
		Outcome:        outcome,
	}
	if sale != nil {
		id := sale.ID
		entry.SaleID = &id
	}

	if err := h.db.Create(entry).Error; err != nil {
		logrus.WithError(err).Error("Failed to write webhook log entry")
		return
	}

	if h.archive.Enabled() {
		// Archival is best-effort and off the request path.
		logID := entry.ID
		payload := append([]byte(nil), body...)
		go func() {
			key, err := h.archive.ArchivePayload(logID, payload, contentType)
			if err != nil {
				logrus.WithError(err).WithField("webhook_log_id", logID).
					Warn("Failed to archive webhook payload")
				return
			}
			if key == "" {
				return
			}
			if err := h.db.Model(&models.WebhookLogEntry{}).
				Where("id = ?", logID).
				UpdateColumn("archive_key", key).Error; err != nil {
				logrus.WithError(err).WithField("webhook_log_id", logID).
					Warn("Failed to record archive key")
			}
		}()
	}
}

// safeNormalize guards the one path allowed to answer 500: a panic inside
// payload normalization.
func safeNormalize(method, contentType string, body []byte, query url.Values) (event *gateway.GatewayEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("normalizer panic: %v", r)
		}
	}()
	return gateway.Normalize(method, contentType, body, query), nil
}
