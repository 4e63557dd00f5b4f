// internal/handlers/admin.go
package handlers

import (
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/sellgate/checkout-backend/internal/gateway"
	"github.com/sellgate/checkout-backend/internal/models"
	"github.com/sellgate/checkout-backend/internal/services"
	"github.com/sellgate/checkout-backend/internal/utils"
)

// AdminHandler exposes the operational surface over the reconciliation
// engine: the webhook call log, the financial audit ledger, a sale's
// splits, and replay of a stored payload. Replay is safe by construction:
// the pipeline it feeds is idempotent end to end.
type AdminHandler struct {
	db         *gorm.DB
	reconciler *services.ReconciliationService
}

func NewAdminHandler(db *gorm.DB, reconciler *services.ReconciliationService) *AdminHandler {
	return &AdminHandler{db: db, reconciler: reconciler}
}

// GET /admin/webhook-logs
func (h *AdminHandler) GetWebhookLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	query := h.db.Model(&models.WebhookLogEntry{})
	if outcome := c.Query("outcome"); outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}
	if saleID, err := uuid.Parse(c.Query("sale_id")); err == nil {
		query = query.Where("sale_id = ?", saleID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	query = utils.ApplySort(query, params, []string{"created_at", "outcome"})
	query = utils.ApplyPagination(query, params)

	var logs []models.WebhookLogEntry
	if err := query.Find(&logs).Error; err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(logs, total, params))
}

// GET /admin/audit-logs
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	query := h.db.Model(&models.FinancialAuditLogEntry{})
	if saleID, err := uuid.Parse(c.Query("sale_id")); err == nil {
		query = query.Where("sale_id = ?", saleID)
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	query = utils.ApplySort(query, params, []string{"created_at", "action"})
	query = utils.ApplyPagination(query, params)

	var entries []models.FinancialAuditLogEntry
	if err := query.Find(&entries).Error; err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(entries, total, params))
}

// GET /admin/sales/:id/splits
func (h *AdminHandler) GetSaleSplits(c *gin.Context) {
	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid sale ID", nil)
		return
	}

	var sale models.Sale
	if err := h.db.First(&sale, "id = ?", saleID).Error; err != nil {
		utils.NotFoundResponse(c, "sale")
		return
	}

	var commissions []models.CommissionRecord
	h.db.Where("sale_id = ?", saleID).Find(&commissions)

	var itemCommissions []models.OrderItemCommission
	h.db.Where("sale_id = ?", saleID).Find(&itemCommissions)

	var splits []models.PaymentSplit
	h.db.Where("sale_id = ?", saleID).Find(&splits)

	var affiliateRecords []models.AffiliateSaleRecord
	h.db.Where("sale_id = ?", saleID).Find(&affiliateRecords)

	utils.SuccessResponse(c, gin.H{
		"sale":              sale,
		"commissions":       commissions,
		"item_commissions":  itemCommissions,
		"payment_splits":    splits,
		"affiliate_records": affiliateRecords,
	})
}

type CreateSellerWebhookRequest struct {
	SellerUserID uuid.UUID `json:"seller_user_id" validate:"required"`
	URL          string    `json:"url" validate:"required,url"`
	Secret       string    `json:"secret,omitempty"`
	Events       []string  `json:"events,omitempty"`
}

// POST /admin/seller-webhooks
func (h *AdminHandler) CreateSellerWebhook(c *gin.Context) {
	var req CreateSellerWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	hook := &models.SellerWebhook{
		SellerUserID: req.SellerUserID,
		URL:          req.URL,
		Secret:       req.Secret,
		Events:       pq.StringArray(req.Events),
		Active:       true,
	}
	if err := h.db.Create(hook).Error; err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.CreatedResponse(c, hook)
}

// POST /admin/webhook-logs/:id/replay
func (h *AdminHandler) ReplayWebhook(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid webhook log ID", nil)
		return
	}

	var entry models.WebhookLogEntry
	if err := h.db.First(&entry, "id = ?", logID).Error; err != nil {
		utils.NotFoundResponse(c, "webhook_log")
		return
	}

	var event *gateway.GatewayEvent
	if entry.Method == "GET" {
		values, _ := url.ParseQuery(entry.RawPayload)
		event = gateway.Normalize("GET", "", nil, values)
	} else {
		event = gateway.Normalize(entry.Method, entry.ContentType, []byte(entry.RawPayload), url.Values{})
	}
	result := h.reconciler.ProcessEvent(c.Request.Context(), event)

	response := gin.H{
		"replayed": true,
		"status":   result.Status,
		"action":   result.Action,
	}
	if result.Sale != nil {
		response["sale_id"] = result.Sale.ID
	}
	utils.SuccessResponse(c, response)
}
