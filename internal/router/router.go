// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sellgate/checkout-backend/internal/config"
	"github.com/sellgate/checkout-backend/internal/handlers"
	"github.com/sellgate/checkout-backend/internal/middleware"
	"github.com/sellgate/checkout-backend/internal/services"
	"github.com/sellgate/checkout-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	commissionService := services.NewCommissionService(db, cfg)
	notificationService := services.NewNotificationService(db, cfg)

	archiveService, err := services.NewArchiveService(cfg)
	if err != nil {
		logrus.WithError(err).Warn("Webhook payload archival disabled")
	}

	dispatchService := services.NewDispatchService(services.DispatchServiceConfig{
		DB:            db,
		Entitlements:  services.NewEnrollmentClient(cfg),
		Subscriptions: services.NewSubscriptionServiceClient(cfg),
		Notifier:      notificationService,
		Pixel:         services.NewAdPixelClient(cfg),
		Analytics:     services.NewAnalyticsClient(cfg),
		Push:          services.NewPushClient(cfg),
		Fanout:        services.NewCustomWebhookFanout(db, cfg),
		TaskTimeout:   time.Duration(cfg.Integrations.TimeoutSeconds) * time.Second,
	})

	reconciliationService := services.NewReconciliationService(db, commissionService, dispatchService)

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(db, reconciliationService, archiveService, cfg.Gateway.WebhookSecret)
	adminHandler := handlers.NewAdminHandler(db, reconciliationService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Gateway webhook routes. POST is the primary surface; GET exists for
		// gateways that notify via redirect-style pings.
		webhooks := v1.Group("/webhooks")
		webhooks.Use(middleware.WebhookRateLimit())
		{
			webhooks.POST("/gateway", webhookHandler.HandleGatewayEvent)
			webhooks.GET("/gateway", webhookHandler.HandleGatewayEvent)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.GeneralRateLimit(), middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/webhook-logs", adminHandler.GetWebhookLogs)
			admin.POST("/webhook-logs/:id/replay", adminHandler.ReplayWebhook)
			admin.GET("/audit-logs", adminHandler.GetAuditLogs)
			admin.GET("/sales/:id/splits", adminHandler.GetSaleSplits)
			admin.POST("/seller-webhooks", adminHandler.CreateSellerWebhook)
		}
	}

	return r
}
