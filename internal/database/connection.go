// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sellgate/checkout-backend/internal/config"
	"github.com/sellgate/checkout-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
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

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Sale indexes
		"CREATE INDEX IF NOT EXISTS idx_sales_transaction_id ON sales(transaction_id)",
		"CREATE INDEX IF NOT EXISTS idx_sales_seller_status ON sales(seller_user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at DESC)",

		// Ledger indexes
		"CREATE INDEX IF NOT EXISTS idx_financial_audit_sale ON financial_audit_log_entries(sale_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_financial_audit_action ON financial_audit_log_entries(action)",
		"CREATE INDEX IF NOT EXISTS idx_webhook_logs_outcome ON webhook_log_entries(outcome, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_webhook_logs_sale ON webhook_log_entries(sale_id)",

		// Split indexes
		"CREATE INDEX IF NOT EXISTS idx_commission_records_user ON commission_records(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_payment_splits_sale ON payment_splits(sale_id)",
		"CREATE INDEX IF NOT EXISTS idx_affiliate_sales_affiliation ON affiliate_sale_records(affiliation_id)",

		// Referral indexes
		"CREATE INDEX IF NOT EXISTS idx_affiliate_clicks_pending ON affiliate_clicks(affiliation_id, converted, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_campaign_usages_campaign ON campaign_usages(campaign_id, sale_id)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).Warnf("Failed to create index: %s", index)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
