// internal/services/notification_service.go
package services

import (
	"context"
	"fmt"
	"net/smtp"

	"gorm.io/gorm"

	"github.com/sellgate/checkout-backend/internal/config"
	"github.com/sellgate/checkout-backend/internal/models"
)

// NotificationService creates the seller's in-app notification rows and,
// when SMTP is configured, mirrors them by email. It implements the
// dispatcher's SellerNotifier contract.
type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

func (s *NotificationService) NotifySaleApproved(ctx context.Context, sale *models.Sale) error {
	saleID := sale.ID
	notification := &models.SellerNotification{
		SellerUserID: sale.SellerUserID,
		SaleID:       &saleID,
		Type:         "sale_approved",
		Title:        "New sale approved",
		Message:      fmt.Sprintf("'%s' sold for %.2f (%s)", sale.Product.Title, sale.Amount, sale.PaymentMethod),
		Data: models.JSONB{
			"sale_id":    sale.ID.String(),
			"product_id": sale.ProductID.String(),
			"amount":     sale.Amount,
			"net_amount": sale.NetAmount,
		},
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	subject := "New sale - " + sale.Product.Title
	body := fmt.Sprintf("Your product '%s' was sold for %.2f. Net amount: %.2f.",
		sale.Product.Title, sale.Amount, sale.NetAmount)
	return s.sendEmail(sale.Seller.Email, subject, body)
}

func (s *NotificationService) NotifySaleRevoked(ctx context.Context, sale *models.Sale, status models.SaleStatus) error {
	saleID := sale.ID
	notification := &models.SellerNotification{
		SellerUserID: sale.SellerUserID,
		SaleID:       &saleID,
		Type:         "sale_" + string(status),
		Title:        fmt.Sprintf("Sale %s", status),
		Message:      fmt.Sprintf("The sale of '%s' (%.2f) was reversed: %s", sale.Product.Title, sale.Amount, status),
		Data: models.JSONB{
			"sale_id": sale.ID.String(),
			"status":  string(status),
			"amount":  sale.Amount,
		},
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	subject := fmt.Sprintf("Sale %s - %s", status, sale.Product.Title)
	body := fmt.Sprintf("The sale of '%s' for %.2f was marked %s and the buyer's access was revoked.",
		sale.Product.Title, sale.Amount, status)
	return s.sendEmail(sale.Seller.Email, subject, body)
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" || to == "" {
		// Email is optional; the in-app notification already exists.
		return nil
	}

	from := s.config.Email.FromEmail
	msg := []byte(fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.config.Email.FromName, from, to, subject, body))

	addr := s.config.Email.SMTPHost + ":" + s.config.Email.SMTPPort
	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	if err := smtp.SendMail(addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
