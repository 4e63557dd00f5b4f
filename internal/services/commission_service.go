// internal/services/commission_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sellgate/checkout-backend/internal/config"
	"github.com/sellgate/checkout-backend/internal/database"
	"github.com/sellgate/checkout-backend/internal/models"
)

// CommissionService computes and persists, exactly once per sale, the
// monetary distribution across platform fee, producer, co-producers and
// affiliate. Every step is individually idempotent: an existence check
// before insert, backed by a unique index so that a concurrent duplicate
// delivery degenerates to an insert-conflict treated as already-processed.
type CommissionService struct {
	db     *gorm.DB
	config *config.Config
}

func NewCommissionService(db *gorm.DB, cfg *config.Config) *CommissionService {
	return &CommissionService{db: db, config: cfg}
}

// beneficiaryShare is one computed allocation before persistence.
type beneficiaryShare struct {
	UserID         uuid.UUID
	Role           models.CommissionRole
	CommissionType models.CommissionType
	Percentage     float64
	Amount         decimal.Decimal
}

// ProcessApproval runs the full split pipeline for a sale that just made a
// genuine forward transition into approved. Steps are independent: a
// failing step is logged and the remaining steps still run, so a coupon
// counter outage cannot block the producer's commission.
func (s *CommissionService) ProcessApproval(ctx context.Context, sale *models.Sale) error {
	steps := []struct {
		name string
		fn   func(context.Context, *models.Sale) error
	}{
		{"affiliate_commission", s.processAffiliate},
		{"coupon_usage", s.processCouponUsage},
		{"producer_split", s.processCommissions},
		{"order_bump_splits", s.processItemCommissions},
		{"payment_splits", s.processPaymentSplits},
	}

	var errs []error
	for _, step := range steps {
		if err := step.fn(ctx, sale); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"sale_id": sale.ID,
				"step":    step.name,
			}).Error("Commission step failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}

// processAffiliate records the affiliate's cut and marks the most recent
// unconverted click for the affiliation as converted.
func (s *CommissionService) processAffiliate(ctx context.Context, sale *models.Sale) error {
	if sale.AffiliationID == nil {
		return nil
	}

	var existing int64
	err := s.db.WithContext(ctx).Model(&models.AffiliateSaleRecord{}).
		Where("affiliation_id = ? AND product_id = ? AND sale_amount = ?",
			*sale.AffiliationID, sale.ProductID, sale.Amount).
		Count(&existing).Error
	if err != nil {
		return fmt.Errorf("affiliate existence check: %w", err)
	}
	if existing > 0 {
		return nil
	}

	ownerEarnings := round2(decimal.NewFromFloat(sale.NetAmount).Sub(decimal.NewFromFloat(sale.CommissionAmount)))
	record := &models.AffiliateSaleRecord{
		AffiliationID:    *sale.AffiliationID,
		ProductID:        sale.ProductID,
		SaleID:           sale.ID,
		SaleAmount:       sale.Amount,
		CommissionAmount: sale.CommissionAmount,
		OwnerEarnings:    ownerEarnings.InexactFloat64(),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
		return fmt.Errorf("affiliate record insert: %w", err)
	}

	var click models.AffiliateClick
	err = s.db.WithContext(ctx).
		Where("affiliation_id = ? AND converted = ?", *sale.AffiliationID, false).
		Order("created_at DESC").
		First(&click).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("affiliate click lookup: %w", err)
	}

	now := time.Now()
	return s.db.WithContext(ctx).Model(&click).
		Updates(map[string]interface{}{"converted": true, "converted_at": now}).Error
}

// processCouponUsage increments the campaign counter once per sale and
// appends a usage-log row.
func (s *CommissionService) processCouponUsage(ctx context.Context, sale *models.Sale) error {
	if sale.CampaignID == nil {
		return nil
	}

	var existing int64
	err := s.db.WithContext(ctx).Model(&models.CampaignUsage{}).
		Where("campaign_id = ? AND sale_id = ?", *sale.CampaignID, sale.ID).
		Count(&existing).Error
	if err != nil {
		return fmt.Errorf("coupon usage existence check: %w", err)
	}
	if existing > 0 {
		return nil
	}

	// Counter increment and usage row land atomically: a crash between the
	// two would otherwise leave a count with no matching usage log.
	return database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		err := tx.Model(&models.Campaign{}).
			Where("id = ?", *sale.CampaignID).
			UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
		if err != nil {
			return fmt.Errorf("coupon counter increment: %w", err)
		}

		usage := &models.CampaignUsage{
			CampaignID: *sale.CampaignID,
			SaleID:     sale.ID,
			Code:       sale.CouponCode,
		}
		return tx.Create(usage).Error
	})
}

// processCommissions writes the producer / co-producer split over
// base = netAmount - affiliateCommission. The whole set is written as a
// single idempotent batch: if any commission rows exist for the sale, the
// sale was already split and the step is skipped entirely.
func (s *CommissionService) processCommissions(ctx context.Context, sale *models.Sale) error {
	var existing int64
	err := s.db.WithContext(ctx).Model(&models.CommissionRecord{}).
		Where("sale_id = ?", sale.ID).
		Count(&existing).Error
	if err != nil {
		return fmt.Errorf("commission existence check: %w", err)
	}
	if existing > 0 {
		return nil
	}

	base := commissionBase(sale)
	shares := computeShares(base, sale.Product.OwnerUserID, activeCoProducers(sale.Product.CoProducers))

	records := make([]models.CommissionRecord, 0, len(shares))
	for _, share := range shares {
		records = append(records, models.CommissionRecord{
			SaleID:         sale.ID,
			UserID:         share.UserID,
			Role:           share.Role,
			CommissionType: share.CommissionType,
			Percentage:     share.Percentage,
			Amount:         share.Amount.InexactFloat64(),
			Status:         models.CommissionStatusPending,
		})
	}
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error
}

// processItemCommissions repeats the split logic per order-bump item,
// scoped to the item's own product and co-producers with the item subtotal
// as the base.
func (s *CommissionService) processItemCommissions(ctx context.Context, sale *models.Sale) error {
	var errs []error
	for i := range sale.Items {
		item := &sale.Items[i]
		if item.ItemType != models.OrderItemTypeBump {
			continue
		}

		var existing int64
		err := s.db.WithContext(ctx).Model(&models.OrderItemCommission{}).
			Where("order_item_id = ?", item.ID).
			Count(&existing).Error
		if err != nil {
			errs = append(errs, fmt.Errorf("item %s existence check: %w", item.ID, err))
			continue
		}
		if existing > 0 {
			continue
		}

		base := round2(decimal.NewFromFloat(item.Subtotal))
		shares := computeShares(base, item.Product.OwnerUserID, activeCoProducers(item.Product.CoProducers))

		records := make([]models.OrderItemCommission, 0, len(shares))
		for _, share := range shares {
			records = append(records, models.OrderItemCommission{
				OrderItemID:    item.ID,
				SaleID:         sale.ID,
				UserID:         share.UserID,
				Role:           share.Role,
				CommissionType: share.CommissionType,
				Percentage:     share.Percentage,
				Amount:         share.Amount.InexactFloat64(),
				Status:         models.CommissionStatusPending,
			})
		}
		if len(records) == 0 {
			continue
		}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error; err != nil {
			errs = append(errs, fmt.Errorf("item %s insert: %w", item.ID, err))
		}
	}
	return errors.Join(errs...)
}

// processPaymentSplits mirrors the commission allocation into the
// settlement-facing rows and additionally attributes the platform fee
// against the gross amount.
func (s *CommissionService) processPaymentSplits(ctx context.Context, sale *models.Sale) error {
	var existing int64
	err := s.db.WithContext(ctx).Model(&models.PaymentSplit{}).
		Where("sale_id = ?", sale.ID).
		Count(&existing).Error
	if err != nil {
		return fmt.Errorf("split existence check: %w", err)
	}
	if existing > 0 {
		return nil
	}

	feePercent := s.config.Gateway.PlatformFeePercent
	platformFee := round2(decimal.NewFromFloat(sale.Amount).
		Mul(decimal.NewFromFloat(feePercent)).
		Div(decimal.NewFromInt(100)))

	splits := []models.PaymentSplit{{
		SaleID:          sale.ID,
		BeneficiaryType: models.BeneficiaryTypePlatform,
		Amount:          platformFee.InexactFloat64(),
		Percentage:      feePercent,
	}}

	base := commissionBase(sale)
	for _, share := range computeShares(base, sale.Product.OwnerUserID, activeCoProducers(sale.Product.CoProducers)) {
		userID := share.UserID
		splits = append(splits, models.PaymentSplit{
			SaleID:          sale.ID,
			BeneficiaryType: models.BeneficiaryTypeUser,
			UserID:          &userID,
			Role:            share.Role,
			Amount:          share.Amount.InexactFloat64(),
			Percentage:      share.Percentage,
		})
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&splits).Error
}

// computeShares allocates base across the co-producers and the producer.
// Percentage shares are rounded to 2 dp after the multiplication; fixed
// shares are capped at the remaining unallocated base and never negative.
// Whatever remains after all co-producers accrues to the producer, floored
// at zero. The remainder never goes to the platform and is never discarded.
func computeShares(base decimal.Decimal, ownerID uuid.UUID, coProducers []models.CoProducer) []beneficiaryShare {
	allocated := decimal.Zero
	shares := make([]beneficiaryShare, 0, len(coProducers)+1)

	for _, cp := range coProducers {
		var amount decimal.Decimal
		if cp.CommissionType == models.CommissionTypePercentage {
			amount = round2(base.Mul(decimal.NewFromFloat(cp.Percentage)).Div(decimal.NewFromInt(100)))
		} else {
			amount = round2(decimal.NewFromFloat(cp.FixedAmount))
			if remaining := base.Sub(allocated); amount.GreaterThan(remaining) {
				amount = remaining
			}
		}
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		allocated = allocated.Add(amount)
		shares = append(shares, beneficiaryShare{
			UserID:         cp.UserID,
			Role:           models.CommissionRoleCoProducer,
			CommissionType: cp.CommissionType,
			Percentage:     cp.Percentage,
			Amount:         amount,
		})
	}

	producer := base.Sub(allocated)
	if producer.IsNegative() {
		producer = decimal.Zero
	}
	shares = append(shares, beneficiaryShare{
		UserID:         ownerID,
		Role:           models.CommissionRoleProducer,
		CommissionType: models.CommissionTypePercentage,
		Amount:         producer,
	})

	return shares
}

// commissionBase is netAmount minus the affiliate's cut, when the sale
// carries an affiliation.
func commissionBase(sale *models.Sale) decimal.Decimal {
	base := decimal.NewFromFloat(sale.NetAmount)
	if sale.AffiliationID != nil {
		base = base.Sub(decimal.NewFromFloat(sale.CommissionAmount))
	}
	return round2(base)
}

func activeCoProducers(all []models.CoProducer) []models.CoProducer {
	active := make([]models.CoProducer, 0, len(all))
	for _, cp := range all {
		if cp.Active {
			active = append(active, cp)
		}
	}
	return active
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
