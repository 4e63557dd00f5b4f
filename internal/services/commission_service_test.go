// internal/services/commission_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/sellgate/checkout-backend/internal/models"
)

func TestComputeSharesPercentages(t *testing.T) {
	ownerID := uuid.New()
	coProducers := []models.CoProducer{
		{UserID: uuid.New(), CommissionType: models.CommissionTypePercentage, Percentage: 20},
		{UserID: uuid.New(), CommissionType: models.CommissionTypePercentage, Percentage: 10},
	}

	shares := computeShares(decimal.NewFromInt(90), ownerID, coProducers)
	require.Len(t, shares, 3)

	assert.Equal(t, models.CommissionRoleCoProducer, shares[0].Role)
	assert.True(t, shares[0].Amount.Equal(decimal.NewFromInt(18)), "got %s", shares[0].Amount)
	assert.True(t, shares[1].Amount.Equal(decimal.NewFromInt(9)), "got %s", shares[1].Amount)

	assert.Equal(t, models.CommissionRoleProducer, shares[2].Role)
	assert.Equal(t, ownerID, shares[2].UserID)
	assert.True(t, shares[2].Amount.Equal(decimal.NewFromInt(63)), "got %s", shares[2].Amount)

	// The allocations always reconcile back to the base.
	total := decimal.Zero
	for _, share := range shares {
		total = total.Add(share.Amount)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(90)))
}

func TestComputeSharesFixedCappedAtRemainingBase(t *testing.T) {
	ownerID := uuid.New()
	coProducers := []models.CoProducer{
		{UserID: uuid.New(), CommissionType: models.CommissionTypeFixed, FixedAmount: 40},
		{UserID: uuid.New(), CommissionType: models.CommissionTypeFixed, FixedAmount: 30},
	}

	shares := computeShares(decimal.NewFromInt(50), ownerID, coProducers)
	require.Len(t, shares, 3)

	assert.True(t, shares[0].Amount.Equal(decimal.NewFromInt(40)))
	// Only 10 remains; the second fixed share is capped.
	assert.True(t, shares[1].Amount.Equal(decimal.NewFromInt(10)), "got %s", shares[1].Amount)
	assert.True(t, shares[2].Amount.IsZero())
}

func TestComputeSharesProducerNeverNegative(t *testing.T) {
	shares := computeShares(decimal.NewFromInt(100), uuid.New(), []models.CoProducer{
		{UserID: uuid.New(), CommissionType: models.CommissionTypePercentage, Percentage: 80},
		{UserID: uuid.New(), CommissionType: models.CommissionTypePercentage, Percentage: 40},
	})
	require.Len(t, shares, 3)
	assert.True(t, shares[2].Amount.IsZero())
}

func TestComputeSharesRounding(t *testing.T) {
	// 33.33% of 10.00 is 3.333; rounded to 3.33 after the multiplication,
	// the producer keeps the leftover cent.
	shares := computeShares(decimal.NewFromInt(10), uuid.New(), []models.CoProducer{
		{UserID: uuid.New(), CommissionType: models.CommissionTypePercentage, Percentage: 33.33},
	})
	require.Len(t, shares, 2)
	assert.True(t, shares[0].Amount.Equal(decimal.RequireFromString("3.33")), "got %s", shares[0].Amount)
	assert.True(t, shares[1].Amount.Equal(decimal.RequireFromString("6.67")), "got %s", shares[1].Amount)
}

type CommissionServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *CommissionService

	ownerID     uuid.UUID
	coProducer1 uuid.UUID
	coProducer2 uuid.UUID
	product     *models.Product
	affiliation *models.Affiliation
	campaign    *models.Campaign
}

func (suite *CommissionServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.service = NewCommissionService(suite.db, newTestConfig())

	suite.ownerID = uuid.New()
	suite.coProducer1 = uuid.New()
	suite.coProducer2 = uuid.New()

	suite.product = &models.Product{
		OwnerUserID: suite.ownerID,
		Title:       "Launch Course",
		Price:       120,
		Active:      true,
	}
	suite.Require().NoError(suite.db.Create(suite.product).Error)

	coProducers := []models.CoProducer{
		{ProductID: suite.product.ID, UserID: suite.coProducer1, CommissionType: models.CommissionTypePercentage, Percentage: 20, Active: true},
		{ProductID: suite.product.ID, UserID: suite.coProducer2, CommissionType: models.CommissionTypePercentage, Percentage: 10, Active: true},
	}
	suite.Require().NoError(suite.db.Create(&coProducers).Error)

	suite.affiliation = &models.Affiliation{
		ProductID:  suite.product.ID,
		UserID:     uuid.New(),
		Percentage: 10,
		Active:     true,
	}
	suite.Require().NoError(suite.db.Create(suite.affiliation).Error)

	suite.campaign = &models.Campaign{
		SellerUserID: suite.ownerID,
		Code:         "LAUNCH10",
		Active:       true,
	}
	suite.Require().NoError(suite.db.Create(suite.campaign).Error)
}

func (suite *CommissionServiceTestSuite) newApprovedSale() *models.Sale {
	sale := &models.Sale{
		ProductID:        suite.product.ID,
		SellerUserID:     suite.ownerID,
		AffiliationID:    &suite.affiliation.ID,
		CampaignID:       &suite.campaign.ID,
		Status:           models.SaleStatusApproved,
		Amount:           120,
		NetAmount:        100,
		CommissionAmount: 10,
		TransactionID:    "tx-" + uuid.NewString(),
		CouponCode:       "LAUNCH10",
		BuyerEmail:       "buyer@example.com",
	}
	suite.Require().NoError(suite.db.Create(sale).Error)

	var loaded models.Sale
	suite.Require().NoError(suite.db.
		Preload("Product").Preload("Product.CoProducers").
		Preload("Items").Preload("Items.Product").Preload("Items.Product.CoProducers").
		First(&loaded, "id = ?", sale.ID).Error)
	return &loaded
}

func (suite *CommissionServiceTestSuite) TestProcessApprovalFullSplit() {
	click := &models.AffiliateClick{AffiliationID: suite.affiliation.ID, Source: "instagram"}
	suite.Require().NoError(suite.db.Create(click).Error)

	sale := suite.newApprovedSale()
	suite.Require().NoError(suite.service.ProcessApproval(context.Background(), sale))

	// Commission split over base = net - affiliate cut = 90.
	var commissions []models.CommissionRecord
	suite.Require().NoError(suite.db.Where("sale_id = ?", sale.ID).Order("amount").Find(&commissions).Error)
	suite.Require().Len(commissions, 3)
	suite.InDelta(9.0, commissions[0].Amount, 0.001)
	suite.InDelta(18.0, commissions[1].Amount, 0.001)
	suite.InDelta(63.0, commissions[2].Amount, 0.001)
	suite.Equal(models.CommissionRoleProducer, commissions[2].Role)
	suite.Equal(suite.ownerID, commissions[2].UserID)

	// Settlement splits mirror the shares plus the 5% platform fee on gross.
	var splits []models.PaymentSplit
	suite.Require().NoError(suite.db.Where("sale_id = ?", sale.ID).Find(&splits).Error)
	suite.Require().Len(splits, 4)
	var platformFee float64
	var userTotal float64
	for _, split := range splits {
		if split.BeneficiaryType == models.BeneficiaryTypePlatform {
			platformFee = split.Amount
		} else {
			userTotal += split.Amount
		}
	}
	suite.InDelta(6.0, platformFee, 0.001)
	suite.InDelta(90.0, userTotal, 0.001)

	// Affiliate record with owner earnings = net - affiliate cut.
	var affiliate models.AffiliateSaleRecord
	suite.Require().NoError(suite.db.First(&affiliate, "sale_id = ?", sale.ID).Error)
	suite.InDelta(10.0, affiliate.CommissionAmount, 0.001)
	suite.InDelta(90.0, affiliate.OwnerEarnings, 0.001)

	// The referral click converted.
	var convertedClick models.AffiliateClick
	suite.Require().NoError(suite.db.First(&convertedClick, "id = ?", click.ID).Error)
	suite.True(convertedClick.Converted)
	suite.NotNil(convertedClick.ConvertedAt)

	// Coupon usage counted once.
	var campaign models.Campaign
	suite.Require().NoError(suite.db.First(&campaign, "id = ?", suite.campaign.ID).Error)
	suite.Equal(int64(1), campaign.UsageCount)
}

func (suite *CommissionServiceTestSuite) TestProcessApprovalIsIdempotent() {
	sale := suite.newApprovedSale()

	suite.Require().NoError(suite.service.ProcessApproval(context.Background(), sale))
	suite.Require().NoError(suite.service.ProcessApproval(context.Background(), sale))

	var commissionCount, splitCount, affiliateCount, usageCount int64
	suite.db.Model(&models.CommissionRecord{}).Where("sale_id = ?", sale.ID).Count(&commissionCount)
	suite.db.Model(&models.PaymentSplit{}).Where("sale_id = ?", sale.ID).Count(&splitCount)
	suite.db.Model(&models.AffiliateSaleRecord{}).Where("sale_id = ?", sale.ID).Count(&affiliateCount)
	suite.db.Model(&models.CampaignUsage{}).Where("sale_id = ?", sale.ID).Count(&usageCount)

	suite.Equal(int64(3), commissionCount)
	suite.Equal(int64(4), splitCount)
	suite.Equal(int64(1), affiliateCount)
	suite.Equal(int64(1), usageCount)

	var campaign models.Campaign
	suite.Require().NoError(suite.db.First(&campaign, "id = ?", suite.campaign.ID).Error)
	suite.Equal(int64(1), campaign.UsageCount)
}

func (suite *CommissionServiceTestSuite) TestProcessApprovalSkipsInactiveCoProducers() {
	suite.Require().NoError(suite.db.Model(&models.CoProducer{}).
		Where("user_id = ?", suite.coProducer2).
		Update("active", false).Error)

	sale := suite.newApprovedSale()
	suite.Require().NoError(suite.service.ProcessApproval(context.Background(), sale))

	var commissions []models.CommissionRecord
	suite.Require().NoError(suite.db.Where("sale_id = ?", sale.ID).Order("amount").Find(&commissions).Error)
	suite.Require().Len(commissions, 2)
	suite.InDelta(18.0, commissions[0].Amount, 0.001)
	suite.InDelta(72.0, commissions[1].Amount, 0.001)
}

func (suite *CommissionServiceTestSuite) TestOrderBumpSubSplits() {
	bumpOwner := uuid.New()
	bumpProduct := &models.Product{OwnerUserID: bumpOwner, Title: "Bump Ebook", Price: 30, Active: true}
	suite.Require().NoError(suite.db.Create(bumpProduct).Error)
	suite.Require().NoError(suite.db.Create(&models.CoProducer{
		ProductID:      bumpProduct.ID,
		UserID:         uuid.New(),
		CommissionType: models.CommissionTypePercentage,
		Percentage:     50,
		Active:         true,
	}).Error)

	sale := suite.newApprovedSale()
	items := []models.OrderItem{
		{SaleID: sale.ID, ProductID: suite.product.ID, ItemType: models.OrderItemTypeMain, Subtotal: 90},
		{SaleID: sale.ID, ProductID: bumpProduct.ID, ItemType: models.OrderItemTypeBump, Subtotal: 30},
	}
	suite.Require().NoError(suite.db.Create(&items).Error)

	var loaded models.Sale
	suite.Require().NoError(suite.db.
		Preload("Product").Preload("Product.CoProducers").
		Preload("Items").Preload("Items.Product").Preload("Items.Product.CoProducers").
		First(&loaded, "id = ?", sale.ID).Error)

	suite.Require().NoError(suite.service.ProcessApproval(context.Background(), &loaded))

	// Only the bump item gets a sub-split, scoped to its own product.
	var itemCommissions []models.OrderItemCommission
	suite.Require().NoError(suite.db.Where("sale_id = ?", sale.ID).Order("amount").Find(&itemCommissions).Error)
	suite.Require().Len(itemCommissions, 2)
	suite.InDelta(15.0, itemCommissions[0].Amount, 0.001)
	suite.InDelta(15.0, itemCommissions[1].Amount, 0.001)

	roles := map[models.CommissionRole]uuid.UUID{}
	for _, ic := range itemCommissions {
		roles[ic.Role] = ic.UserID
	}
	suite.Equal(bumpOwner, roles[models.CommissionRoleProducer])
}

func TestCommissionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CommissionServiceTestSuite))
}
