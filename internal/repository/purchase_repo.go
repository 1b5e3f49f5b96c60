package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) ListByAccess(ctx context.Context, accessID int64) ([]model.ProductPurchase, error) {
	var purchases []model.ProductPurchase
	err := txn.DB(ctx, r.db).Where("access_id = ?", accessID).Order("id ASC").Find(&purchases).Error
	return purchases, err
}

// AddUnits 首次购买插入记录，之后只累加数量和佣金
func (r *PurchaseRepository) AddUnits(ctx context.Context, accessID, userID, productID int64, units int, commission decimal.Decimal, at time.Time) (*model.ProductPurchase, error) {
	db := txn.DB(ctx, r.db)

	var purchase model.ProductPurchase
	err := db.Where("access_id = ? AND product_id = ?", accessID, productID).First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		purchase = model.ProductPurchase{
			AccessID:         accessID,
			ProductID:        productID,
			UserID:           userID,
			Quantity:         units,
			CommissionEarned: commission,
			Completed:        true,
			CompletedAt:      &at,
		}
		if err := db.Create(&purchase).Error; err != nil {
			return nil, err
		}
		return &purchase, nil
	}
	if err != nil {
		return nil, err
	}

	purchase.Quantity += units
	purchase.CommissionEarned = purchase.CommissionEarned.Add(commission)
	purchase.Completed = true
	purchase.CompletedAt = &at
	if err := db.Save(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}
