package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
)

// LedgerRepository 余额流水
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, entry *model.BalanceTransaction) error {
	return txn.DB(ctx, r.db).Create(entry).Error
}

func (r *LedgerRepository) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]model.BalanceTransaction, int64, error) {
	var entries []model.BalanceTransaction
	var total int64

	query := txn.DB(ctx, r.db).Model(&model.BalanceTransaction{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&entries).Error
	return entries, total, err
}

func (r *LedgerRepository) ListByAccess(ctx context.Context, accessID int64) ([]model.BalanceTransaction, error) {
	var entries []model.BalanceTransaction
	err := txn.DB(ctx, r.db).Where("access_id = ?", accessID).Order("id ASC").Find(&entries).Error
	return entries, err
}
