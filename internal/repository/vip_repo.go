package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
)

// VipRepository 等级定义与商品
type VipRepository struct {
	db *gorm.DB
}

func NewVipRepository(db *gorm.DB) *VipRepository {
	return &VipRepository{db: db}
}

func (r *VipRepository) GetLevel(ctx context.Context, level int, category string) (*model.VipLevel, error) {
	var l model.VipLevel
	err := txn.DB(ctx, r.db).Where("level = ? AND category = ?", level, category).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *VipRepository) ListLevels(ctx context.Context) ([]model.VipLevel, error) {
	var levels []model.VipLevel
	err := txn.DB(ctx, r.db).Order("category ASC, level ASC").Find(&levels).Error
	return levels, err
}

// UpsertLevel 按 (level, category) 插入或更新
func (r *VipRepository) UpsertLevel(ctx context.Context, l *model.VipLevel) error {
	return txn.DB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "level"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"products_count", "commission_percentage", "price", "updated_at"}),
	}).Create(l).Error
}

// ListActiveProducts 分类下的可用商品，按名称升序
func (r *VipRepository) ListActiveProducts(ctx context.Context, category string) ([]model.Product, error) {
	var products []model.Product
	err := txn.DB(ctx, r.db).
		Where("category = ? AND is_active = ?", category, true).
		Order("name ASC, id ASC").
		Find(&products).Error
	return products, err
}
