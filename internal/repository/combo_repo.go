package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
)

type ComboRepository struct {
	db *gorm.DB
}

func NewComboRepository(db *gorm.DB) *ComboRepository {
	return &ComboRepository{db: db}
}

func (r *ComboRepository) Create(ctx context.Context, combo *model.ComboOverride) error {
	combo.SyncActiveSlot()
	return txn.DB(ctx, r.db).Create(combo).Error
}

func (r *ComboRepository) GetByID(ctx context.Context, id int64) (*model.ComboOverride, error) {
	var combo model.ComboOverride
	err := txn.DB(ctx, r.db).Where("id = ?", id).First(&combo).Error
	if err != nil {
		return nil, err
	}
	return &combo, nil
}

func (r *ComboRepository) GetForUpdate(ctx context.Context, id int64) (*model.ComboOverride, error) {
	var combo model.ComboOverride
	err := txn.DB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&combo).Error
	if err != nil {
		return nil, err
	}
	return &combo, nil
}

func (r *ComboRepository) Update(ctx context.Context, combo *model.ComboOverride) error {
	combo.SyncActiveSlot()
	return txn.DB(ctx, r.db).Save(combo).Error
}

func (r *ComboRepository) Delete(ctx context.Context, id int64) error {
	return txn.DB(ctx, r.db).Delete(&model.ComboOverride{}, id).Error
}

func (r *ComboRepository) ListByAccess(ctx context.Context, accessID int64) ([]model.ComboOverride, error) {
	var combos []model.ComboOverride
	err := txn.DB(ctx, r.db).Where("access_id = ?", accessID).Order("position ASC, id ASC").Find(&combos).Error
	return combos, err
}

// ListActiveByAccess 激活且未完成的覆盖
func (r *ComboRepository) ListActiveByAccess(ctx context.Context, accessID int64) ([]model.ComboOverride, error) {
	var combos []model.ComboOverride
	err := txn.DB(ctx, r.db).
		Where("access_id = ? AND is_active = ? AND completed = ?", accessID, true, false).
		Order("position ASC, id ASC").
		Find(&combos).Error
	return combos, err
}

// FindActiveAt 某位置上激活的覆盖，不存在返回 gorm.ErrRecordNotFound
func (r *ComboRepository) FindActiveAt(ctx context.Context, accessID int64, position int) (*model.ComboOverride, error) {
	var combo model.ComboOverride
	err := txn.DB(ctx, r.db).
		Where("access_id = ? AND position = ? AND is_active = ? AND completed = ?", accessID, position, true, false).
		First(&combo).Error
	if err != nil {
		return nil, err
	}
	return &combo, nil
}

// MarkCompleted 消费后标记完成并释放唯一槽位
func (r *ComboRepository) MarkCompleted(ctx context.Context, id int64, at time.Time) error {
	return txn.DB(ctx, r.db).Model(&model.ComboOverride{}).Where("id = ?", id).Updates(map[string]interface{}{
		"completed":    true,
		"completed_at": at,
		"active_slot":  nil,
	}).Error
}
