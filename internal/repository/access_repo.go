package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
)

type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

func (r *AccessRepository) Create(ctx context.Context, access *model.VipAccess) error {
	return txn.DB(ctx, r.db).Create(access).Error
}

func (r *AccessRepository) GetByID(ctx context.Context, id int64) (*model.VipAccess, error) {
	var access model.VipAccess
	err := txn.DB(ctx, r.db).Where("id = ?", id).First(&access).Error
	if err != nil {
		return nil, err
	}
	return &access, nil
}

func (r *AccessRepository) GetForUpdate(ctx context.Context, id int64) (*model.VipAccess, error) {
	var access model.VipAccess
	err := txn.DB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&access).Error
	if err != nil {
		return nil, err
	}
	return &access, nil
}

func (r *AccessRepository) Update(ctx context.Context, access *model.VipAccess) error {
	return txn.DB(ctx, r.db).Save(access).Error
}

// FindActive 同一 (user, level, category) 下 pending 或 approved 的实例
func (r *AccessRepository) FindActive(ctx context.Context, userID int64, level int, category string) (*model.VipAccess, error) {
	var access model.VipAccess
	err := txn.DB(ctx, r.db).
		Where("user_id = ? AND level = ? AND category = ? AND status IN ?", userID, level, category,
			[]string{model.AccessStatusPending, model.AccessStatusApproved}).
		Order("id DESC").
		First(&access).Error
	if err != nil {
		return nil, err
	}
	return &access, nil
}

// CountApprovedActive 同一 (user, level, category) 下除 excludeID 外已批准未完成的数量
func (r *AccessRepository) CountApprovedActive(ctx context.Context, userID int64, level int, category string, excludeID int64) (int64, error) {
	var count int64
	err := txn.DB(ctx, r.db).Model(&model.VipAccess{}).
		Where("user_id = ? AND level = ? AND category = ? AND status = ? AND id <> ?",
			userID, level, category, model.AccessStatusApproved, excludeID).
		Count(&count).Error
	return count, err
}

func (r *AccessRepository) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]model.VipAccess, int64, error) {
	var accesses []model.VipAccess
	var total int64

	query := txn.DB(ctx, r.db).Model(&model.VipAccess{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&accesses).Error
	return accesses, total, err
}

// ListPendingBefore 申请时间早于 cutoff 的待审批实例
func (r *AccessRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.VipAccess, error) {
	var accesses []model.VipAccess
	err := txn.DB(ctx, r.db).
		Where("status = ? AND requested_at < ?", model.AccessStatusPending, cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&accesses).Error
	return accesses, err
}

// ListApprovedAfter 按 ID 分批遍历已批准实例
func (r *AccessRepository) ListApprovedAfter(ctx context.Context, afterID int64, limit int) ([]model.VipAccess, error) {
	var accesses []model.VipAccess
	err := txn.DB(ctx, r.db).
		Where("status = ? AND id > ?", model.AccessStatusApproved, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&accesses).Error
	return accesses, err
}

func (r *AccessRepository) SaveCatalog(ctx context.Context, items []model.AccessCatalogItem) error {
	if len(items) == 0 {
		return nil
	}
	return txn.DB(ctx, r.db).Create(&items).Error
}

func (r *AccessRepository) ListCatalog(ctx context.Context, accessID int64) ([]model.AccessCatalogItem, error) {
	var items []model.AccessCatalogItem
	err := txn.DB(ctx, r.db).Where("access_id = ?", accessID).Order("position ASC").Find(&items).Error
	return items, err
}

// GrantCategory 已授权时更新关联实例
func (r *AccessRepository) GrantCategory(ctx context.Context, grant *model.CategoryGrant) error {
	return txn.DB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_id", "granted_at"}),
	}).Create(grant).Error
}

func (r *AccessRepository) ListGrantedCategories(ctx context.Context, userID int64) ([]string, error) {
	var categories []string
	err := txn.DB(ctx, r.db).Model(&model.CategoryGrant{}).
		Where("user_id = ?", userID).
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}
