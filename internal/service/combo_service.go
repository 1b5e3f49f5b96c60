package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/qs3c/vip_task_server/config"
	"github.com/qs3c/vip_task_server/internal/metrics"
	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/model/dto"
	"github.com/qs3c/vip_task_server/internal/progression"
	"github.com/qs3c/vip_task_server/internal/repository"
)

// ComboService 管理员逐位置设置连单
type ComboService struct {
	comboRepo  *repository.ComboRepository
	accessRepo *repository.AccessRepository
	vipRepo    *repository.VipRepository
	catalog    *CatalogService
	exec       *Executor
	bounds     progression.Bounds
	metrics    *metrics.TaskMetrics
}

func NewComboService(
	comboRepo *repository.ComboRepository,
	accessRepo *repository.AccessRepository,
	vipRepo *repository.VipRepository,
	catalog *CatalogService,
	exec *Executor,
	cfg *config.Config,
) *ComboService {
	return &ComboService{
		comboRepo:  comboRepo,
		accessRepo: accessRepo,
		vipRepo:    vipRepo,
		catalog:    catalog,
		exec:       exec,
		bounds:     comboBounds(cfg),
		metrics:    metrics.Get(),
	}
}

// comboBounds 配置缺省的项使用默认范围
func comboBounds(cfg *config.Config) progression.Bounds {
	b := progression.DefaultBounds()
	if cfg == nil {
		return b
	}
	c := cfg.Combo
	set := func(dst *decimal.Decimal, v float64) {
		if v > 0 {
			*dst = decimal.NewFromFloat(v)
		}
	}
	set(&b.MinMultiplier, c.MinMultiplier)
	set(&b.MaxMultiplier, c.MaxMultiplier)
	set(&b.MinDepositPercent, c.MinDepositPercent)
	set(&b.MaxDepositPercent, c.MaxDepositPercent)
	set(&b.MinVipPricePercent, c.MinVipPricePercent)
	set(&b.MaxVipPricePercent, c.MaxVipPricePercent)
	return b
}

// List 实例下的全部连单（含已完成）
func (s *ComboService) List(ctx context.Context, accessID int64) ([]model.ComboOverride, error) {
	if _, err := s.access(ctx, accessID); err != nil {
		return nil, err
	}
	return s.comboRepo.ListByAccess(ctx, accessID)
}

// Create 新建连单
func (s *ComboService) Create(ctx context.Context, operatorID, accessID int64, req *dto.ComboRequest) (*model.ComboOverride, error) {
	current, err := s.access(ctx, accessID)
	if err != nil {
		return nil, err
	}

	combo := &model.ComboOverride{
		AccessID:  accessID,
		CreatedBy: operatorID,
		IsActive:  true,
	}
	applyComboRequest(combo, req)

	err = s.exec.RunForUser(ctx, current.UserID, func(ctx context.Context) error {
		a, err := s.accessRepo.GetForUpdate(ctx, accessID)
		if err != nil {
			return err
		}
		if err := s.checkWritable(ctx, a, combo); err != nil {
			return err
		}
		return s.comboRepo.Create(ctx, combo)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ComboChangeTotal.WithLabelValues("create").Inc()
	return combo, nil
}

// Update 修改未消费的连单
func (s *ComboService) Update(ctx context.Context, comboID int64, req *dto.ComboRequest) (*model.ComboOverride, error) {
	existing, err := s.get(ctx, comboID)
	if err != nil {
		return nil, err
	}
	current, err := s.access(ctx, existing.AccessID)
	if err != nil {
		return nil, err
	}

	var combo *model.ComboOverride
	err = s.exec.RunForUser(ctx, current.UserID, func(ctx context.Context) error {
		c, err := s.comboRepo.GetForUpdate(ctx, comboID)
		if err != nil {
			return err
		}
		if c.Completed {
			return ErrComboLocked
		}
		a, err := s.accessRepo.GetForUpdate(ctx, c.AccessID)
		if err != nil {
			return err
		}
		if err := s.checkNotConsumed(ctx, a, c.Position); err != nil {
			return err
		}

		applyComboRequest(c, req)
		if err := s.checkWritable(ctx, a, c); err != nil {
			return err
		}
		combo = c
		return s.comboRepo.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ComboChangeTotal.WithLabelValues("update").Inc()
	return combo, nil
}

// Delete 删除未消费的连单
func (s *ComboService) Delete(ctx context.Context, comboID int64) error {
	existing, err := s.get(ctx, comboID)
	if err != nil {
		return err
	}
	current, err := s.access(ctx, existing.AccessID)
	if err != nil {
		return err
	}

	err = s.exec.RunForUser(ctx, current.UserID, func(ctx context.Context) error {
		c, err := s.comboRepo.GetForUpdate(ctx, comboID)
		if err != nil {
			return err
		}
		if c.Completed {
			return ErrComboLocked
		}
		a, err := s.accessRepo.GetForUpdate(ctx, c.AccessID)
		if err != nil {
			return err
		}
		if err := s.checkNotConsumed(ctx, a, c.Position); err != nil {
			return err
		}
		return s.comboRepo.Delete(ctx, c.ID)
	})
	if err != nil {
		return err
	}

	s.metrics.ComboChangeTotal.WithLabelValues("delete").Inc()
	return nil
}

// checkWritable 写入前校验：实例状态、参数范围、位置未消费、同位置无其他生效连单
func (s *ComboService) checkWritable(ctx context.Context, a *model.VipAccess, c *model.ComboOverride) error {
	if !a.IsActive() {
		return ErrComboLocked
	}

	catalog, err := s.sequence(ctx, a)
	if err != nil {
		return err
	}
	if err := s.bounds.ValidateIn(overrideRule(c), catalog); err != nil {
		return err
	}
	if err := s.checkNotConsumed(ctx, a, c.Position); err != nil {
		return err
	}

	if !c.IsActive {
		return nil
	}
	other, err := s.comboRepo.FindActiveAt(ctx, a.ID, c.Position)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if other.ID != c.ID {
		return &progression.ValidationError{Field: "position", Message: fmt.Sprintf("位置 %d 已有生效的连单", c.Position)}
	}
	return nil
}

// checkNotConsumed 位置对应的任务已购买则不可再改
func (s *ComboService) checkNotConsumed(ctx context.Context, a *model.VipAccess, position int) error {
	switch a.Status {
	case model.AccessStatusPending:
		return nil
	case model.AccessStatusApproved:
		p, err := s.catalog.Progress(ctx, a.ID)
		if err != nil {
			return err
		}
		if p.PurchasedCount >= position {
			return ErrComboLocked
		}
		return nil
	default:
		return ErrComboLocked
	}
}

// sequence 已冻结目录的实例用冻结目录，未审批时按当前商品预览，审批时会再次校验
func (s *ComboService) sequence(ctx context.Context, a *model.VipAccess) (progression.Catalog, error) {
	if a.Status != model.AccessStatusPending {
		return s.catalog.FrozenCatalog(ctx, a.ID)
	}
	level, err := s.vipRepo.GetLevel(ctx, a.Level, a.Category)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &progression.ConfigurationError{Message: fmt.Sprintf("等级 %d/%s 不存在", a.Level, a.Category)}
		}
		return nil, err
	}
	return s.catalog.LiveCatalog(ctx, level)
}

func (s *ComboService) access(ctx context.Context, accessID int64) (*model.VipAccess, error) {
	a, err := s.accessRepo.GetByID(ctx, accessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccessNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *ComboService) get(ctx context.Context, comboID int64) (*model.ComboOverride, error) {
	c, err := s.comboRepo.GetByID(ctx, comboID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrComboNotFound
		}
		return nil, err
	}
	return c, nil
}

func applyComboRequest(c *model.ComboOverride, req *dto.ComboRequest) {
	c.Position = req.Position
	c.Mode = req.Mode
	c.Multiplier = req.Multiplier
	c.DepositPercent = req.DepositPercent
	c.VipPricePercent = req.VipPricePercent
	c.Notes = req.Notes
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
}
