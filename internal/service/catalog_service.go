package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/progression"
	"github.com/qs3c/vip_task_server/internal/repository"
)

// CatalogService 负责目录冻结和进度推导所需数据的读取
type CatalogService struct {
	vipRepo      *repository.VipRepository
	accessRepo   *repository.AccessRepository
	comboRepo    *repository.ComboRepository
	purchaseRepo *repository.PurchaseRepository
}

func NewCatalogService(
	vipRepo *repository.VipRepository,
	accessRepo *repository.AccessRepository,
	comboRepo *repository.ComboRepository,
	purchaseRepo *repository.PurchaseRepository,
) *CatalogService {
	return &CatalogService{
		vipRepo:      vipRepo,
		accessRepo:   accessRepo,
		comboRepo:    comboRepo,
		purchaseRepo: purchaseRepo,
	}
}

// TaskState 某个权限实例在一次事务中读取到的完整状态
type TaskState struct {
	Access   *model.VipAccess
	Level    *model.VipLevel
	Catalog  progression.Catalog
	Records  []progression.PurchaseRecord
	Progress progression.Progress
	Rules    progression.RuleSet
}

// Terms 等级条款，使用实例上记录的价格
func (st *TaskState) Terms() progression.LevelTerms {
	return progression.LevelTerms{
		AccessPrice:       st.Access.Price,
		CommissionPercent: st.Level.CommissionPercentage,
		TaskCount:         st.Level.ProductsCount,
	}
}

// NextQuote 下一个任务的报价，已完成时返回 false
func (st *TaskState) NextQuote() (progression.Quote, bool, error) {
	entry, ok := progression.NextEntry(st.Catalog, st.Progress)
	if !ok {
		return progression.Quote{}, false, nil
	}
	taskNumber := st.Progress.NextTaskNumber()
	var rule *progression.ComboRule
	if r, hit := st.Rules.RuleFor(taskNumber); hit {
		rule = &r
	}
	q, err := progression.QuoteStep(taskNumber, entry, rule, st.Terms())
	if err != nil {
		return progression.Quote{}, false, err
	}
	return q, true, nil
}

// LiveCatalog 用当前上架商品构建目录
func (s *CatalogService) LiveCatalog(ctx context.Context, level *model.VipLevel) (progression.Catalog, error) {
	products, err := s.vipRepo.ListActiveProducts(ctx, level.Category)
	if err != nil {
		return nil, err
	}

	entries := make([]progression.CatalogEntry, 0, len(products))
	for _, p := range products {
		entries = append(entries, progression.CatalogEntry{
			ProductID:          p.ID,
			Name:               p.Name,
			Price:              p.Price,
			CommissionPercent:  p.CommissionPercentage,
			QuantityMultiplier: p.QuantityMultiplier,
		})
	}

	catalog, err := progression.BuildCatalog(entries, level.ProductsCount)
	if err != nil {
		return nil, err
	}
	if short := catalog.Shortfall(level.ProductsCount); short > 0 {
		slog.Warn("分类商品数量不足，任务序列按实际商品数截断",
			"category", level.Category, "level", level.Level,
			"required", level.ProductsCount, "available", catalog.Len())
	}
	return catalog, nil
}

// Freeze 将目录写入实例，之后的购买只读取冻结目录
func (s *CatalogService) Freeze(ctx context.Context, accessID int64, catalog progression.Catalog) error {
	items := make([]model.AccessCatalogItem, 0, len(catalog))
	for _, e := range catalog {
		items = append(items, model.AccessCatalogItem{
			AccessID:             accessID,
			Position:             e.Position,
			ProductID:            e.ProductID,
			Name:                 e.Name,
			Price:                e.Price,
			CommissionPercentage: e.CommissionPercent,
			QuantityMultiplier:   e.QuantityMultiplier,
		})
	}
	return s.accessRepo.SaveCatalog(ctx, items)
}

// FrozenCatalog 读取冻结目录，为空说明配置异常
func (s *CatalogService) FrozenCatalog(ctx context.Context, accessID int64) (progression.Catalog, error) {
	items, err := s.accessRepo.ListCatalog(ctx, accessID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &progression.ConfigurationError{Message: fmt.Sprintf("权限 %d 没有任务目录", accessID)}
	}

	catalog := make(progression.Catalog, 0, len(items))
	for _, it := range items {
		catalog = append(catalog, progression.CatalogEntry{
			Position:           it.Position,
			ProductID:          it.ProductID,
			Name:               it.Name,
			Price:              it.Price,
			CommissionPercent:  it.CommissionPercentage,
			QuantityMultiplier: it.QuantityMultiplier,
		})
	}
	return catalog, nil
}

// Records 实例下的购买记录
func (s *CatalogService) Records(ctx context.Context, accessID int64) ([]progression.PurchaseRecord, error) {
	purchases, err := s.purchaseRepo.ListByAccess(ctx, accessID)
	if err != nil {
		return nil, err
	}
	records := make([]progression.PurchaseRecord, 0, len(purchases))
	for _, p := range purchases {
		records = append(records, progression.PurchaseRecord{
			ProductID:  p.ProductID,
			Quantity:   p.Quantity,
			Commission: p.CommissionEarned,
		})
	}
	return records, nil
}

// Progress 已冻结目录的实例的当前进度
func (s *CatalogService) Progress(ctx context.Context, accessID int64) (progression.Progress, error) {
	catalog, err := s.FrozenCatalog(ctx, accessID)
	if err != nil {
		return progression.Progress{}, err
	}
	records, err := s.Records(ctx, accessID)
	if err != nil {
		return progression.Progress{}, err
	}
	return progression.ComputeProgress(catalog, records), nil
}

// Overrides 实例下生效中的逐位置连单规则
func (s *CatalogService) Overrides(ctx context.Context, accessID int64) ([]progression.ComboRule, error) {
	overrides, err := s.comboRepo.ListActiveByAccess(ctx, accessID)
	if err != nil {
		return nil, err
	}
	rules := make([]progression.ComboRule, 0, len(overrides))
	for i := range overrides {
		rules = append(rules, overrideRule(&overrides[i]))
	}
	return rules, nil
}

// RuleSet 实例的连单规则：逐位置覆盖优先于冻结快照
func (s *CatalogService) RuleSet(ctx context.Context, access *model.VipAccess) (progression.RuleSet, error) {
	rules, err := s.Overrides(ctx, access.ID)
	if err != nil {
		return nil, err
	}
	return progression.NewRuleSet(rules, snapshotOf(access)), nil
}

// State 读取实例的完整任务状态
func (s *CatalogService) State(ctx context.Context, access *model.VipAccess) (*TaskState, error) {
	level, err := s.vipRepo.GetLevel(ctx, access.Level, access.Category)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &progression.ConfigurationError{Message: fmt.Sprintf("等级 %d/%s 不存在", access.Level, access.Category)}
		}
		return nil, err
	}
	catalog, err := s.FrozenCatalog(ctx, access.ID)
	if err != nil {
		return nil, err
	}
	records, err := s.Records(ctx, access.ID)
	if err != nil {
		return nil, err
	}
	rules, err := s.RuleSet(ctx, access)
	if err != nil {
		return nil, err
	}

	return &TaskState{
		Access:   access,
		Level:    level,
		Catalog:  catalog,
		Records:  records,
		Progress: progression.ComputeProgress(catalog, records),
		Rules:    rules,
	}, nil
}

func snapshotOf(a *model.VipAccess) progression.Snapshot {
	return progression.Snapshot{
		Enabled:        a.ComboEnabled,
		Position:       a.ComboPosition,
		Multiplier:     a.ComboMultiplier,
		DepositPercent: a.ComboDepositPercent,
	}
}

func overrideRule(c *model.ComboOverride) progression.ComboRule {
	return progression.ComboRule{
		Source:          progression.SourceOverride,
		OverrideID:      c.ID,
		Position:        c.Position,
		Mode:            progression.ComboMode(c.Mode),
		Multiplier:      c.Multiplier,
		DepositPercent:  c.DepositPercent,
		VipPricePercent: c.VipPricePercent,
	}
}
