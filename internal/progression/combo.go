package progression

import (
	"github.com/shopspring/decimal"
)

// ComboMode 连单计价方式
type ComboMode string

const (
	// ModeDeposit 按权限价格的百分比收取押金
	ModeDeposit ComboMode = "deposit"
	// ModePricePercentage 按权限价格百分比乘以倍数作为价格
	ModePricePercentage ComboMode = "price_percentage"
)

// RuleSource 规则来源
type RuleSource string

const (
	SourceOverride RuleSource = "override"
	SourceSnapshot RuleSource = "snapshot"
)

// ComboRule 某个任务序号上生效的连单规则
type ComboRule struct {
	Source          RuleSource
	OverrideID      int64 // 仅 SourceOverride 有值
	Position        int   // 第几个任务（从 1 开始）
	Mode            ComboMode
	Multiplier      decimal.Decimal
	DepositPercent  decimal.Decimal
	VipPricePercent decimal.Decimal
}

// Snapshot 审批时冻结在权限实例上的单个连单配置
type Snapshot struct {
	Enabled        bool
	Position       int
	Multiplier     decimal.Decimal
	DepositPercent decimal.Decimal
}

// Rule 转换为押金模式的规则
func (s Snapshot) Rule() ComboRule {
	return ComboRule{
		Source:         SourceSnapshot,
		Position:       s.Position,
		Mode:           ModeDeposit,
		Multiplier:     s.Multiplier,
		DepositPercent: s.DepositPercent,
	}
}

// RuleProvider 按任务序号查找连单规则
type RuleProvider interface {
	RuleFor(position int) (ComboRule, bool)
}

// OverrideProvider 管理员逐位置设置的连单，只包含激活且未完成的记录
type OverrideProvider map[int]ComboRule

// NewOverrideProvider 以位置为键建立索引，同一位置只保留第一条
func NewOverrideProvider(rules []ComboRule) OverrideProvider {
	p := make(OverrideProvider, len(rules))
	for _, r := range rules {
		if _, exists := p[r.Position]; exists {
			continue
		}
		r.Source = SourceOverride
		p[r.Position] = r
	}
	return p
}

func (p OverrideProvider) RuleFor(position int) (ComboRule, bool) {
	r, ok := p[position]
	return r, ok
}

// SnapshotProvider 权限实例上的冻结配置
type SnapshotProvider struct {
	Snapshot Snapshot
}

func (p SnapshotProvider) RuleFor(position int) (ComboRule, bool) {
	s := p.Snapshot
	if !s.Enabled || s.Position != position {
		return ComboRule{}, false
	}
	return s.Rule(), true
}

// RuleSet 按优先级排列的规则来源，靠前者优先
type RuleSet []RuleProvider

// NewRuleSet 逐位置覆盖优先于冻结快照
func NewRuleSet(overrides []ComboRule, snapshot Snapshot) RuleSet {
	return RuleSet{NewOverrideProvider(overrides), SnapshotProvider{Snapshot: snapshot}}
}

// RuleFor 返回第一个命中的规则
func (rs RuleSet) RuleFor(position int) (ComboRule, bool) {
	for _, p := range rs {
		if r, ok := p.RuleFor(position); ok {
			return r, true
		}
	}
	return ComboRule{}, false
}

// Bounds 连单参数取值范围（闭区间）
type Bounds struct {
	MinMultiplier      decimal.Decimal
	MaxMultiplier      decimal.Decimal
	MinDepositPercent  decimal.Decimal
	MaxDepositPercent  decimal.Decimal
	MinVipPricePercent decimal.Decimal
	MaxVipPricePercent decimal.Decimal
}

// DefaultBounds 倍数 1-500，押金 5%-5000%，价格百分比 100%-500%
func DefaultBounds() Bounds {
	return Bounds{
		MinMultiplier:      decimal.NewFromInt(1),
		MaxMultiplier:      decimal.NewFromInt(500),
		MinDepositPercent:  decimal.NewFromInt(5),
		MaxDepositPercent:  decimal.NewFromInt(5000),
		MinVipPricePercent: decimal.NewFromInt(100),
		MaxVipPricePercent: decimal.NewFromInt(500),
	}
}

func inRange(v, lo, hi decimal.Decimal) bool {
	return v.GreaterThanOrEqual(lo) && v.LessThanOrEqual(hi)
}

// Validate 校验规则。sequenceLen 为目录长度，未冻结目录时传等级的任务数量。
func (b Bounds) Validate(rule ComboRule, sequenceLen int) error {
	if rule.Position < 1 || rule.Position > sequenceLen {
		return newValidation("position", "位置必须在 1 到 %d 之间", sequenceLen)
	}
	if !inRange(rule.Multiplier, b.MinMultiplier, b.MaxMultiplier) {
		return newValidation("multiplier", "倍数必须在 %s 到 %s 之间", b.MinMultiplier, b.MaxMultiplier)
	}

	switch rule.Mode {
	case ModeDeposit:
		if !inRange(rule.DepositPercent, b.MinDepositPercent, b.MaxDepositPercent) {
			return newValidation("deposit_percent", "押金比例必须在 %s%% 到 %s%% 之间", b.MinDepositPercent, b.MaxDepositPercent)
		}
	case ModePricePercentage:
		if !inRange(rule.VipPricePercent, b.MinVipPricePercent, b.MaxVipPricePercent) {
			return newValidation("vip_price_percent", "价格比例必须在 %s%% 到 %s%% 之间", b.MinVipPricePercent, b.MaxVipPricePercent)
		}
	default:
		return newValidation("mode", "不支持的连单模式: %s", rule.Mode)
	}
	return nil
}

// ValidateIn 在具体目录上校验：除取值范围外，位置必须是某次购买实际会用到的任务序号
func (b Bounds) ValidateIn(rule ComboRule, catalog Catalog) error {
	if err := b.Validate(rule, catalog.Len()); err != nil {
		return err
	}
	if !catalog.Reachable(rule.Position) {
		return newValidation("position", "第 %d 个任务会被数量倍数商品跳过，可用位置: %v", rule.Position, catalog.TaskNumbers())
	}
	return nil
}

// ValidateSnapshot 未启用的快照不校验
func (b Bounds) ValidateSnapshot(s Snapshot, catalog Catalog) error {
	if !s.Enabled {
		return nil
	}
	return b.ValidateIn(s.Rule(), catalog)
}
