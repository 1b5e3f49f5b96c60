package progression

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LevelTerms 权限实例对应的等级条款
type LevelTerms struct {
	AccessPrice       decimal.Decimal // 获得权限时支付的价格
	CommissionPercent decimal.Decimal // 等级佣金比例
	TaskCount         int             // 等级任务数
}

// Quote 一次购买的报价。Required 只用于余额校验，不扣款。
type Quote struct {
	TaskNumber     int
	Entry          CatalogEntry
	Rule           *ComboRule
	Required       decimal.Decimal
	BaseCommission decimal.Decimal
	Commission     decimal.Decimal
	ComboBonus     decimal.Decimal
	Units          int
}

// IsCombo 是否命中连单
func (q Quote) IsCombo() bool {
	return q.Rule != nil
}

// Check 余额不足时返回 InsufficientFundsError
func (q Quote) Check(balance decimal.Decimal) error {
	if balance.LessThan(q.Required) {
		return &InsufficientFundsError{Required: q.Required, Current: balance}
	}
	return nil
}

// BaseCommission 等级佣金均摊到每个任务
func (t LevelTerms) BaseCommission() (decimal.Decimal, error) {
	if t.TaskCount <= 0 {
		return decimal.Zero, &ConfigurationError{Message: "等级任务数量必须大于 0"}
	}
	return t.AccessPrice.Mul(t.CommissionPercent).Div(hundred).Div(decimal.NewFromInt(int64(t.TaskCount))), nil
}

// QuoteStep 计算 entry 在任务序号 taskNumber 上的所需余额和佣金。rule 为 nil 表示普通任务。
func QuoteStep(taskNumber int, entry CatalogEntry, rule *ComboRule, terms LevelTerms) (Quote, error) {
	q := Quote{
		TaskNumber: taskNumber,
		Entry:      entry,
		Rule:       rule,
		Units:      entry.Units(),
		ComboBonus: decimal.Zero,
	}

	if rule == nil {
		q.Required = entry.Price
		q.Commission = entry.Price.Mul(entry.CommissionPercent).Div(hundred)
		q.BaseCommission = q.Commission
		return q, nil
	}

	base, err := terms.BaseCommission()
	if err != nil {
		return Quote{}, err
	}
	q.BaseCommission = base
	q.Commission = base.Mul(rule.Multiplier)
	q.ComboBonus = q.Commission.Sub(base)

	switch rule.Mode {
	case ModeDeposit:
		q.Required = terms.AccessPrice.Mul(rule.DepositPercent).Div(hundred)
	case ModePricePercentage:
		q.Required = terms.AccessPrice.Mul(rule.VipPricePercent).Div(hundred).Mul(rule.Multiplier)
	default:
		return Quote{}, &ConfigurationError{Message: "不支持的连单模式: " + string(rule.Mode)}
	}
	return q, nil
}
