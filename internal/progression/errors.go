package progression

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoActiveAccess 用户在该分类/等级下没有进行中的已批准权限，前端视为“已完成”
	ErrNoActiveAccess = errors.New("没有进行中的VIP权限")
	// ErrConcurrencyConflict 锁竞争或事务序列化失败，可安全重试
	ErrConcurrencyConflict = errors.New("并发冲突，请重试")
)

// InsufficientFundsError 余额不足，携带所需金额与当前余额
type InsufficientFundsError struct {
	Required decimal.Decimal
	Current  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("余额不足: 需要 %s, 当前 %s", e.Required.StringFixed(2), e.Current.StringFixed(2))
}

// Shortfall 差额
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Current)
}

// ValidationError 参数不合法，Field 为出错字段
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigurationError 配置数据缺失或不一致，需要运营介入
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "配置错误: " + e.Message
}

func newValidation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsInsufficientFunds 提取余额不足错误
func AsInsufficientFunds(err error) (*InsufficientFundsError, bool) {
	var e *InsufficientFundsError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// AsValidation 提取参数错误
func AsValidation(err error) (*ValidationError, bool) {
	var e *ValidationError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsConfiguration 判断是否为配置错误
func IsConfiguration(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}
