package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComboRequest 创建或更新逐位置连单
type ComboRequest struct {
	Position        int             `json:"position" binding:"required,min=1"`
	Mode            string          `json:"mode" binding:"required,oneof=deposit price_percentage"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	DepositPercent  decimal.Decimal `json:"deposit_percent"`
	VipPricePercent decimal.Decimal `json:"vip_price_percent"`
	IsActive        *bool           `json:"is_active,omitempty"`
	Notes           string          `json:"notes" binding:"max=500"`
}

// ComboResponse 连单配置
type ComboResponse struct {
	ID              int64      `json:"id"`
	AccessID        int64      `json:"access_id"`
	Position        int        `json:"position"`
	Mode            string     `json:"mode"`
	Multiplier      string     `json:"multiplier"`
	DepositPercent  string     `json:"deposit_percent"`
	VipPricePercent string     `json:"vip_price_percent"`
	IsActive        bool       `json:"is_active"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
