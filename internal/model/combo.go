package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ComboOverride 管理员针对某个权限实例某个任务序号设置的连单
type ComboOverride struct {
	ID              int64           `gorm:"primaryKey" json:"id"`
	AccessID        int64           `gorm:"not null;index" json:"access_id"`
	Position        int             `gorm:"not null" json:"position"`
	Mode            string          `gorm:"size:20;not null" json:"mode"` // deposit, price_percentage
	Multiplier      decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"multiplier"`
	DepositPercent  decimal.Decimal `gorm:"type:decimal(12,4)" json:"deposit_percent"`
	VipPricePercent decimal.Decimal `gorm:"type:decimal(12,4)" json:"vip_price_percent"`
	IsActive        bool            `json:"is_active"`
	ActiveSlot      *string         `gorm:"size:64;uniqueIndex" json:"-"`
	Completed       bool            `json:"completed"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedBy       int64           `json:"created_by"`
	Notes           string          `gorm:"size:500" json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (ComboOverride) TableName() string {
	return "combo_overrides"
}

// SyncActiveSlot 激活且未完成时占用 (access, position) 唯一槽位
func (c *ComboOverride) SyncActiveSlot() {
	if c.IsActive && !c.Completed {
		slot := fmt.Sprintf("%d:%d", c.AccessID, c.Position)
		c.ActiveSlot = &slot
		return
	}
	c.ActiveSlot = nil
}
