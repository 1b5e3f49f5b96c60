package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VipLevel 等级定义，(level, category) 唯一
type VipLevel struct {
	ID                   int64           `gorm:"primaryKey" json:"id"`
	Level                int             `gorm:"not null;uniqueIndex:uk_level_category,priority:1" json:"level"`
	Category             string          `gorm:"size:50;not null;uniqueIndex:uk_level_category,priority:2" json:"category"`
	ProductsCount        int             `gorm:"not null" json:"products_count"`
	CommissionPercentage decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"commission_percentage"`
	Price                decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"price"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (VipLevel) TableName() string {
	return "vip_levels"
}

type Product struct {
	ID                   int64           `gorm:"primaryKey" json:"id"`
	Category             string          `gorm:"size:50;not null;index" json:"category"`
	Name                 string          `gorm:"size:200;not null" json:"name"`
	Price                decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"price"`
	CommissionPercentage decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"commission_percentage"`
	QuantityMultiplier   int             `gorm:"not null" json:"quantity_multiplier"`
	IsActive             bool            `gorm:"index" json:"is_active"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
