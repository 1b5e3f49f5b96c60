package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductPurchase 每个 (access, product) 一条，重复购买只累加数量
type ProductPurchase struct {
	ID               int64           `gorm:"primaryKey" json:"id"`
	AccessID         int64           `gorm:"not null;uniqueIndex:uk_access_product,priority:1" json:"access_id"`
	ProductID        int64           `gorm:"not null;uniqueIndex:uk_access_product,priority:2" json:"product_id"`
	UserID           int64           `gorm:"not null;index" json:"user_id"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	CommissionEarned decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"commission_earned"`
	Completed        bool            `json:"completed"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (ProductPurchase) TableName() string {
	return "product_purchases"
}
