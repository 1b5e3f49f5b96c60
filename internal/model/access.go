package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccessStatusPending   = "pending"
	AccessStatusApproved  = "approved"
	AccessStatusRejected  = "rejected"
	AccessStatusCompleted = "completed"
)

// VipAccess 用户在某个 (level, category) 上的一次权限实例。
// 连单快照字段在审批时写入，之后不再修改。
type VipAccess struct {
	ID                  int64           `gorm:"primaryKey" json:"id"`
	UserID              int64           `gorm:"not null;index" json:"user_id"`
	Level               int             `gorm:"not null" json:"level"`
	Category            string          `gorm:"size:50;not null" json:"category"`
	Status              string          `gorm:"size:20;not null;index" json:"status"` // pending, approved, rejected, completed
	Price               decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"price"`
	HeldAmount          decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"held_amount"`
	ActiveKey           *string         `gorm:"size:100;uniqueIndex" json:"-"`
	ComboEnabled        bool            `json:"combo_enabled"`
	ComboPosition       int             `json:"combo_position"`
	ComboMultiplier     decimal.Decimal `gorm:"type:decimal(12,4)" json:"combo_multiplier"`
	ComboDepositPercent decimal.Decimal `gorm:"type:decimal(12,4)" json:"combo_deposit_percent"`
	ReviewedBy          *int64          `json:"reviewed_by,omitempty"`
	ReviewNote          string          `gorm:"size:500" json:"review_note,omitempty"`
	RequestedAt         time.Time       `gorm:"index" json:"requested_at"`
	ApprovedAt          *time.Time      `json:"approved_at,omitempty"`
	RejectedAt          *time.Time      `json:"rejected_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (VipAccess) TableName() string {
	return "vip_accesses"
}

// ActiveKeyFor pending/approved 实例共用的唯一键，终态时置空
func ActiveKeyFor(userID int64, level int, category string) *string {
	k := fmt.Sprintf("%d:%d:%s", userID, level, category)
	return &k
}

// IsActive 是否处于 pending 或 approved
func (a *VipAccess) IsActive() bool {
	return a.Status == AccessStatusPending || a.Status == AccessStatusApproved
}

// AccessCatalogItem 审批时冻结的目录条目
type AccessCatalogItem struct {
	ID                   int64           `gorm:"primaryKey" json:"id"`
	AccessID             int64           `gorm:"not null;uniqueIndex:uk_access_position,priority:1" json:"access_id"`
	Position             int             `gorm:"not null;uniqueIndex:uk_access_position,priority:2" json:"position"`
	ProductID            int64           `gorm:"not null" json:"product_id"`
	Name                 string          `gorm:"size:200;not null" json:"name"`
	Price                decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"price"`
	CommissionPercentage decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"commission_percentage"`
	QuantityMultiplier   int             `gorm:"not null" json:"quantity_multiplier"`
	CreatedAt            time.Time       `json:"created_at"`
}

func (AccessCatalogItem) TableName() string {
	return "access_catalog_items"
}

// CategoryGrant 审批通过后用户可见的分类
type CategoryGrant struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:uk_user_category,priority:1" json:"user_id"`
	Category  string    `gorm:"size:50;not null;uniqueIndex:uk_user_category,priority:2" json:"category"`
	AccessID  int64     `gorm:"not null" json:"access_id"`
	GrantedAt time.Time `json:"granted_at"`
}

func (CategoryGrant) TableName() string {
	return "category_grants"
}
