package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	Username  string          `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Role      string          `gorm:"size:20;default:user" json:"role"`
	Balance   decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
