package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TxTypeAccessHold   = "access_hold"
	TxTypeAccessDebit  = "access_debit"
	TxTypeAccessRefund = "access_refund"
	TxTypeCommission   = "commission"
	TxTypeAdminCredit  = "admin_credit"
)

// BalanceTransaction 余额流水，Amount 带符号
type BalanceTransaction struct {
	ID           int64           `gorm:"primaryKey" json:"id"`
	UserID       int64           `gorm:"not null;index" json:"user_id"`
	Type         string          `gorm:"size:30;not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"balance_after"`
	AccessID     *int64          `gorm:"index" json:"access_id,omitempty"`
	Reference    string          `gorm:"size:64;uniqueIndex" json:"reference"`
	OperatorID   *int64          `json:"operator_id,omitempty"`
	Note         string          `gorm:"size:500" json:"note,omitempty"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
}

func (BalanceTransaction) TableName() string {
	return "balance_transactions"
}
