package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestAccessRequest 申请VIP权限
type RequestAccessRequest struct {
	Level    int    `json:"level" binding:"required,min=1"`
	Category string `json:"category" binding:"required,max=50"`
}

// ApproveAccessRequest 审批通过，可选写入连单快照
type ApproveAccessRequest struct {
	ComboEnabled        bool            `json:"combo_enabled"`
	ComboPosition       int             `json:"combo_position"`
	ComboMultiplier     decimal.Decimal `json:"combo_multiplier"`
	ComboDepositPercent decimal.Decimal `json:"combo_deposit_percent"`
	Note                string          `json:"note" binding:"max=500"`
}

// RejectAccessRequest 拒绝申请，备注必填
type RejectAccessRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// AccessResponse 权限实例
type AccessResponse struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	Level       int            `json:"level"`
	Category    string         `json:"category"`
	Status      string         `json:"status"`
	Price       string         `json:"price"`
	HeldAmount  string         `json:"held_amount"`
	Combo       *ComboSnapshot `json:"combo,omitempty"`
	ReviewNote  string         `json:"review_note,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
	ApprovedAt  *time.Time     `json:"approved_at,omitempty"`
	RejectedAt  *time.Time     `json:"rejected_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ComboSnapshot 审批时冻结的连单
type ComboSnapshot struct {
	Position       int    `json:"position"`
	Multiplier     string `json:"multiplier"`
	DepositPercent string `json:"deposit_percent"`
}
