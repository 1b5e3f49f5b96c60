// Package events 定义领域事件，并负责把 Redis 队列中的事件转发到 Kafka。
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeAccessRequested = "access.requested"
	TypeAccessApproved  = "access.approved"
	TypeAccessRejected  = "access.rejected"
	TypeAccessExpired   = "access.expired"
	TypeTaskPurchased   = "task.purchased"
	TypeTaskCompleted   = "task.completed"
)

// Event 领域事件，金额以字符串保存避免精度丢失
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	UserID     int64             `json:"user_id"`
	AccessID   int64             `json:"access_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data,omitempty"`
}

// New 生成带 ID 和时间戳的事件
func New(eventType string, userID, accessID int64, data map[string]string) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		AccessID:   accessID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
}

// Source 事件来源，超时无数据时返回 nil, nil
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*Event, error)
}
