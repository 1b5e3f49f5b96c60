package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultChannel = "vip:progress"

	MessageTypeTaskProgress = "task_progress"
)

// 任务状态
const (
	StatusPurchased = "purchased"
	StatusCompleted = "completed"
)

var statusMessages = map[string]string{
	StatusPurchased: "任务完成，佣金已到账",
	StatusCompleted: "全部任务已完成",
}

// ProgressMessage 任务进度消息，金额为两位小数字符串
type ProgressMessage struct {
	Type            string `json:"type"`
	UserID          int64  `json:"user_id"`
	AccessID        int64  `json:"access_id"`
	Status          string `json:"status"`
	TaskNumber      int    `json:"task_number"`
	TotalTasks      int    `json:"total_tasks"`
	Percent         int    `json:"percent"`
	Commission      string `json:"commission,omitempty"`
	TotalCommission string `json:"total_commission,omitempty"`
	ComboHit        bool   `json:"combo_hit,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher 创建发布者，channel 为空时使用默认频道
func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = MessageTypeTaskProgress

	// 自动填充百分比和消息
	if msg.Percent == 0 && msg.TotalTasks > 0 {
		done := msg.TaskNumber
		if done > msg.TotalTasks {
			done = msg.TotalTasks
		}
		msg.Percent = done * 100 / msg.TotalTasks
	}
	if msg.Message == "" {
		msg.Message = statusMessages[msg.Status]
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, p.channel, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client  *redis.Client
	channel string
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{client: client, channel: channel}
}

// Subscribe 订阅进度消息，阻塞直到 ctx 取消
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// 等待订阅确认，避免丢失订阅建立前发布的消息
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}
