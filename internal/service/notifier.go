package service

import (
	"context"
	"log/slog"

	"github.com/qs3c/vip_task_server/internal/metrics"
	"github.com/qs3c/vip_task_server/internal/pkg/events"
	"github.com/qs3c/vip_task_server/internal/pkg/pubsub"
)

// ProgressPublisher 进度推送
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, msg *pubsub.ProgressMessage) error
}

// Notifier 事务提交后发布领域事件和进度。发布失败只记日志，不影响业务结果。
type Notifier struct {
	events   events.Publisher
	progress ProgressPublisher
	metrics  *metrics.TaskMetrics
}

func NewNotifier(eventPublisher events.Publisher, progress ProgressPublisher) *Notifier {
	return &Notifier{
		events:   eventPublisher,
		progress: progress,
		metrics:  metrics.Get(),
	}
}

func (n *Notifier) Emit(ctx context.Context, evt *events.Event) {
	if n == nil || n.events == nil {
		return
	}
	if err := n.events.Publish(ctx, evt); err != nil {
		n.metrics.EventPublishTotal.WithLabelValues("queue", "failed").Inc()
		slog.Error("事件入队失败", "type", evt.Type, "user_id", evt.UserID, "access_id", evt.AccessID, "error", err)
		return
	}
	n.metrics.EventPublishTotal.WithLabelValues("queue", "success").Inc()
}

func (n *Notifier) Progress(ctx context.Context, msg *pubsub.ProgressMessage) {
	if n == nil || n.progress == nil {
		return
	}
	if err := n.progress.PublishProgress(ctx, msg); err != nil {
		slog.Warn("进度推送失败", "user_id", msg.UserID, "access_id", msg.AccessID, "error", err)
	}
}
