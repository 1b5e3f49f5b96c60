package events

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Forwarder 从 Source 取事件写入 Sink，失败按退避重试，超过次数后丢弃并记录
type Forwarder struct {
	source      Source
	sink        Publisher
	logger      *slog.Logger
	popTimeout  time.Duration
	maxAttempts int
	backoff     time.Duration
	onResult    func(ok bool)
}

type ForwarderOption func(*Forwarder)

// WithBackoff 首次重试等待时间，之后翻倍
func WithBackoff(d time.Duration) ForwarderOption {
	return func(f *Forwarder) { f.backoff = d }
}

// WithMaxAttempts 单个事件最多投递次数
func WithMaxAttempts(n int) ForwarderOption {
	return func(f *Forwarder) { f.maxAttempts = n }
}

// WithResultHook 每个事件投递结束后回调
func WithResultHook(fn func(ok bool)) ForwarderOption {
	return func(f *Forwarder) { f.onResult = fn }
}

func NewForwarder(source Source, sink Publisher, logger *slog.Logger, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		source:      source,
		sink:        sink,
		logger:      logger,
		popTimeout:  5 * time.Second,
		maxAttempts: 5,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run 阻塞直到 ctx 取消
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		evt, err := f.source.Pop(ctx, f.popTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Error("读取事件队列失败", "error", err)
			if !sleep(ctx, f.backoff) {
				return ctx.Err()
			}
			continue
		}
		if evt == nil {
			continue
		}

		ok := f.deliver(ctx, evt)
		if f.onResult != nil {
			f.onResult(ok)
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, evt *Event) bool {
	wait := f.backoff
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		err := f.sink.Publish(ctx, evt)
		if err == nil {
			f.logger.Debug("事件已转发", "event_id", evt.ID, "type", evt.Type)
			return true
		}
		f.logger.Warn("事件转发失败", "event_id", evt.ID, "type", evt.Type, "attempt", attempt, "error", err)
		if attempt == f.maxAttempts || !sleep(ctx, wait) {
			break
		}
		wait *= 2
	}
	f.logger.Error("事件转发放弃", "event_id", evt.ID, "type", evt.Type, "user_id", evt.UserID, "access_id", evt.AccessID)
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
