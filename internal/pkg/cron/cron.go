package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/qs3c/vip_task_server/config"
)

const defaultPendingTTL = 72 * time.Hour

// PendingExpirer 拒绝超时未审批的申请
type PendingExpirer interface {
	ExpirePending(ctx context.Context, ttl time.Duration) (int, error)
}

type Service struct {
	expirer PendingExpirer
	spec    string
	ttl     time.Duration
	timeout time.Duration

	scheduler *cron.Cron
	mu        sync.Mutex // 同一时刻只跑一轮
}

func NewService(expirer PendingExpirer, cfg config.AccessConfig) *Service {
	ttl := cfg.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	spec := cfg.ExpireCron
	if spec == "" {
		spec = "0 */10 * * * *"
	}
	return &Service{
		expirer:   expirer,
		spec:      spec,
		ttl:       ttl,
		timeout:   5 * time.Minute,
		scheduler: cron.New(cron.WithSeconds()),
	}
}

// Start 注册并启动定时任务
func (s *Service) Start() error {
	if _, err := s.scheduler.AddFunc(s.spec, s.expirePending); err != nil {
		return fmt.Errorf("注册过期任务失败: %w", err)
	}
	s.scheduler.Start()
	slog.Info("定时任务已启动", "job", "expire_pending", "spec", s.spec, "ttl", s.ttl)
	return nil
}

// Stop 停止调度并等待正在运行的任务结束
func (s *Service) Stop(timeout time.Duration) {
	ctx := s.scheduler.Stop()
	select {
	case <-ctx.Done():
		slog.Info("定时任务已停止")
	case <-time.After(timeout):
		slog.Warn("定时任务停止超时")
	}
}

// RunNow 立即执行一轮过期处理
func (s *Service) RunNow(ctx context.Context) (int, error) {
	if s.expirer == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expirer.ExpirePending(ctx, s.ttl)
}

func (s *Service) expirePending() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.RunNow(ctx)
	if err != nil {
		slog.Error("过期申请处理失败", "expired", n, "error", err)
		return
	}
	if n > 0 {
		slog.Info("过期申请已拒绝", "expired", n, "duration", time.Since(start))
	}
}
