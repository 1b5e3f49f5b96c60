package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qs3c/vip_task_server/internal/metrics"
	"github.com/qs3c/vip_task_server/internal/pkg/lock"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
	"github.com/qs3c/vip_task_server/internal/progression"
)

// Executor 所有影响余额的写操作都经由这里：先取用户锁，再开事务
type Executor struct {
	txm     *txn.Manager
	locker  lock.Locker
	metrics *metrics.TaskMetrics
}

// NewExecutor locker 为 nil 时只依赖数据库行锁
func NewExecutor(txm *txn.Manager, locker lock.Locker) *Executor {
	return &Executor{
		txm:     txm,
		locker:  locker,
		metrics: metrics.Get(),
	}
}

// RunForUser 持有 userID 的锁执行事务。锁竞争和事务序列化失败统一包装为 ErrConcurrencyConflict。
func (e *Executor) RunForUser(ctx context.Context, userID int64, fn func(ctx context.Context) error) error {
	if e.locker != nil {
		start := time.Now()
		unlock, err := e.locker.Lock(ctx, lock.UserKey(userID))
		e.metrics.LockAcquireDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			e.metrics.LockAcquireTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("%w: %v", progression.ErrConcurrencyConflict, err)
		}
		e.metrics.LockAcquireTotal.WithLabelValues("success").Inc()
		defer unlock()
	}

	err := e.txm.Run(ctx, fn)
	if txn.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", progression.ErrConcurrencyConflict, err)
	}
	return err
}

// Retry 遇到并发冲突时重试 fn，最多额外执行 maxRetries 次
func (e *Executor) Retry(ctx context.Context, maxRetries int, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, progression.ErrConcurrencyConflict) || attempt >= maxRetries {
			return err
		}
		e.metrics.RetryTotal.Inc()
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * 20 * time.Millisecond):
		}
	}
}
