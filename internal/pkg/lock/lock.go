// Package lock 提供按用户串行化余额变更的互斥锁。
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// ErrNotAcquired 获取锁失败
var ErrNotAcquired = errors.New("获取锁失败")

// Unlock 释放锁，可重复调用
type Unlock func()

// Locker 按 key 加锁
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// UserKey 用户级锁，所有影响该用户余额的写操作共用
func UserKey(userID int64) string {
	return fmt.Sprintf("vip:lock:user:%d", userID)
}

// RedisLocker 基于 redsync 的分布式锁，多实例部署时使用
type RedisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	tries  int
}

func NewRedisLocker(client *redis.Client, expiry time.Duration, tries int) *RedisLocker {
	if expiry <= 0 {
		expiry = 5 * time.Second
	}
	if tries <= 0 {
		tries = 32
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		tries:  tries,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(l.expiry), redsync.WithTries(l.tries))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if ok, err := mutex.UnlockContext(context.Background()); !ok || err != nil {
				slog.Warn("释放锁失败", "key", key, "error", err)
			}
		})
	}, nil
}

type slot struct {
	ch   chan struct{}
	refs int
}

// LocalLocker 进程内按 key 的互斥锁，单实例或测试时使用
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *LocalLocker) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
