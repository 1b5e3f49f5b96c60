package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), UserKey(1))
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	exerciseMutualExclusion(t, NewLocalLocker())
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.True(t, errors.Is(err, ErrNotAcquired))
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	u1, err := l.Lock(context.Background(), UserKey(1))
	require.NoError(t, err)
	u2, err := l.Lock(context.Background(), UserKey(2))
	require.NoError(t, err)
	u1()
	u1()
	u2()
	assert.Empty(t, l.slots)
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	client := setupTestRedis(t)
	exerciseMutualExclusion(t, NewRedisLocker(client, 2*time.Second, 200))
}

func TestRedisLocker_NotAcquired(t *testing.T) {
	client := setupTestRedis(t)
	l := NewRedisLocker(client, 5*time.Second, 1)

	unlock, err := l.Lock(context.Background(), UserKey(9))
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock(context.Background(), UserKey(9))
	assert.True(t, errors.Is(err, ErrNotAcquired))
}
