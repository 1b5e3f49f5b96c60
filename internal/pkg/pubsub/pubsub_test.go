package pubsub

import (
	"context"
	"encoding/json"
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
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client
}

func TestProgressMessage_JSON(t *testing.T) {
	msg := &ProgressMessage{
		Type:       MessageTypeTaskProgress,
		UserID:     1,
		AccessID:   2,
		Status:     StatusPurchased,
		TaskNumber: 9,
		TotalTasks: 25,
		Commission: "14.40",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "user_id")
	assert.Contains(t, raw, "access_id")
	assert.Equal(t, "14.40", raw["commission"])
	assert.NotContains(t, raw, "combo_hit")
}

func TestPublisher_Subscriber(t *testing.T) {
	client := setupTestRedis(t)
	pub := NewPublisher(client, "")
	sub := NewSubscriber(client, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *ProgressMessage, 1)
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = sub.Subscribe(ctx, func(m *ProgressMessage) { received <- m })
	}()
	<-ready

	// 订阅建立需要一点时间
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := client.PubSubNumSub(ctx, DefaultChannel).Result()
		require.NoError(t, err)
		if n[DefaultChannel] > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.NoError(t, pub.PublishProgress(ctx, &ProgressMessage{
		UserID:     7,
		AccessID:   3,
		Status:     StatusPurchased,
		TaskNumber: 5,
		TotalTasks: 20,
	}))

	select {
	case m := <-received:
		assert.Equal(t, MessageTypeTaskProgress, m.Type)
		assert.Equal(t, int64(7), m.UserID)
		assert.Equal(t, 25, m.Percent)
		assert.Equal(t, statusMessages[StatusPurchased], m.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress message")
	}
}

func TestPublishProgress_CapsPercent(t *testing.T) {
	client := setupTestRedis(t)
	pub := NewPublisher(client, "custom")

	msg := &ProgressMessage{Status: StatusCompleted, TaskNumber: 30, TotalTasks: 25}
	require.NoError(t, pub.PublishProgress(context.Background(), msg))
	assert.Equal(t, 100, msg.Percent)
}
