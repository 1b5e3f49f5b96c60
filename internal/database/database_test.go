package database

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/vip_task_server/config"
	"github.com/qs3c/vip_task_server/internal/repository"
)

func TestOpen_SQLiteAndSeed(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	repo := repository.NewVipRepository(db)
	ctx := context.Background()
	levels := []config.VIPLevelConfig{
		{Level: 1, Category: "electronics", ProductsCount: 25, CommissionPercentage: 15, Price: 800},
		{Level: 2, Category: "electronics", ProductsCount: 30, CommissionPercentage: 18, Price: 1500},
	}
	require.NoError(t, SeedLevels(ctx, repo, levels))

	// 再次同步只更新
	levels[0].Price = 900
	require.NoError(t, SeedLevels(ctx, repo, levels))

	all, err := repo.ListLevels(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	l, err := repo.GetLevel(ctx, 1, "electronics")
	require.NoError(t, err)
	assert.Equal(t, "900", l.Price.String())
	assert.Equal(t, 25, l.ProductsCount)

	err = SeedLevels(ctx, repo, []config.VIPLevelConfig{{Level: 3, Category: "x"}})
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewRedis(&config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = NewRedis(&config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}
