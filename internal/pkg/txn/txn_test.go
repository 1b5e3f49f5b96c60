package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type note struct {
	ID   int64 `gorm:"primaryKey"`
	Text string
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&note{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestManager_Run_Commit(t *testing.T) {
	db := setupDB(t)
	m := NewManager(db)

	err := m.Run(context.Background(), func(ctx context.Context) error {
		assert.True(t, InTx(ctx))
		return DB(ctx, db).Create(&note{Text: "a"}).Error
	})
	require.NoError(t, err)

	var count int64
	db.Model(&note{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestManager_Run_Rollback(t *testing.T) {
	db := setupDB(t)
	m := NewManager(db)
	boom := errors.New("boom")

	err := m.Run(context.Background(), func(ctx context.Context) error {
		if err := DB(ctx, db).Create(&note{Text: "a"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	db.Model(&note{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestManager_Run_Nested(t *testing.T) {
	db := setupDB(t)
	m := NewManager(db)

	err := m.Run(context.Background(), func(ctx context.Context) error {
		outer := DB(ctx, db)
		return m.Run(ctx, func(inner context.Context) error {
			assert.Same(t, outer, DB(inner, db))
			return nil
		})
	})
	require.NoError(t, err)
	assert.False(t, InTx(context.Background()))
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, IsSerializationFailure(&mysql.MySQLError{Number: 1213}))
	assert.True(t, IsSerializationFailure(&mysql.MySQLError{Number: 1205}))
	assert.False(t, IsSerializationFailure(&mysql.MySQLError{Number: 1062}))
	assert.True(t, IsSerializationFailure(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, IsSerializationFailure(errors.New("record not found")))
	assert.False(t, IsSerializationFailure(nil))
}
