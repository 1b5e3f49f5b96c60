package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/testutil"
)

func TestBalanceService_Credit(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, s.db, testutil.WithBalance("10"))

	entry, err := s.balance.Credit(ctx, 3, user.ID, testutil.Dec("25.5"), "充值")
	require.NoError(t, err)
	assert.Equal(t, model.TxTypeAdminCredit, entry.Type)
	assertAmount(t, "35.5", entry.BalanceAfter)
	require.NotNil(t, entry.OperatorID)
	assert.Equal(t, int64(3), *entry.OperatorID)

	balance, err := s.balance.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assertAmount(t, "35.5", balance)

	list, total, err := s.balance.ListTransactions(ctx, user.ID, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}

func TestBalanceService_Credit_Errors(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, s.db)

	_, err := s.balance.Credit(ctx, 1, user.ID, testutil.Dec("0"), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = s.balance.Credit(ctx, 1, user.ID, testutil.Dec("-5"), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = s.balance.Credit(ctx, 1, 99999, testutil.Dec("5"), "")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.balance.GetBalance(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
