package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/vip_task_server/config"
	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/model/dto"
	"github.com/qs3c/vip_task_server/internal/pkg/lock"
	"github.com/qs3c/vip_task_server/internal/pkg/txn"
	"github.com/qs3c/vip_task_server/internal/repository"
	"github.com/qs3c/vip_task_server/internal/testutil"
)

type testServices struct {
	db      *gorm.DB
	balance *BalanceService
	catalog *CatalogService
	access  *AccessService
	combo   *ComboService
	task    *TaskService
}

func setupServices(t *testing.T) (*testServices, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	userRepo := repository.NewUserRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	vipRepo := repository.NewVipRepository(db)
	accessRepo := repository.NewAccessRepository(db)
	comboRepo := repository.NewComboRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	cfg := &config.Config{Task: config.TaskConfig{MaxRetries: 3}}
	exec := NewExecutor(txn.NewManager(db), lock.NewLocalLocker())

	balance := NewBalanceService(userRepo, ledgerRepo, exec)
	catalog := NewCatalogService(vipRepo, accessRepo, comboRepo, purchaseRepo)

	s := &testServices{
		db:      db,
		balance: balance,
		catalog: catalog,
		access:  NewAccessService(accessRepo, userRepo, vipRepo, balance, catalog, exec, nil, cfg),
		combo:   NewComboService(comboRepo, accessRepo, vipRepo, catalog, exec, cfg),
		task:    NewTaskService(accessRepo, comboRepo, purchaseRepo, balance, catalog, exec, nil, cfg),
	}

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return s, cleanup
}

// approvedAccess 走完申请和审批流程
func (s *testServices) approvedAccess(t *testing.T, userID int64, level int, category string, approve *dto.ApproveAccessRequest) *model.VipAccess {
	t.Helper()

	ctx := context.Background()
	a, err := s.access.Request(ctx, userID, &dto.RequestAccessRequest{Level: level, Category: category})
	require.NoError(t, err)

	if approve == nil {
		approve = &dto.ApproveAccessRequest{}
	}
	a, err = s.access.Approve(ctx, 1, a.ID, approve)
	require.NoError(t, err)
	return a
}

// purchaseN 连续购买 n 次，要求每次都成功
func (s *testServices) purchaseN(t *testing.T, userID, accessID int64, n int) *PurchaseOutcome {
	t.Helper()

	var out *PurchaseOutcome
	for i := 0; i < n; i++ {
		var err error
		out, err = s.task.AttemptPurchase(context.Background(), userID, accessID)
		require.NoError(t, err, "purchase %d", i+1)
	}
	return out
}

func (s *testServices) reloadUser(t *testing.T, id int64) *model.User {
	t.Helper()
	var u model.User
	require.NoError(t, s.db.First(&u, id).Error)
	return &u
}

func (s *testServices) reloadAccess(t *testing.T, id int64) *model.VipAccess {
	t.Helper()
	var a model.VipAccess
	require.NoError(t, s.db.First(&a, id).Error)
	return &a
}

func (s *testServices) ledger(t *testing.T, userID int64, txType string) []model.BalanceTransaction {
	t.Helper()
	var entries []model.BalanceTransaction
	require.NoError(t, s.db.Where("user_id = ? AND type = ?", userID, txType).Order("id ASC").Find(&entries).Error)
	return entries
}
