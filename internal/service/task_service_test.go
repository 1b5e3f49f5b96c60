package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/model/dto"
	"github.com/qs3c/vip_task_server/internal/progression"
	"github.com/qs3c/vip_task_server/internal/testutil"
)

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, testutil.Dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestTaskService_AttemptPurchase_RegularSequence(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	testutil.TestLevel(t, s.db, 1, "electronics", 3, "15", "100")
	testutil.TestProducts(t, s.db, "electronics", "10", "20", "30")
	user := testutil.TestUser(t, s.db, testutil.WithBalance("150"))

	access := s.approvedAccess(t, user.ID, 1, "electronics", nil)
	assertAmount(t, "50", s.reloadUser(t, user.ID).Balance)

	wants := []string{"1.5", "3", "4.5"}
	for i, want := range wants {
		out, err := s.task.AttemptPurchase(ctx, user.ID, access.ID)
		require.NoError(t, err)
		require.NotNil(t, out.Quote)
		assert.Equal(t, i+1, out.Quote.TaskNumber)
		assert.False(t, out.Quote.IsCombo())
		assertAmount(t, want, out.Quote.Commission)
		assert.Equal(t, i+1, out.Progress.PurchasedCount)
		if i < len(wants)-1 {
			assert.Equal(t, PurchaseStatusPurchased, out.Status)
		} else {
			assert.Equal(t, PurchaseStatusCompleted, out.Status)
			assertAmount(t, "9", out.Progress.TotalCommission)
		}
	}

	assertAmount(t, "59", s.reloadUser(t, user.ID).Balance)
	assert.Len(t, s.ledger(t, user.ID, model.TxTypeCommission), 3)

	a := s.reloadAccess(t, access.ID)
	assert.Equal(t, model.AccessStatusCompleted, a.Status)
	assert.NotNil(t, a.CompletedAt)
	assert.Nil(t, a.ActiveKey)

	_, err := s.task.AttemptPurchase(ctx, user.ID, access.ID)
	assert.ErrorIs(t, err, progression.ErrNoActiveAccess)
	assertAmount(t, "59", s.reloadUser(t, user.ID).Balance)
}

func TestTaskService_AttemptPurchase_NoActiveAccess(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	owner := testutil.TestUser(t, s.db, testutil.WithBalance("100"))
	other := testutil.TestUser(t, s.db, testutil.WithBalance("100"))
	pending := testutil.TestAccess(t, s.db, owner.ID, 1, "books", model.AccessStatusPending)
	approved := testutil.TestAccess(t, s.db, owner.ID, 2, "books", model.AccessStatusApproved)

	tests := []struct {
		name     string
		userID   int64
		accessID int64
	}{
		{"missing access", owner.ID, 99999},
		{"pending access", owner.ID, pending.ID},
		{"someone else's access", other.ID, approved.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.task.AttemptPurchase(ctx, tt.userID, tt.accessID)
			assert.ErrorIs(t, err, progression.ErrNoActiveAccess)
		})
	}
}

func TestTaskService_AttemptPurchase_InsufficientFundsChangesNothing(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	testutil.TestLevel(t, s.db, 1, "electronics", 3, "15", "100")
	products := testutil.TestProducts(t, s.db, "electronics", "10", "20", "30")
	user := testutil.TestUser(t, s.db, testutil.WithBalance("5"))
	access := testutil.TestAccess(t, s.db, user.ID, 1, "electronics", model.AccessStatusApproved, testutil.WithAccessPrice("100"))
	testutil.TestCatalog(t, s.db, access.ID, products)

	_, err := s.task.AttemptPurchase(ctx, user.ID, access.ID)
	fe, ok := progression.AsInsufficientFunds(err)
	require.True(t, ok, "expected insufficient funds, got %v", err)
	assertAmount(t, "10", fe.Required)
	assertAmount(t, "5", fe.Current)
	assertAmount(t, "5", fe.Shortfall())

	assertAmount(t, "5", s.reloadUser(t, user.ID).Balance)
	assert.Empty(t, s.ledger(t, user.ID, model.TxTypeCommission))
	var count int64
	s.db.Model(&model.ProductPurchase{}).Where("access_id = ?", access.ID).Count(&count)
	assert.Zero(t, count)
}

func TestTaskService_AttemptPurchase_ComboDeposit(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	prices := make([]string, 25)
	for i := range prices {
		prices[i] = "1"
	}
	testutil.TestLevel(t, s.db, 3, "fashion", 25, "15", "800")
	products := testutil.TestProducts(t, s.db, "fashion", prices...)
	user := testutil.TestUser(t, s.db, testutil.WithBalance("500"))
	access := testutil.TestAccess(t, s.db, user.ID, 3, "fashion", model.AccessStatusApproved,
		testutil.WithAccessPrice("800"),
		testutil.WithComboSnapshot(9, "3", "50"),
	)
	testutil.TestCatalog(t, s.db, access.ID, products)

	s.purchaseN(t, user.ID, access.ID, 8)

	// 第 9 个任务需要 400 余额
	require.NoError(t, s.db.Model(&model.User{}).Where("id = ?", user.ID).Update("balance", testutil.Dec("399.99")).Error)
	_, err := s.task.AttemptPurchase(ctx, user.ID, access.ID)
	fe, ok := progression.AsInsufficientFunds(err)
	require.True(t, ok, "expected insufficient funds, got %v", err)
	assertAmount(t, "400", fe.Required)
	assertAmount(t, "0.01", fe.Shortfall())
	assertAmount(t, "399.99", s.reloadUser(t, user.ID).Balance)

	_, err = s.balance.Credit(ctx, 1, user.ID, testutil.Dec("0.01"), "补足")
	require.NoError(t, err)

	out, err := s.task.AttemptPurchase(ctx, user.ID, access.ID)
	require.NoError(t, err)
	require.True(t, out.Quote.IsCombo())
	assert.Equal(t, 9, out.Quote.TaskNumber)
	assert.Equal(t, progression.SourceSnapshot, out.Quote.Rule.Source)
	assertAmount(t, "400", out.Quote.Required)
	assertAmount(t, "14.4", out.Quote.Commission)
	assertAmount(t, "9.6", out.Quote.ComboBonus)
	assertAmount(t, "414.4", out.Balance)
	assertAmount(t, "414.4", s.reloadUser(t, user.ID).Balance)
}

func TestTaskService_AttemptPurchase_OverrideBeatsSnapshot(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	testutil.TestLevel(t, s.db, 1, "electronics", 3, "15", "100")
	testutil.TestProducts(t, s.db, "electronics", "10", "20", "30")
	user := testutil.TestUser(t, s.db, testutil.WithBalance("400"))
	access := s.approvedAccess(t, user.ID, 1, "electronics", &dto.ApproveAccessRequest{
		ComboEnabled:        true,
		ComboPosition:       2,
		ComboMultiplier:     testutil.Dec("3"),
		ComboDepositPercent: testutil.Dec("50"),
	})

	combo, err := s.combo.Create(ctx, 1, access.ID, &dto.ComboRequest{
		Position:        2,
		Mode:            string(progression.ModePricePercentage),
		Multiplier:      testutil.Dec("2"),
		VipPricePercent: testutil.Dec("100"),
	})
	require.NoError(t, err)

	s.purchaseN(t, user.ID, access.ID, 1)

	_, quote, err := s.task.State(ctx, user.ID, access.ID)
	require.NoError(t, err)
	require.NotNil(t, quote)
	require.True(t, quote.IsCombo())
	assert.Equal(t, progression.SourceOverride, quote.Rule.Source)
	assertAmount(t, "200", quote.Required)
	assertAmount(t, "10", quote.Commission)

	out, err := s.task.AttemptPurchase(ctx, user.ID, access.ID)
	require.NoError(t, err)
	assert.Equal(t, combo.ID, out.Quote.Rule.OverrideID)

	var stored model.ComboOverride
	require.NoError(t, s.db.First(&stored, combo.ID).Error)
	assert.True(t, stored.Completed)
	assert.NotNil(t, stored.CompletedAt)
	assert.Nil(t, stored.ActiveSlot)
}

func TestTaskService_AttemptPurchase_SnapshotWithoutOverride(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()

	testutil.TestLevel(t, s.db, 1, "electronics", 3, "15", "100")
	testutil.TestProducts(t, s.db, "electronics", "10", "20", "30")
	user := testutil.TestUser(t, s.db, testutil.WithBalance("400"))
	access := s.approvedAccess(t, user.ID, 1, "electronics", &dto.ApproveAccessRequest{
		ComboEnabled:        true,
		ComboPosition:       2,
		ComboMultiplier:     testutil.Dec("3"),
		ComboDepositPercent: testutil.Dec("50"),
	})

	out := s.purchaseN(t, user.ID, access.ID, 2)
	require.True(t, out.Quote.IsCombo())
	assert.Equal(t, progression.SourceSnapshot, out.Quote.Rule.Source)
	assertAmount(t, "50", out.Quote.Required)
	assertAmount(t, "15", out.Quote.Commission)
	assertAmount(t, "10", out.Quote.ComboBonus)
}

func TestTaskService_AttemptPurchase_QuantityMultiplier(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()

	testutil.TestLevel(t, s.db, 1, "bulk", 3, "15", "10")
	p := testutil.TestProduct(t, s.db, "bulk", "Pack", "10", "10", testutil.WithQuantityMultiplier(3))
	user := testutil.TestUser(t, s.db, testutil.WithBalance("100"))
	access := testutil.TestAccess(t, s.db, user.ID, 1, "bulk", model.AccessStatusApproved)
	testutil.TestCatalog(t, s.db, access.ID, []*model.Product{p})

	out := s.purchaseN(t, user.ID, access.ID, 1)
	assert.Equal(t, PurchaseStatusCompleted, out.Status)
	assert.Equal(t, 3, out.Progress.PurchasedCount)
	assert.Equal(t, 3, out.Quote.Units)
}

func TestTaskService_AttemptPurchase_ConcurrentSingleCredit(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	testutil.TestLevel(t, s.db, 1, "solo", 1, "15", "10")
	products := testutil.TestProducts(t, s.db, "solo", "20")
	user := testutil.TestUser(t, s.db, testutil.WithBalance("100"))
	access := testutil.TestAccess(t, s.db, user.ID, 1, "solo", model.AccessStatusApproved)
	testutil.TestCatalog(t, s.db, access.ID, products)

	const attempts = 5
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.task.AttemptPurchase(ctx, user.ID, access.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, progression.ErrNoActiveAccess)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, s.ledger(t, user.ID, model.TxTypeCommission), 1)
	assertAmount(t, "103", s.reloadUser(t, user.ID).Balance)
}

func TestTaskService_AttemptPurchase_SelfHealsCompletedProgress(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	testutil.TestLevel(t, s.db, 1, "electronics", 1, "15", "10")
	products := testutil.TestProducts(t, s.db, "electronics", "10")
	user := testutil.TestUser(t, s.db, testutil.WithBalance("100"))
	access := testutil.TestAccess(t, s.db, user.ID, 1, "electronics", model.AccessStatusApproved)
	testutil.TestCatalog(t, s.db, access.ID, products)
	require.NoError(t, s.db.Create(&model.ProductPurchase{
		AccessID: access.ID, ProductID: products[0].ID, UserID: user.ID, Quantity: 1, CommissionEarned: testutil.Dec("1.5"),
	}).Error)

	out, err := s.task.AttemptPurchase(ctx, user.ID, access.ID)
	require.NoError(t, err)
	assert.Equal(t, PurchaseStatusCompleted, out.Status)
	assert.Nil(t, out.Quote)
	assertAmount(t, "100", s.reloadUser(t, user.ID).Balance)
	assert.Equal(t, model.AccessStatusCompleted, s.reloadAccess(t, access.ID).Status)
}

func TestTaskService_AttemptPurchase_EmptyCatalogIsConfigurationError(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()

	testutil.TestLevel(t, s.db, 1, "empty", 3, "15", "10")
	user := testutil.TestUser(t, s.db, testutil.WithBalance("100"))
	access := testutil.TestAccess(t, s.db, user.ID, 1, "empty", model.AccessStatusApproved)

	_, err := s.task.AttemptPurchase(context.Background(), user.ID, access.ID)
	assert.True(t, progression.IsConfiguration(err))
}

func TestTaskService_State(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	testutil.TestLevel(t, s.db, 1, "electronics", 3, "15", "100")
	testutil.TestProducts(t, s.db, "electronics", "10", "20", "30")
	user := testutil.TestUser(t, s.db, testutil.WithBalance("150"))
	access := s.approvedAccess(t, user.ID, 1, "electronics", nil)
	s.purchaseN(t, user.ID, access.ID, 1)

	state, quote, err := s.task.State(ctx, user.ID, access.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, state.Catalog.Len())
	assert.Equal(t, 1, state.Progress.Position)
	require.NotNil(t, quote)
	assert.Equal(t, 2, quote.TaskNumber)
	assert.Equal(t, "Product 02", quote.Entry.Name)

	other := testutil.TestUser(t, s.db)
	_, _, err = s.task.State(ctx, other.ID, access.ID)
	assert.ErrorIs(t, err, ErrAccessNotFound)

	pending := testutil.TestAccess(t, s.db, user.ID, 2, "electronics", model.AccessStatusPending)
	state, quote, err = s.task.State(ctx, user.ID, pending.ID)
	require.NoError(t, err)
	assert.Nil(t, quote)
	assert.Empty(t, state.Catalog)
}

func TestTaskService_Reconcile(t *testing.T) {
	s, cleanup := setupServices(t)
	defer cleanup()
	ctx := context.Background()

	testutil.TestLevel(t, s.db, 1, "electronics", 1, "15", "10")
	products := testutil.TestProducts(t, s.db, "electronics", "10")
	user := testutil.TestUser(t, s.db)

	stale := testutil.TestAccess(t, s.db, user.ID, 1, "electronics", model.AccessStatusApproved)
	testutil.TestCatalog(t, s.db, stale.ID, products)
	require.NoError(t, s.db.Create(&model.ProductPurchase{
		AccessID: stale.ID, ProductID: products[0].ID, UserID: user.ID, Quantity: 1, CommissionEarned: testutil.Dec("1.5"),
	}).Error)

	fresh := testutil.TestAccess(t, s.db, user.ID, 2, "electronics", model.AccessStatusApproved)
	testutil.TestCatalog(t, s.db, fresh.ID, products)

	items, err := s.task.Reconcile(ctx, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, stale.ID, items[0].AccessID)
	assert.Equal(t, model.AccessStatusApproved, s.reloadAccess(t, stale.ID).Status)

	items, err = s.task.Reconcile(ctx, false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.AccessStatusCompleted, s.reloadAccess(t, stale.ID).Status)
	assert.Equal(t, model.AccessStatusApproved, s.reloadAccess(t, fresh.ID).Status)
}
