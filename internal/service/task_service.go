package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/qs3c/vip_task_server/config"
	"github.com/qs3c/vip_task_server/internal/metrics"
	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/pkg/events"
	"github.com/qs3c/vip_task_server/internal/pkg/pubsub"
	"github.com/qs3c/vip_task_server/internal/progression"
	"github.com/qs3c/vip_task_server/internal/repository"
)

// 购买结果
const (
	PurchaseStatusPurchased      = "purchased"
	PurchaseStatusCompleted      = "completed"
	PurchaseStatusNoActiveAccess = "no_active_access"
)

// PurchaseOutcome 一次购买尝试的结果
type PurchaseOutcome struct {
	Status   string
	AccessID int64
	Quote    *progression.Quote // 仅 purchased
	Progress progression.Progress
	Balance  decimal.Decimal
}

// TaskService 用户逐个完成任务并获得佣金
type TaskService struct {
	accessRepo   *repository.AccessRepository
	comboRepo    *repository.ComboRepository
	purchaseRepo *repository.PurchaseRepository
	balance      *BalanceService
	catalog      *CatalogService
	exec         *Executor
	notifier     *Notifier
	maxRetries   int
	metrics      *metrics.TaskMetrics
}

func NewTaskService(
	accessRepo *repository.AccessRepository,
	comboRepo *repository.ComboRepository,
	purchaseRepo *repository.PurchaseRepository,
	balance *BalanceService,
	catalog *CatalogService,
	exec *Executor,
	notifier *Notifier,
	cfg *config.Config,
) *TaskService {
	maxRetries := 3
	if cfg != nil && cfg.Task.MaxRetries > 0 {
		maxRetries = cfg.Task.MaxRetries
	}
	return &TaskService{
		accessRepo:   accessRepo,
		comboRepo:    comboRepo,
		purchaseRepo: purchaseRepo,
		balance:      balance,
		catalog:      catalog,
		exec:         exec,
		notifier:     notifier,
		maxRetries:   maxRetries,
		metrics:      metrics.Get(),
	}
}

// AttemptPurchase 购买下一个任务。
// 没有进行中的已批准实例返回 progression.ErrNoActiveAccess；
// 余额不足返回 *progression.InsufficientFundsError，且不产生任何变更。
func (s *TaskService) AttemptPurchase(ctx context.Context, userID, accessID int64) (*PurchaseOutcome, error) {
	start := time.Now()
	var outcome *PurchaseOutcome
	err := s.exec.Retry(ctx, s.maxRetries, func() error {
		var err error
		outcome, err = s.attemptOnce(ctx, userID, accessID)
		return err
	})
	s.metrics.PurchaseDuration.Observe(time.Since(start).Seconds())
	s.metrics.PurchaseTotal.WithLabelValues(purchaseResult(outcome, err)).Inc()

	if err != nil {
		if _, ok := progression.AsInsufficientFunds(err); !ok && !errors.Is(err, progression.ErrNoActiveAccess) {
			slog.Error("购买失败", "user_id", userID, "access_id", accessID, "error", err)
		}
		return nil, err
	}

	s.publish(ctx, userID, outcome)
	return outcome, nil
}

func (s *TaskService) attemptOnce(ctx context.Context, userID, accessID int64) (*PurchaseOutcome, error) {
	var outcome *PurchaseOutcome
	err := s.exec.RunForUser(ctx, userID, func(ctx context.Context) error {
		access, err := s.accessRepo.GetForUpdate(ctx, accessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return progression.ErrNoActiveAccess
			}
			return err
		}
		if access.UserID != userID || access.Status != model.AccessStatusApproved {
			return progression.ErrNoActiveAccess
		}

		state, err := s.catalog.State(ctx, access)
		if err != nil {
			return err
		}

		user, err := s.balance.lockUser(ctx, userID)
		if err != nil {
			return err
		}

		if state.Progress.Completed {
			// 进度已满但状态未翻转，补齐状态后按完成返回
			if err := s.markCompleted(ctx, access); err != nil {
				return err
			}
			outcome = &PurchaseOutcome{
				Status:   PurchaseStatusCompleted,
				AccessID: accessID,
				Progress: state.Progress,
				Balance:  user.Balance,
			}
			return nil
		}

		quote, ok, err := state.NextQuote()
		if err != nil {
			return err
		}
		if !ok {
			return &progression.ConfigurationError{Message: fmt.Sprintf("权限 %d 进度异常：未完成但没有下一个任务", accessID)}
		}
		if err := quote.Check(user.Balance); err != nil {
			return err
		}

		now := time.Now()
		if err := s.balance.apply(ctx, user, quote.Commission, &model.BalanceTransaction{
			Type:     model.TxTypeCommission,
			AccessID: &accessID,
			Note:     fmt.Sprintf("任务 %d: %s", quote.TaskNumber, quote.Entry.Name),
		}); err != nil {
			return err
		}
		if _, err := s.purchaseRepo.AddUnits(ctx, accessID, userID, quote.Entry.ProductID, quote.Units, quote.Commission, now); err != nil {
			return err
		}
		if quote.Rule != nil && quote.Rule.Source == progression.SourceOverride {
			if err := s.comboRepo.MarkCompleted(ctx, quote.Rule.OverrideID, now); err != nil {
				return err
			}
		}

		records, err := s.catalog.Records(ctx, accessID)
		if err != nil {
			return err
		}
		progress := progression.ComputeProgress(state.Catalog, records)

		status := PurchaseStatusPurchased
		if progress.Completed {
			if err := s.markCompleted(ctx, access); err != nil {
				return err
			}
			status = PurchaseStatusCompleted
		}

		outcome = &PurchaseOutcome{
			Status:   status,
			AccessID: accessID,
			Quote:    &quote,
			Progress: progress,
			Balance:  user.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *TaskService) markCompleted(ctx context.Context, access *model.VipAccess) error {
	now := time.Now()
	access.Status = model.AccessStatusCompleted
	access.CompletedAt = &now
	access.ActiveKey = nil
	return s.accessRepo.Update(ctx, access)
}

// State 用户查看实例的任务面板
func (s *TaskService) State(ctx context.Context, userID, accessID int64) (*TaskState, *progression.Quote, error) {
	access, err := s.accessRepo.GetByID(ctx, accessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAccessNotFound
		}
		return nil, nil, err
	}
	if access.UserID != userID {
		return nil, nil, ErrAccessNotFound
	}
	if access.Status == model.AccessStatusPending || access.Status == model.AccessStatusRejected {
		return &TaskState{Access: access}, nil, nil
	}

	state, err := s.catalog.State(ctx, access)
	if err != nil {
		return nil, nil, err
	}
	if access.Status != model.AccessStatusApproved {
		return state, nil, nil
	}
	quote, ok, err := state.NextQuote()
	if err != nil || !ok {
		return state, nil, err
	}
	return state, &quote, nil
}

// ReconcileItem 对账结果
type ReconcileItem struct {
	AccessID       int64
	UserID         int64
	PurchasedCount int
	TotalTasks     int
}

// Reconcile 找出进度已满但仍为 approved 的实例，dryRun 为 false 时翻转为 completed
func (s *TaskService) Reconcile(ctx context.Context, dryRun bool) ([]ReconcileItem, error) {
	var items []ReconcileItem
	var afterID int64
	for {
		batch, err := s.accessRepo.ListApprovedAfter(ctx, afterID, 200)
		if err != nil {
			return items, err
		}
		if len(batch) == 0 {
			return items, nil
		}

		for i := range batch {
			a := &batch[i]
			afterID = a.ID

			p, err := s.catalog.Progress(ctx, a.ID)
			if err != nil {
				slog.Warn("对账跳过", "access_id", a.ID, "error", err)
				continue
			}
			if !p.Completed {
				continue
			}

			item := ReconcileItem{AccessID: a.ID, UserID: a.UserID, PurchasedCount: p.PurchasedCount, TotalTasks: p.TotalTasks}
			if !dryRun {
				if err := s.reconcileOne(ctx, a.UserID, a.ID); err != nil {
					slog.Error("对账翻转失败", "access_id", a.ID, "error", err)
					continue
				}
			}
			items = append(items, item)
		}
	}
}

func (s *TaskService) reconcileOne(ctx context.Context, userID, accessID int64) error {
	return s.exec.RunForUser(ctx, userID, func(ctx context.Context) error {
		a, err := s.accessRepo.GetForUpdate(ctx, accessID)
		if err != nil {
			return err
		}
		if a.Status != model.AccessStatusApproved {
			return nil
		}
		p, err := s.catalog.Progress(ctx, a.ID)
		if err != nil {
			return err
		}
		if !p.Completed {
			return nil
		}
		return s.markCompleted(ctx, a)
	})
}

func (s *TaskService) publish(ctx context.Context, userID int64, o *PurchaseOutcome) {
	if o.Quote == nil {
		return
	}
	q := o.Quote

	kind := "regular"
	if q.IsCombo() {
		kind = "combo"
		s.metrics.ComboHitTotal.WithLabelValues(string(q.Rule.Source), string(q.Rule.Mode)).Inc()
	}
	s.metrics.CommissionAmount.WithLabelValues(kind).Add(q.Commission.InexactFloat64())

	s.notifier.Emit(ctx, events.New(events.TypeTaskPurchased, userID, o.AccessID, map[string]string{
		"task_number": fmt.Sprint(q.TaskNumber),
		"product_id":  fmt.Sprint(q.Entry.ProductID),
		"commission":  q.Commission.StringFixed(2),
		"combo_bonus": q.ComboBonus.StringFixed(2),
	}))
	if o.Status == PurchaseStatusCompleted {
		s.notifier.Emit(ctx, events.New(events.TypeTaskCompleted, userID, o.AccessID, map[string]string{
			"total_commission": o.Progress.TotalCommission.StringFixed(2),
		}))
	}

	status := pubsub.StatusPurchased
	if o.Status == PurchaseStatusCompleted {
		status = pubsub.StatusCompleted
	}
	s.notifier.Progress(ctx, &pubsub.ProgressMessage{
		UserID:          userID,
		AccessID:        o.AccessID,
		Status:          status,
		TaskNumber:      o.Progress.PurchasedCount,
		TotalTasks:      o.Progress.TotalTasks,
		Commission:      q.Commission.StringFixed(2),
		TotalCommission: o.Progress.TotalCommission.StringFixed(2),
		ComboHit:        q.IsCombo(),
	})
}

func purchaseResult(o *PurchaseOutcome, err error) string {
	switch {
	case err == nil && o != nil:
		return o.Status
	case errors.Is(err, progression.ErrNoActiveAccess):
		return PurchaseStatusNoActiveAccess
	case errors.Is(err, progression.ErrConcurrencyConflict):
		return "conflict"
	}
	if _, ok := progression.AsInsufficientFunds(err); ok {
		return "insufficient_funds"
	}
	return "error"
}
