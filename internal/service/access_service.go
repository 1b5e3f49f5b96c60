package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/vip_task_server/config"
	"github.com/qs3c/vip_task_server/internal/metrics"
	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/model/dto"
	"github.com/qs3c/vip_task_server/internal/pkg/events"
	"github.com/qs3c/vip_task_server/internal/progression"
	"github.com/qs3c/vip_task_server/internal/repository"
)

const expiredNote = "expired"

// AccessService VIP权限生命周期：申请、审批、拒绝、过期
type AccessService struct {
	accessRepo *repository.AccessRepository
	userRepo   *repository.UserRepository
	vipRepo    *repository.VipRepository
	balance    *BalanceService
	catalog    *CatalogService
	exec       *Executor
	notifier   *Notifier
	bounds     progression.Bounds
	metrics    *metrics.TaskMetrics
}

func NewAccessService(
	accessRepo *repository.AccessRepository,
	userRepo *repository.UserRepository,
	vipRepo *repository.VipRepository,
	balance *BalanceService,
	catalog *CatalogService,
	exec *Executor,
	notifier *Notifier,
	cfg *config.Config,
) *AccessService {
	return &AccessService{
		accessRepo: accessRepo,
		userRepo:   userRepo,
		vipRepo:    vipRepo,
		balance:    balance,
		catalog:    catalog,
		exec:       exec,
		notifier:   notifier,
		bounds:     comboBounds(cfg),
		metrics:    metrics.Get(),
	}
}

// Request 申请权限：冻结等级价格并创建 pending 实例
func (s *AccessService) Request(ctx context.Context, userID int64, req *dto.RequestAccessRequest) (*model.VipAccess, error) {
	var access *model.VipAccess
	err := s.exec.RunForUser(ctx, userID, func(ctx context.Context) error {
		level, err := s.vipRepo.GetLevel(ctx, req.Level, req.Category)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLevelNotFound
			}
			return err
		}

		if _, err := s.accessRepo.FindActive(ctx, userID, req.Level, req.Category); err == nil {
			return ErrDuplicateAccess
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user, err := s.balance.lockUser(ctx, userID)
		if err != nil {
			return err
		}
		if user.Balance.LessThan(level.Price) {
			return &progression.InsufficientFundsError{Required: level.Price, Current: user.Balance}
		}

		access = &model.VipAccess{
			UserID:      userID,
			Level:       req.Level,
			Category:    req.Category,
			Status:      model.AccessStatusPending,
			Price:       level.Price,
			HeldAmount:  level.Price,
			ActiveKey:   model.ActiveKeyFor(userID, req.Level, req.Category),
			RequestedAt: time.Now(),
		}
		if err := s.accessRepo.Create(ctx, access); err != nil {
			return err
		}

		return s.balance.apply(ctx, user, level.Price.Neg(), &model.BalanceTransaction{
			Type:     model.TxTypeAccessHold,
			AccessID: &access.ID,
			Note:     fmt.Sprintf("申请 VIP%d %s", req.Level, req.Category),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AccessTransitionTotal.WithLabelValues(model.AccessStatusPending).Inc()
	s.notifier.Emit(ctx, events.New(events.TypeAccessRequested, userID, access.ID, map[string]string{
		"level":    fmt.Sprint(access.Level),
		"category": access.Category,
		"price":    access.Price.StringFixed(2),
	}))
	return access, nil
}

// Approve 审批通过：补扣未冻结部分、写入连单快照、冻结目录、开放分类
func (s *AccessService) Approve(ctx context.Context, operatorID, accessID int64, req *dto.ApproveAccessRequest) (*model.VipAccess, error) {
	current, err := s.get(ctx, accessID)
	if err != nil {
		return nil, err
	}

	var access *model.VipAccess
	err = s.exec.RunForUser(ctx, current.UserID, func(ctx context.Context) error {
		a, err := s.accessRepo.GetForUpdate(ctx, accessID)
		if err != nil {
			return err
		}
		if a.Status != model.AccessStatusPending {
			return ErrInvalidTransition
		}

		n, err := s.accessRepo.CountApprovedActive(ctx, a.UserID, a.Level, a.Category, a.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateAccess
		}

		level, err := s.vipRepo.GetLevel(ctx, a.Level, a.Category)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &progression.ConfigurationError{Message: fmt.Sprintf("等级 %d/%s 不存在", a.Level, a.Category)}
			}
			return err
		}
		catalog, err := s.catalog.LiveCatalog(ctx, level)
		if err != nil {
			return err
		}

		snapshot := progression.Snapshot{
			Enabled:        req.ComboEnabled,
			Position:       req.ComboPosition,
			Multiplier:     req.ComboMultiplier,
			DepositPercent: req.ComboDepositPercent,
		}
		if err := s.bounds.ValidateSnapshot(snapshot, catalog); err != nil {
			return err
		}
		// 待审批期间配置的连单按冻结时的目录重新校验
		overrides, err := s.catalog.Overrides(ctx, a.ID)
		if err != nil {
			return err
		}
		for _, rule := range overrides {
			if err := s.bounds.ValidateIn(rule, catalog); err != nil {
				if ve, ok := progression.AsValidation(err); ok {
					return &progression.ValidationError{
						Field:   "combo_overrides",
						Message: fmt.Sprintf("连单 #%d 与当前任务序列不符: %s", rule.OverrideID, ve.Message),
					}
				}
				return err
			}
		}

		user, err := s.balance.lockUser(ctx, a.UserID)
		if err != nil {
			return err
		}
		if remaining := a.Price.Sub(a.HeldAmount); remaining.IsPositive() {
			if err := s.balance.apply(ctx, user, remaining.Neg(), &model.BalanceTransaction{
				Type:       model.TxTypeAccessDebit,
				AccessID:   &a.ID,
				OperatorID: &operatorID,
				Note:       "审批补扣",
			}); err != nil {
				return err
			}
			a.HeldAmount = a.Price
		}

		if err := s.catalog.Freeze(ctx, a.ID, catalog); err != nil {
			return err
		}

		now := time.Now()
		a.Status = model.AccessStatusApproved
		a.ApprovedAt = &now
		a.ReviewedBy = &operatorID
		a.ReviewNote = strings.TrimSpace(req.Note)
		a.ComboEnabled = snapshot.Enabled
		if snapshot.Enabled {
			a.ComboPosition = snapshot.Position
			a.ComboMultiplier = snapshot.Multiplier
			a.ComboDepositPercent = snapshot.DepositPercent
		}
		if err := s.accessRepo.Update(ctx, a); err != nil {
			return err
		}

		access = a
		return s.accessRepo.GrantCategory(ctx, &model.CategoryGrant{
			UserID:    a.UserID,
			Category:  a.Category,
			AccessID:  a.ID,
			GrantedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("VIP权限审批通过", "access_id", access.ID, "user_id", access.UserID, "operator_id", operatorID, "combo", access.ComboEnabled)
	s.metrics.AccessTransitionTotal.WithLabelValues(model.AccessStatusApproved).Inc()
	s.notifier.Emit(ctx, events.New(events.TypeAccessApproved, access.UserID, access.ID, map[string]string{
		"level":    fmt.Sprint(access.Level),
		"category": access.Category,
	}))
	return access, nil
}

// Reject 拒绝申请并退还冻结金额
func (s *AccessService) Reject(ctx context.Context, operatorID, accessID int64, note string) (*model.VipAccess, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrNoteRequired
	}
	return s.reject(ctx, &operatorID, accessID, note, events.TypeAccessRejected)
}

func (s *AccessService) reject(ctx context.Context, operatorID *int64, accessID int64, note, eventType string) (*model.VipAccess, error) {
	current, err := s.get(ctx, accessID)
	if err != nil {
		return nil, err
	}

	var access *model.VipAccess
	var refunded bool
	err = s.exec.RunForUser(ctx, current.UserID, func(ctx context.Context) error {
		a, err := s.accessRepo.GetForUpdate(ctx, accessID)
		if err != nil {
			return err
		}
		if a.Status != model.AccessStatusPending {
			return ErrInvalidTransition
		}

		if a.HeldAmount.IsPositive() {
			user, err := s.balance.lockUser(ctx, a.UserID)
			if err != nil {
				return err
			}
			if err := s.balance.apply(ctx, user, a.HeldAmount, &model.BalanceTransaction{
				Type:       model.TxTypeAccessRefund,
				AccessID:   &a.ID,
				OperatorID: operatorID,
				Note:       note,
			}); err != nil {
				return err
			}
			refunded = true
		}

		now := time.Now()
		a.Status = model.AccessStatusRejected
		a.RejectedAt = &now
		a.ReviewedBy = operatorID
		a.ReviewNote = note
		a.ActiveKey = nil
		access = a
		return s.accessRepo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AccessTransitionTotal.WithLabelValues(model.AccessStatusRejected).Inc()
	data := map[string]string{"note": note}
	if refunded {
		data["refund"] = access.HeldAmount.StringFixed(2)
	}
	s.notifier.Emit(ctx, events.New(eventType, access.UserID, access.ID, data))
	return access, nil
}

// ExpirePending 拒绝申请时间早于 ttl 的待审批实例并退款，返回处理数量
func (s *AccessService) ExpirePending(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	expired := 0
	for {
		batch, err := s.accessRepo.ListPendingBefore(ctx, cutoff, 100)
		if err != nil {
			return expired, err
		}
		if len(batch) == 0 {
			return expired, nil
		}

		progressed := false
		for _, a := range batch {
			if _, err := s.reject(ctx, nil, a.ID, expiredNote, events.TypeAccessExpired); err != nil {
				if errors.Is(err, ErrInvalidTransition) {
					continue
				}
				slog.Error("过期处理失败", "access_id", a.ID, "error", err)
				continue
			}
			expired++
			progressed = true
		}
		if !progressed || len(batch) < 100 {
			return expired, nil
		}
	}
}

// Get 管理员查看
func (s *AccessService) Get(ctx context.Context, accessID int64) (*model.VipAccess, error) {
	return s.get(ctx, accessID)
}

// GetForUser 只能查看自己的实例
func (s *AccessService) GetForUser(ctx context.Context, userID, accessID int64) (*model.VipAccess, error) {
	a, err := s.get(ctx, accessID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrAccessNotFound
	}
	return a, nil
}

// ListByUser 用户的全部实例，包含历史
func (s *AccessService) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]model.VipAccess, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.accessRepo.ListByUser(ctx, userID, page, pageSize)
}

// GrantedCategories 用户可见的分类
func (s *AccessService) GrantedCategories(ctx context.Context, userID int64) ([]string, error) {
	return s.accessRepo.ListGrantedCategories(ctx, userID)
}

func (s *AccessService) get(ctx context.Context, accessID int64) (*model.VipAccess, error) {
	a, err := s.accessRepo.GetByID(ctx, accessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccessNotFound
		}
		return nil, err
	}
	return a, nil
}
