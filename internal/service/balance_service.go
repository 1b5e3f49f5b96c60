package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/qs3c/vip_task_server/internal/model"
	"github.com/qs3c/vip_task_server/internal/progression"
	"github.com/qs3c/vip_task_server/internal/repository"
)

type BalanceService struct {
	userRepo   *repository.UserRepository
	ledgerRepo *repository.LedgerRepository
	exec       *Executor
}

func NewBalanceService(userRepo *repository.UserRepository, ledgerRepo *repository.LedgerRepository, exec *Executor) *BalanceService {
	return &BalanceService{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		exec:       exec,
	}
}

// GetBalance 获取余额
func (s *BalanceService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// ListTransactions 余额流水
func (s *BalanceService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]model.BalanceTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.ledgerRepo.ListByUser(ctx, userID, page, pageSize)
}

// Credit 管理员为用户充值
func (s *BalanceService) Credit(ctx context.Context, operatorID, userID int64, amount decimal.Decimal, note string) (*model.BalanceTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var entry *model.BalanceTransaction
	err := s.exec.RunForUser(ctx, userID, func(ctx context.Context) error {
		user, err := s.lockUser(ctx, userID)
		if err != nil {
			return err
		}
		entry = &model.BalanceTransaction{
			Type:       model.TxTypeAdminCredit,
			OperatorID: &operatorID,
			Note:       note,
		}
		return s.apply(ctx, user, amount, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *BalanceService) lockUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// apply 在当前事务中变更余额并写流水。user 必须是本事务内加锁读取的记录。
func (s *BalanceService) apply(ctx context.Context, user *model.User, delta decimal.Decimal, entry *model.BalanceTransaction) error {
	next := user.Balance.Add(delta)
	if next.IsNegative() {
		return &progression.InsufficientFundsError{Required: delta.Neg(), Current: user.Balance}
	}
	if err := s.userRepo.UpdateBalance(ctx, user.ID, next); err != nil {
		return err
	}
	user.Balance = next

	entry.UserID = user.ID
	entry.Amount = delta
	entry.BalanceAfter = next
	if entry.Reference == "" {
		entry.Reference = uuid.NewString()
	}
	return s.ledgerRepo.Create(ctx, entry)
}
