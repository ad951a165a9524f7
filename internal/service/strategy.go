package service

import (
	"context"
	"fmt"
	"time"

	"factorflow/internal/model"
	"factorflow/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Strategy 收益策略的多态接口
// 金库只面向这个接口做分配与回收，不关心资金的物理去向
type Strategy interface {
	ID() string
	Instant() bool
	// Deposit 把 amount 投入策略（事务内）
	Deposit(ctx context.Context, tx *gorm.DB, amount int64) error
	// Withdraw 从策略提取，返回即时到账的金额
	// 跨域策略只发起划转，即时到账为 0，资金随后经桥异步回流
	Withdraw(ctx context.Context, tx *gorm.DB, amount int64) (int64, error)
	// WithdrawAll 提取全部价值，返回即时到账的金额
	WithdrawAll(ctx context.Context, tx *gorm.DB) (int64, error)
	// TotalValue 策略当前价值估算
	// 跨域策略超过新鲜度上限时返回 ErrValueStale，调用方不得继续使用
	TotalValue(ctx context.Context) (int64, error)
}

// ============================================================================
// 同域策略
// ============================================================================

// localStrategy 同域策略：价值同步可得，资金留在金库账户内、按账面价值记账
type localStrategy struct {
	alloc *model.StrategyAllocation
	repo  *repository.StrategyRepository
}

func (s *localStrategy) ID() string    { return s.alloc.StrategyID }
func (s *localStrategy) Instant() bool { return s.alloc.Instant }

func (s *localStrategy) Deposit(ctx context.Context, tx *gorm.DB, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: 投入金额必须大于0", ErrInvalidParam)
	}
	return s.repo.AddCurrentValue(ctx, tx, s.alloc.StrategyID, amount)
}

func (s *localStrategy) Withdraw(ctx context.Context, tx *gorm.DB, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: 提取金额必须大于0", ErrInvalidParam)
	}
	if amount > s.alloc.CurrentValue {
		return 0, fmt.Errorf("%w: 策略 %s 价值 %d, 提取 %d", ErrInsufficientLiquidity, s.alloc.StrategyID, s.alloc.CurrentValue, amount)
	}
	if err := s.repo.AddCurrentValue(ctx, tx, s.alloc.StrategyID, -amount); err != nil {
		return 0, err
	}
	s.alloc.CurrentValue -= amount
	return amount, nil
}

func (s *localStrategy) WithdrawAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	value := s.alloc.CurrentValue
	if value == 0 {
		return 0, nil
	}
	return s.Withdraw(ctx, tx, value)
}

func (s *localStrategy) TotalValue(ctx context.Context) (int64, error) {
	return s.alloc.CurrentValue, nil
}

// ============================================================================
// 跨域策略
// ============================================================================

// bridgedStrategy 跨域策略：资金经桥转往远端执行环境
// 价值估算 = 最近上报价值 + 在途存入 - 在途提取，
// 上报超过新鲜度上限后估算视为不可靠
type bridgedStrategy struct {
	alloc     *model.StrategyAllocation
	repo      *repository.StrategyRepository
	ledger    *AssetLedger
	staleness time.Duration
}

func (s *bridgedStrategy) ID() string    { return s.alloc.StrategyID }
func (s *bridgedStrategy) Instant() bool { return false }

// Deposit 发起跨域存入：本地资金进入桥托管账户，等待桥确认
func (s *bridgedStrategy) Deposit(ctx context.Context, tx *gorm.DB, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: 投入金额必须大于0", ErrInvalidParam)
	}

	transfer := &model.BridgeTransfer{
		TransferID: uuid.NewString(),
		StrategyID: s.alloc.StrategyID,
		Direction:  model.BridgeDirectionDeposit,
		Amount:     amount,
		Status:     model.BridgeTransferStatusPending,
	}
	if err := s.repo.CreateTransfer(ctx, tx, transfer); err != nil {
		return fmt.Errorf("创建跨域划转失败: %w", err)
	}

	if err := s.ledger.Transfer(ctx, tx, model.SystemHolderTreasury, model.SystemHolderBridge, amount,
		model.TransactionTypeBridgeTransfer, transfer.TransferID, "跨域存入托管"); err != nil {
		return err
	}

	return s.repo.AddPending(ctx, tx, s.alloc.StrategyID, amount, 0)
}

// Withdraw 发起跨域提取：只登记在途，资金由报告者经 ReceiveBridgedFunds 回流
func (s *bridgedStrategy) Withdraw(ctx context.Context, tx *gorm.DB, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: 提取金额必须大于0", ErrInvalidParam)
	}

	value, err := s.TotalValue(ctx)
	if err != nil {
		return 0, err
	}
	if amount > value {
		return 0, fmt.Errorf("%w: 策略 %s 估值 %d, 提取 %d", ErrInsufficientLiquidity, s.alloc.StrategyID, value, amount)
	}

	transfer := &model.BridgeTransfer{
		TransferID: uuid.NewString(),
		StrategyID: s.alloc.StrategyID,
		Direction:  model.BridgeDirectionWithdraw,
		Amount:     amount,
		Status:     model.BridgeTransferStatusPending,
	}
	if err := s.repo.CreateTransfer(ctx, tx, transfer); err != nil {
		return 0, fmt.Errorf("创建跨域划转失败: %w", err)
	}

	if err := s.repo.AddPending(ctx, tx, s.alloc.StrategyID, 0, amount); err != nil {
		return 0, err
	}

	// 跨域提取没有即时到账
	return 0, nil
}

func (s *bridgedStrategy) WithdrawAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	value, err := s.TotalValue(ctx)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, nil
	}
	return s.Withdraw(ctx, tx, value)
}

func (s *bridgedStrategy) TotalValue(ctx context.Context) (int64, error) {
	if s.alloc.LastReportedAt != nil && time.Since(*s.alloc.LastReportedAt) > s.staleness {
		return 0, fmt.Errorf("%w: 策略 %s 最近上报于 %s", ErrValueStale, s.alloc.StrategyID, s.alloc.LastReportedAt.Format(time.RFC3339))
	}
	return s.alloc.LastReportedValue + s.alloc.PendingDeposits - s.alloc.PendingWithdrawals, nil
}
