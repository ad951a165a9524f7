package service

import (
	"context"
	"errors"
	"fmt"

	"factorflow/internal/model"
	"factorflow/internal/repository"
	"factorflow/pkg/idgen"

	"gorm.io/gorm"
)

// AssetLedger 结算资产划转能力
// 系统内所有资金的物理移动都走这一个入口：先扣后加，双边流水，
// 流水带交易前后余额。调用方负责把它放在自己的数据库事务里，
// 保证资金移动与业务状态变更同生共死
type AssetLedger struct {
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewAssetLedger(db *gorm.DB) *AssetLedger {
	return &AssetLedger{
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

func (l *AssetLedger) BalanceOf(ctx context.Context, holderID int64) (int64, error) {
	account, err := l.accountRepo.GetByHolderID(ctx, holderID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance, nil
}

// Transfer 账户间划转
func (l *AssetLedger) Transfer(ctx context.Context, tx *gorm.DB, fromHolder, toHolder int64, amount int64, txnType, refNo, remark string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: 划转金额必须大于0", ErrInvalidParam)
	}

	fromAccount, err := l.accountRepo.GetByHolderIDForUpdate(ctx, tx, fromHolder)
	if err != nil {
		return fmt.Errorf("查询出账账户失败: %w", err)
	}

	if err := l.accountRepo.Deduct(ctx, tx, fromHolder, amount, fromAccount.Version); err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			return fmt.Errorf("%w: 账户 %d 余额不足", ErrInsufficientLiquidity, fromHolder)
		}
		return fmt.Errorf("扣款失败: %w", err)
	}

	toAccount, err := l.accountRepo.GetOrCreate(ctx, toHolder)
	if err != nil {
		return fmt.Errorf("查询入账账户失败: %w", err)
	}
	if err := l.accountRepo.Increase(ctx, tx, toHolder, amount); err != nil {
		return fmt.Errorf("入账失败: %w", err)
	}

	if err := l.record(ctx, tx, fromHolder, -amount, fromAccount.Balance, txnType, refNo, remark); err != nil {
		return err
	}
	return l.record(ctx, tx, toHolder, amount, toAccount.Balance, txnType, refNo, remark)
}

func (l *AssetLedger) record(ctx context.Context, tx *gorm.DB, holderID, amount, balanceBefore int64, txnType, refNo, remark string) error {
	trans := &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		HolderID:      holderID,
		RefNo:         refNo,
		Amount:        amount,
		Type:          txnType,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceBefore + amount,
		Remark:        remark,
	}
	if err := l.transactionRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}
	return nil
}
