package service

import (
	"context"
	"fmt"
	"log"

	"factorflow/internal/model"
	"factorflow/internal/repository"
	"factorflow/pkg/idgen"

	"gorm.io/gorm"
)

// AccountService 结算账户管理
// 充值是结算资产进入系统的唯一入口，对应外部支付通道的入金回调
type AccountService struct {
	db              *gorm.DB
	vault           *VaultService
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewAccountService(db *gorm.DB, vault *VaultService) *AccountService {
	return &AccountService{
		db:              db,
		vault:           vault,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// Recharge 账户充值（按 refNo 幂等）
func (s *AccountService) Recharge(ctx context.Context, holderID int64, amount int64, refNo string) error {
	if model.IsSystemHolder(holderID) {
		return fmt.Errorf("%w: 系统保留账户不能充值", ErrInvalidParam)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: 充值金额必须大于0", ErrInvalidParam)
	}
	if refNo == "" {
		return fmt.Errorf("%w: 充值单号不能为空", ErrInvalidParam)
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}

	// 幂等检查：同一单号只入账一次
	existing, err := s.transactionRepo.GetByHolderIDAndRefNo(ctx, holderID, refNo)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Printf("[Account] 充值单号重复，忽略: holderID=%d, refNo=%s", holderID, refNo)
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.accountRepo.GetOrCreate(ctx, holderID)
		if err != nil {
			return err
		}

		if err := s.accountRepo.Increase(ctx, tx, holderID, amount); err != nil {
			return fmt.Errorf("入账失败: %w", err)
		}

		trans := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			HolderID:      holderID,
			RefNo:         refNo,
			Amount:        amount,
			Type:          model.TransactionTypeRecharge,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance + amount,
			Remark:        "账户充值",
		}
		return s.transactionRepo.Create(ctx, tx, trans)
	})
}

func (s *AccountService) GetBalance(ctx context.Context, holderID int64) (int64, error) {
	account, err := s.accountRepo.GetByHolderID(ctx, holderID)
	if err != nil {
		if err == repository.ErrAccountNotFound {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance, nil
}

type TransactionPage struct {
	List     []*model.AccountTransaction `json:"list"`
	Total    int64                       `json:"total"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"page_size"`
}

func (s *AccountService) ListTransactions(ctx context.Context, holderID int64, page, pageSize int) (*TransactionPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	transactions, total, err := s.transactionRepo.ListByHolderID(ctx, holderID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &TransactionPage{List: transactions, Total: total, Page: page, PageSize: pageSize}, nil
}
