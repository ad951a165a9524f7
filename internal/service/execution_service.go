package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"factorflow/internal/config"
	"factorflow/internal/model"
	"factorflow/internal/repository"

	"gorm.io/gorm"
)

// ExecutionService 执行/结算层
// 资金池、供应商、买方之间资金移动的唯一授权中介
//
// 独立维护 FundingRecord，与发票表的 status 互为交叉校验：
// 生命周期模块推进状态，执行层落实资金，两者必须在同一事务内联动。
// 绕过生命周期模块直接调用本层的入口仅保留给紧急恢复场景（需要 ROUTER 角色），
// 因为那会让两套记录脱钩
type ExecutionService struct {
	db          *gorm.DB
	cfg         *config.Config
	vault       *VaultService
	ledger      *AssetLedger
	fundingRepo *repository.FundingRecordRepository
	invoiceRepo *repository.InvoiceRepository
	access      *AccessService
}

func NewExecutionService(db *gorm.DB, cfg *config.Config, vault *VaultService) *ExecutionService {
	return &ExecutionService{
		db:          db,
		cfg:         cfg,
		vault:       vault,
		ledger:      NewAssetLedger(db),
		fundingRepo: repository.NewFundingRecordRepository(db),
		invoiceRepo: repository.NewInvoiceRepository(db),
		access:      NewAccessService(db),
	}
}

func (s *ExecutionService) GetFundingRecord(ctx context.Context, invoiceID int64) (*model.FundingRecord, error) {
	return s.fundingRepo.GetByInvoiceID(ctx, nil, invoiceID)
}

// FundInvoiceTx 放款（事务内）
// 1. 资金池 available → deployed
// 2. 资金池账户 → 供应商账户
// 3. 写入 FundingRecord（funded=true）
// 按发票幂等：已有记录直接报重复处理
func (s *ExecutionService) FundInvoiceTx(ctx context.Context, tx *gorm.DB, invoice *model.Invoice, fundingAmount int64) error {
	existing, err := s.fundingRepo.GetByInvoiceID(ctx, tx, invoice.ID)
	if err != nil {
		return fmt.Errorf("查询放款记录失败: %w", err)
	}
	if existing != nil {
		return repository.ErrAlreadyFunded
	}

	if err := s.vault.DeployForFundingTx(ctx, tx, fundingAmount); err != nil {
		return err
	}

	if err := s.ledger.Transfer(ctx, tx, model.SystemHolderVault, invoice.SupplierID, fundingAmount,
		model.TransactionTypeFunding, invoice.InvoiceNo, "保理放款"); err != nil {
		return err
	}

	now := time.Now()
	record := &model.FundingRecord{
		InvoiceID:     invoice.ID,
		SupplierID:    invoice.SupplierID,
		FundingAmount: fundingAmount,
		FaceValue:     invoice.FaceValue,
		Funded:        true,
		FundedAt:      &now,
	}
	if err := s.fundingRepo.Create(ctx, tx, record); err != nil {
		return fmt.Errorf("写入放款记录失败: %w", err)
	}

	return nil
}

// ReceiveRepaymentTx 还款（事务内）
// 1. 买方账户 → 资金池账户（全额票面）
// 2. 资金池 deployed 释放本金，available 收入本金+收益
// 3. FundingRecord 置位 repaid
// 收益 = 票面金额 - 放款金额
func (s *ExecutionService) ReceiveRepaymentTx(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) (yield int64, err error) {
	record, err := s.fundingRepo.GetByInvoiceID(ctx, tx, invoice.ID)
	if err != nil {
		return 0, fmt.Errorf("查询放款记录失败: %w", err)
	}
	if record == nil || !record.Funded {
		return 0, repository.ErrNotFunded
	}
	if record.Repaid {
		return 0, repository.ErrAlreadyRepaid
	}

	if err := s.ledger.Transfer(ctx, tx, invoice.BuyerID, model.SystemHolderVault, record.FaceValue,
		model.TransactionTypeRepayment, invoice.InvoiceNo, "到期还款"); err != nil {
		return 0, err
	}

	yield = record.FaceValue - record.FundingAmount
	if err := s.vault.ReceiveRepaymentTx(ctx, tx, record.FundingAmount, yield); err != nil {
		return 0, err
	}

	if err := s.fundingRepo.MarkRepaid(ctx, tx, invoice.ID); err != nil {
		return 0, err
	}

	return yield, nil
}

// ============================================================================
// 紧急恢复入口（ROUTER 角色）
// ============================================================================
//
// 以下入口只操作资金与 FundingRecord，不推进发票状态机，
// 仅用于生命周期模块与执行层记录脱钩后的人工修复

// FundInvoice 直接放款（不经生命周期模块）
func (s *ExecutionService) FundInvoice(ctx context.Context, actorID, invID, fundingAmount int64) error {
	if err := s.access.RequireRouter(ctx, actorID); err != nil {
		return err
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}
	if fundingAmount <= 0 {
		return fmt.Errorf("%w: 放款金额必须大于0", ErrInvalidParam)
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return err
	}
	if fundingAmount > invoice.FaceValue {
		return fmt.Errorf("%w: 放款金额不得超过票面金额", ErrInvalidParam)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.FundInvoiceTx(ctx, tx, invoice, fundingAmount)
	})
	if err != nil {
		return err
	}

	log.Printf("[Execution] 紧急放款: actorID=%d, invoiceID=%d, amount=%d", actorID, invID, fundingAmount)
	return nil
}

// ReceiveRepayment 直接收款（不经生命周期模块）
func (s *ExecutionService) ReceiveRepayment(ctx context.Context, actorID, invID int64) error {
	if err := s.access.RequireRouter(ctx, actorID); err != nil {
		return err
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return err
	}

	var yield int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		yield, txErr = s.ReceiveRepaymentTx(ctx, tx, invoice)
		return txErr
	})
	if err != nil {
		return err
	}

	log.Printf("[Execution] 紧急收款: actorID=%d, invoiceID=%d, yield=%d", actorID, invID, yield)
	return nil
}
