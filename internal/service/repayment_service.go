package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"factorflow/internal/config"
	"factorflow/internal/infrastructure/lock"
	"factorflow/internal/model"
	"factorflow/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// RepaymentService 还款流程编排
//
// 【设计规则】还款必须从这里进入，让发票状态与 FundingRecord 在
// 同一事务内一起推进；执行层的直接收款入口只留给紧急恢复
type RepaymentService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	invoiceRepo *repository.InvoiceRepository
	invoiceSvc  *InvoiceService
	execution   *ExecutionService
	vault       *VaultService
}

func NewRepaymentService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, vault *VaultService, execution *ExecutionService, invoiceSvc *InvoiceService) *RepaymentService {
	return &RepaymentService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		invoiceRepo: repository.NewInvoiceRepository(db),
		invoiceSvc:  invoiceSvc,
		execution:   execution,
		vault:       vault,
	}
}

type RepaymentResponse struct {
	InvoiceID int64  `json:"invoice_id"`
	InvoiceNo string `json:"invoice_no"`
	FaceValue int64  `json:"face_value"`
	Principal int64  `json:"principal"`
	Yield     int64  `json:"yield"`
	Status    string `json:"status"`
}

// ProcessRepayment 买方到期还款：FUNDED → PAID
// 从买方账户全额扣收票面金额，本金+收益转入资金池，份额价格上升
func (s *RepaymentService) ProcessRepayment(ctx context.Context, buyerID, invID int64) (*RepaymentResponse, error) {
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return nil, err
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return nil, err
	}
	if invoice.BuyerID != buyerID {
		return nil, fmt.Errorf("%w: 只有票面买方可以还款", ErrUnauthorized)
	}
	if invoice.Status != model.InvoiceStatusFunded {
		return nil, fmt.Errorf("%w: 当前状态 %s 不允许还款", repository.ErrInvoiceStatusInvalid, invoice.Status)
	}

	repayLock := lock.NewRepaymentLock(s.redisClient, invID)
	err = repayLock.Lock(ctx, 100*time.Millisecond, 30)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer repayLock.Unlock(ctx)

	// 获取锁后重新检查状态
	invoice, err = s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != model.InvoiceStatusFunded {
		return nil, fmt.Errorf("%w: 当前状态 %s 不允许还款", repository.ErrInvoiceStatusInvalid, invoice.Status)
	}

	var yield int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.invoiceRepo.UpdateStatus(ctx, tx, invID, model.InvoiceStatusFunded, model.InvoiceStatusPaid); err != nil {
			return err
		}

		var txErr error
		yield, txErr = s.execution.ReceiveRepaymentTx(ctx, tx, invoice)
		if txErr != nil {
			return txErr
		}

		return s.invoiceSvc.emitInvoiceEvent(ctx, tx, model.EventInvoicePaid, invoice, buyerID, map[string]interface{}{
			"face_value": invoice.FaceValue,
			"yield":      yield,
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("[Repayment] 还款成功: invoiceNo=%s, buyerID=%d, faceValue=%d, yield=%d",
		invoice.InvoiceNo, buyerID, invoice.FaceValue, yield)

	return &RepaymentResponse{
		InvoiceID: invoice.ID,
		InvoiceNo: invoice.InvoiceNo,
		FaceValue: invoice.FaceValue,
		Principal: invoice.FaceValue - yield,
		Yield:     yield,
		Status:    model.InvoiceStatusPaid,
	}, nil
}
