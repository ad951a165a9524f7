package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"factorflow/internal/config"
	"factorflow/internal/finance"
	"factorflow/internal/infrastructure/lock"
	"factorflow/internal/model"
	"factorflow/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// FundingService 放款流程编排
//
// 【关键点】放款是全系统最核心的资金操作，需要保证：
// 1. 幂等性：同一张发票只会放款一次（分布式锁 + FundingRecord 唯一键双保险）
// 2. 原子性：状态迁移、资金池占用、供应商入账、放款记录必须同时成功或同时失败
// 3. 时点贴现：按放款时刻的剩余期限计算，不是建票时刻
type FundingService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	invoiceRepo *repository.InvoiceRepository
	invoiceSvc  *InvoiceService
	execution   *ExecutionService
	vault       *VaultService
}

func NewFundingService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, vault *VaultService, execution *ExecutionService, invoiceSvc *InvoiceService) *FundingService {
	return &FundingService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		invoiceRepo: repository.NewInvoiceRepository(db),
		invoiceSvc:  invoiceSvc,
		execution:   execution,
		vault:       vault,
	}
}

type FundingResponse struct {
	InvoiceID     int64  `json:"invoice_id"`
	InvoiceNo     string `json:"invoice_no"`
	FaceValue     int64  `json:"face_value"`
	FundingAmount int64  `json:"funding_amount"`
	Discount      int64  `json:"discount"`
	Status        string `json:"status"`
}

// RequestFunding 供应商请求放款：FUNDING_APPROVED → FUNDED
func (s *FundingService) RequestFunding(ctx context.Context, supplierID, invID int64) (*FundingResponse, error) {
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return nil, err
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return nil, err
	}
	if invoice.SupplierID != supplierID {
		return nil, fmt.Errorf("%w: 只有票面供应商可以请求放款", ErrUnauthorized)
	}
	if invoice.Status != model.InvoiceStatusFundingApproved {
		return nil, fmt.Errorf("%w: 当前状态 %s 不允许放款", repository.ErrInvoiceStatusInvalid, invoice.Status)
	}

	// 获取按发票维度的分布式锁
	fundingLock := lock.NewFundingLock(s.redisClient, invID)
	err = fundingLock.Lock(ctx, 100*time.Millisecond, 30)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer fundingLock.Unlock(ctx)

	// 获取锁后重新读取，防止锁等待期间已被并发放款
	invoice, err = s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != model.InvoiceStatusFundingApproved {
		return nil, fmt.Errorf("%w: 当前状态 %s 不允许放款", repository.ErrInvoiceStatusInvalid, invoice.Status)
	}

	// 贴现按放款时刻的剩余期限计算；已到期的发票直接拒绝
	fundedAt := time.Now()
	fundingAmount, discount, err := finance.ComputeDiscount(invoice.FaceValue, invoice.DiscountRateBps, invoice.MaturityDate, fundedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.invoiceRepo.MarkFunded(ctx, tx, invID, fundingAmount, fundedAt); err != nil {
			return err
		}

		if err := s.execution.FundInvoiceTx(ctx, tx, invoice, fundingAmount); err != nil {
			return err
		}

		return s.invoiceSvc.emitInvoiceEvent(ctx, tx, model.EventInvoiceFunded, invoice, supplierID, map[string]interface{}{
			"face_value":     invoice.FaceValue,
			"funding_amount": fundingAmount,
			"discount":       discount,
		})
	})

	if err != nil {
		// 并发下另一请求已抢先放款
		if errors.Is(err, repository.ErrAlreadyFunded) {
			return nil, repository.ErrAlreadyFunded
		}
		return nil, err
	}

	log.Printf("[Funding] 放款成功: invoiceNo=%s, supplierID=%d, fundingAmount=%d, discount=%d",
		invoice.InvoiceNo, supplierID, fundingAmount, discount)

	return &FundingResponse{
		InvoiceID:     invoice.ID,
		InvoiceNo:     invoice.InvoiceNo,
		FaceValue:     invoice.FaceValue,
		FundingAmount: fundingAmount,
		Discount:      discount,
		Status:        model.InvoiceStatusFunded,
	}, nil
}

// PreviewFunding 放款条款预览（只读，不落库）
// 按当前时刻的剩余期限试算，供供应商在提交前确认
func (s *FundingService) PreviewFunding(ctx context.Context, invID int64) (*FundingResponse, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return nil, err
	}
	if model.IsTerminalInvoiceStatus(invoice.Status) || invoice.Status == model.InvoiceStatusFunded {
		return nil, fmt.Errorf("%w: 当前状态 %s 没有可预览的放款条款", repository.ErrInvoiceStatusInvalid, invoice.Status)
	}

	fundingAmount, discount, err := finance.ComputeDiscount(invoice.FaceValue, invoice.DiscountRateBps, invoice.MaturityDate, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}

	return &FundingResponse{
		InvoiceID:     invoice.ID,
		InvoiceNo:     invoice.InvoiceNo,
		FaceValue:     invoice.FaceValue,
		FundingAmount: fundingAmount,
		Discount:      discount,
		Status:        invoice.Status,
	}, nil
}
