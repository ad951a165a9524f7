package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"factorflow/internal/config"
	"factorflow/internal/model"
	"factorflow/internal/repository"
	"factorflow/pkg/idgen"

	"gorm.io/gorm"
)

// InvoiceService 发票生命周期（放款/还款之外的状态迁移）
//
// 状态机：PENDING → APPROVED → FUNDING_APPROVED → FUNDED → PAID
// 旁路：PENDING/APPROVED → CANCELLED；FUNDED → DEFAULTED（到期+宽限后）
// 每次迁移都校验操作者身份，失败时整体回滚，不留部分落库的中间态
type InvoiceService struct {
	db          *gorm.DB
	cfg         *config.Config
	invoiceRepo *repository.InvoiceRepository
	fundingRepo *repository.FundingRecordRepository
	outboxRepo  *repository.OutboxRepository
	vault       *VaultService
	access      *AccessService
}

func NewInvoiceService(db *gorm.DB, cfg *config.Config, vault *VaultService) *InvoiceService {
	return &InvoiceService{
		db:          db,
		cfg:         cfg,
		invoiceRepo: repository.NewInvoiceRepository(db),
		fundingRepo: repository.NewFundingRecordRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		vault:       vault,
		access:      NewAccessService(db),
	}
}

type CreateInvoiceRequest struct {
	SupplierID      int64     `json:"supplier_id"`
	BuyerID         int64     `json:"buyer_id"`
	FaceValue       int64     `json:"face_value"`
	DiscountRateBps int       `json:"discount_rate_bps"`
	MaturityDate    time.Time `json:"maturity_date"`
	ContentHash     string    `json:"content_hash"`
	ExternalID      string    `json:"external_id"`
}

// Create 供应商建票 → PENDING
// external_id 作幂等键：重复提交返回已有发票
func (s *InvoiceService) Create(ctx context.Context, req *CreateInvoiceRequest) (*model.Invoice, error) {
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return nil, err
	}
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	existing, err := s.invoiceRepo.GetByExternalID(ctx, req.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("查询发票失败: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	invoice := &model.Invoice{
		InvoiceNo:       idgen.GenerateInvoiceNo(),
		ExternalID:      req.ExternalID,
		SupplierID:      req.SupplierID,
		BuyerID:         req.BuyerID,
		FaceValue:       req.FaceValue,
		DiscountRateBps: req.DiscountRateBps,
		MaturityDate:    req.MaturityDate,
		ContentHash:     req.ContentHash,
		Status:          model.InvoiceStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.invoiceRepo.Create(ctx, tx, invoice); err != nil {
			return fmt.Errorf("创建发票失败: %w", err)
		}
		return s.emitInvoiceEvent(ctx, tx, model.EventInvoiceCreated, invoice, req.SupplierID, map[string]interface{}{
			"face_value":        req.FaceValue,
			"discount_rate_bps": req.DiscountRateBps,
			"maturity_date":     req.MaturityDate.Format(time.RFC3339),
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("[Invoice] 建票成功: invoiceNo=%s, supplierID=%d, buyerID=%d, faceValue=%d",
		invoice.InvoiceNo, req.SupplierID, req.BuyerID, req.FaceValue)
	return invoice, nil
}

func (s *InvoiceService) validateCreate(req *CreateInvoiceRequest) error {
	if req.FaceValue <= 0 {
		return fmt.Errorf("%w: 票面金额必须大于0", ErrInvalidParam)
	}
	if req.BuyerID == req.SupplierID {
		return fmt.Errorf("%w: 买方与供应商不能相同", ErrInvalidParam)
	}
	if model.IsSystemHolder(req.BuyerID) || model.IsSystemHolder(req.SupplierID) {
		return fmt.Errorf("%w: 系统保留账户不能作为交易方", ErrInvalidParam)
	}
	if !req.MaturityDate.After(time.Now()) {
		return fmt.Errorf("%w: 到期日必须晚于当前时间", ErrInvalidParam)
	}
	if req.DiscountRateBps < s.cfg.Business.MinDiscountRateBps || req.DiscountRateBps > s.cfg.Business.MaxDiscountRateBps {
		return fmt.Errorf("%w: 贴现率必须在 [%d, %d] 基点之间",
			ErrInvalidParam, s.cfg.Business.MinDiscountRateBps, s.cfg.Business.MaxDiscountRateBps)
	}
	if req.ExternalID == "" {
		return fmt.Errorf("%w: 外部单号不能为空", ErrInvalidParam)
	}
	if req.ContentHash == "" {
		return fmt.Errorf("%w: 内容哈希不能为空", ErrInvalidParam)
	}
	return nil
}

// Approve 买方确认债务：PENDING → APPROVED
// 只有票面上的买方本人可以确认
func (s *InvoiceService) Approve(ctx context.Context, buyerID, invID int64) error {
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return err
	}
	if invoice.BuyerID != buyerID {
		return fmt.Errorf("%w: 只有票面买方可以确认", ErrUnauthorized)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.invoiceRepo.UpdateStatus(ctx, tx, invID, model.InvoiceStatusPending, model.InvoiceStatusApproved); err != nil {
			return err
		}
		return s.emitInvoiceEvent(ctx, tx, model.EventInvoiceApproved, invoice, buyerID, nil)
	})
	if err != nil {
		return err
	}

	log.Printf("[Invoice] 买方确认: invoiceID=%d, buyerID=%d", invID, buyerID)
	return nil
}

// ApproveFunding 运营方批准放款：APPROVED → FUNDING_APPROVED
func (s *InvoiceService) ApproveFunding(ctx context.Context, operatorID, invID int64) error {
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}
	if err := s.access.RequireOperator(ctx, operatorID); err != nil {
		return err
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.invoiceRepo.UpdateStatus(ctx, tx, invID, model.InvoiceStatusApproved, model.InvoiceStatusFundingApproved); err != nil {
			return err
		}
		return s.emitInvoiceEvent(ctx, tx, model.EventInvoiceFundingApproved, invoice, operatorID, nil)
	})
	if err != nil {
		return err
	}

	log.Printf("[Invoice] 批准放款: invoiceID=%d, operatorID=%d", invID, operatorID)
	return nil
}

type BatchApproveResult struct {
	InvoiceID int64  `json:"invoice_id"`
	OK        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
}

// BatchApproveFunding 批量批准放款
//
// 【注意】刻意采用"跳过无效项继续执行"而非整批回滚：
// 批量里混入一张状态不对的发票不应拖垮其余放款审批。
// 逐项返回结果，调用方自行处理失败项。不要把它"修"成全有或全无
func (s *InvoiceService) BatchApproveFunding(ctx context.Context, operatorID int64, invIDs []int64) ([]BatchApproveResult, error) {
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return nil, err
	}
	if err := s.access.RequireOperator(ctx, operatorID); err != nil {
		return nil, err
	}
	if len(invIDs) == 0 {
		return nil, fmt.Errorf("%w: 发票列表不能为空", ErrInvalidParam)
	}

	results := make([]BatchApproveResult, 0, len(invIDs))
	for _, id := range invIDs {
		err := s.ApproveFunding(ctx, operatorID, id)
		if err != nil {
			results = append(results, BatchApproveResult{InvoiceID: id, OK: false, Message: err.Error()})
			continue
		}
		results = append(results, BatchApproveResult{InvoiceID: id, OK: true})
	}

	return results, nil
}

// Cancel 取消发票：PENDING/APPROVED → CANCELLED
// 供应商或买方均可发起；已进入放款流程的发票不可取消
func (s *InvoiceService) Cancel(ctx context.Context, actorID, invID int64) error {
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return err
	}
	if actorID != invoice.SupplierID && actorID != invoice.BuyerID {
		return fmt.Errorf("%w: 只有票面双方可以取消", ErrUnauthorized)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.invoiceRepo.UpdateStatus(ctx, tx, invID, invoice.Status, model.InvoiceStatusCancelled); err != nil {
			return err
		}
		return s.emitInvoiceEvent(ctx, tx, model.EventInvoiceCancelled, invoice, actorID, nil)
	})
	if err != nil {
		return err
	}

	log.Printf("[Invoice] 已取消: invoiceID=%d, actorID=%d", invID, actorID)
	return nil
}

// MarkDefaulted 标记违约：FUNDED → DEFAULTED
// 只能在 到期日+宽限期 之后由运营方发起；
// 同时对资金池做显式坏账核销（份额价格一次性下调）
func (s *InvoiceService) MarkDefaulted(ctx context.Context, operatorID, invID int64) error {
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}
	if err := s.access.RequireOperator(ctx, operatorID); err != nil {
		return err
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invID)
	if err != nil {
		return err
	}

	grace := time.Duration(s.cfg.Business.GracePeriodDays) * 24 * time.Hour
	deadline := invoice.MaturityDate.Add(grace)
	if !time.Now().After(deadline) {
		return fmt.Errorf("%w: 宽限期未过，最早可在 %s 后标记违约", ErrInvalidParam, deadline.Format(time.RFC3339))
	}

	record, err := s.fundingRepo.GetByInvoiceID(ctx, nil, invID)
	if err != nil {
		return fmt.Errorf("查询放款记录失败: %w", err)
	}
	if record == nil || !record.Funded {
		return repository.ErrNotFunded
	}
	if record.Repaid {
		return repository.ErrAlreadyRepaid
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.invoiceRepo.UpdateStatus(ctx, tx, invID, model.InvoiceStatusFunded, model.InvoiceStatusDefaulted); err != nil {
			return err
		}

		// 显式核销占用中的本金，损失即刻由全体 LP 按份额分担
		if err := s.vault.WriteDownLossTx(ctx, tx, record.FundingAmount, invoice.InvoiceNo); err != nil {
			return err
		}

		return s.emitInvoiceEvent(ctx, tx, model.EventInvoiceDefaulted, invoice, operatorID, map[string]interface{}{
			"principal_written_down": record.FundingAmount,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("[Invoice] 已违约核销: invoiceID=%d, operatorID=%d, principal=%d", invID, operatorID, record.FundingAmount)
	return nil
}

// emitInvoiceEvent 事务内写入发票事件
func (s *InvoiceService) emitInvoiceEvent(ctx context.Context, tx *gorm.DB, eventType string, invoice *model.Invoice, actorID int64, extra map[string]interface{}) error {
	payload := map[string]interface{}{
		"type":       eventType,
		"invoice_id": invoice.ID,
		"invoice_no": invoice.InvoiceNo,
		"actor_id":   actorID,
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	for k, v := range extra {
		payload[k] = v
	}
	payloadBytes, _ := json.Marshal(payload)

	outboxMsg := &model.OutboxMessage{
		MessageKey: invoice.InvoiceNo,
		Topic:      s.cfg.Kafka.Topic.InvoiceEvents,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
