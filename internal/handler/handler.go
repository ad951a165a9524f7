package handler

import (
	"errors"
	"strconv"
	"time"

	"factorflow/internal/config"
	"factorflow/internal/repository"
	"factorflow/internal/service"
	"factorflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService  *service.AccountService
	invoiceService  *service.InvoiceService
	fundingService  *service.FundingService
	repayService    *service.RepaymentService
	vaultService    *service.VaultService
	treasuryService *service.TreasuryService
	execService     *service.ExecutionService
	accessService   *service.AccessService
	queryService    *service.QueryService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	vaultService := service.NewVaultService(db, cfg)
	execService := service.NewExecutionService(db, cfg, vaultService)
	invoiceService := service.NewInvoiceService(db, cfg, vaultService)

	return &Handler{
		accountService:  service.NewAccountService(db, vaultService),
		invoiceService:  invoiceService,
		fundingService:  service.NewFundingService(db, rdb, cfg, vaultService, execService, invoiceService),
		repayService:    service.NewRepaymentService(db, rdb, cfg, vaultService, execService, invoiceService),
		vaultService:    vaultService,
		treasuryService: service.NewTreasuryService(db, rdb, cfg, vaultService),
		execService:     execService,
		accessService:   service.NewAccessService(db),
		queryService:    service.NewQueryService(db),
	}
}

// writeError 业务错误 → 统一业务码
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrInvalidParam):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrSystemPaused):
		response.BusinessError(c, response.CodeSystemPaused, err.Error())
	case errors.Is(err, service.ErrInsufficientLiquidity):
		response.BusinessError(c, response.CodeInsufficientLiquidity, err.Error())
	case errors.Is(err, service.ErrValueStale):
		response.BusinessError(c, response.CodeValueStale, err.Error())
	case errors.Is(err, service.ErrRebalanceCooldown):
		response.BusinessError(c, response.CodeRebalanceCooldown, err.Error())
	case errors.Is(err, repository.ErrAlreadyFunded), errors.Is(err, repository.ErrAlreadyRepaid):
		response.BusinessError(c, response.CodeAlreadyProcessed, err.Error())
	case errors.Is(err, repository.ErrInvoiceStatusInvalid),
		errors.Is(err, repository.ErrTransferStatusInvalid),
		errors.Is(err, repository.ErrNotFunded):
		response.BusinessError(c, response.CodeInvoiceStatusInvalid, err.Error())
	case errors.Is(err, repository.ErrInvoiceNotFound):
		response.BusinessError(c, response.CodeInvoiceNotFound, err.Error())
	case errors.Is(err, repository.ErrStrategyNotFound), errors.Is(err, repository.ErrTransferNotFound):
		response.BusinessError(c, response.CodeStrategyNotFound, err.Error())
	case errors.Is(err, repository.ErrBalanceNotEnough), errors.Is(err, repository.ErrSharesNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

func parseInt64Query(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return value, true
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询账户余额
// GET /api/v1/account/balance?holder_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	holderID, ok := parseInt64Query(c, "holder_id")
	if !ok {
		return
	}

	balance, err := h.accountService.GetBalance(c.Request.Context(), holderID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"holder_id": holderID,
		"balance":   balance,
	})
}

// RechargeRequest 充值请求
type RechargeRequest struct {
	HolderID int64  `json:"holder_id" binding:"required"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	RefNo    string `json:"ref_no" binding:"required"`
}

// Recharge 充值接口（简化版，实际应该走支付渠道回调）
// POST /api/v1/account/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.Recharge(c.Request.Context(), req.HolderID, req.Amount, req.RefNo); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "充值成功",
	})
}

// ListTransactions 查询账户流水
// GET /api/v1/account/transactions?holder_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	holderID, ok := parseInt64Query(c, "holder_id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	result, err := h.accountService.ListTransactions(c.Request.Context(), holderID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 发票生命周期接口
// ============================================================

// CreateInvoiceRequest 建票请求
type CreateInvoiceRequest struct {
	ExternalID      string `json:"external_id" binding:"required"` // 幂等ID
	SupplierID      int64  `json:"supplier_id" binding:"required"`
	BuyerID         int64  `json:"buyer_id" binding:"required"`
	FaceValue       int64  `json:"face_value" binding:"required,gt=0"`
	DiscountRateBps int    `json:"discount_rate_bps" binding:"required,gt=0"`
	MaturityDate    string `json:"maturity_date" binding:"required"` // RFC3339
	ContentHash     string `json:"content_hash" binding:"required"`
}

// CreateInvoice 供应商建票
// POST /api/v1/invoice/create
func (h *Handler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	maturity, err := time.Parse(time.RFC3339, req.MaturityDate)
	if err != nil {
		response.ParamError(c, "maturity_date 必须是 RFC3339 格式")
		return
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), &service.CreateInvoiceRequest{
		ExternalID:      req.ExternalID,
		SupplierID:      req.SupplierID,
		BuyerID:         req.BuyerID,
		FaceValue:       req.FaceValue,
		DiscountRateBps: req.DiscountRateBps,
		MaturityDate:    maturity,
		ContentHash:     req.ContentHash,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"invoice_id": invoice.ID,
		"invoice_no": invoice.InvoiceNo,
		"status":     invoice.Status,
	})
}

type invoiceActionRequest struct {
	ActorID   int64 `json:"actor_id" binding:"required"`
	InvoiceID int64 `json:"invoice_id" binding:"required"`
}

// ApproveInvoice 买方确认债务
// POST /api/v1/invoice/approve
func (h *Handler) ApproveInvoice(c *gin.Context) {
	var req invoiceActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.invoiceService.Approve(c.Request.Context(), req.ActorID, req.InvoiceID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "已确认"})
}

// ApproveFunding 运营方批准放款
// POST /api/v1/invoice/approve-funding
func (h *Handler) ApproveFunding(c *gin.Context) {
	var req invoiceActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.invoiceService.ApproveFunding(c.Request.Context(), req.ActorID, req.InvoiceID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "已批准放款"})
}

// BatchApproveFundingRequest 批量批准放款请求
type BatchApproveFundingRequest struct {
	ActorID    int64   `json:"actor_id" binding:"required"`
	InvoiceIDs []int64 `json:"invoice_ids" binding:"required"`
}

// BatchApproveFunding 批量批准放款（逐项返回结果，失败项不影响其他项）
// POST /api/v1/invoice/batch-approve-funding
func (h *Handler) BatchApproveFunding(c *gin.Context) {
	var req BatchApproveFundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	results, err := h.invoiceService.BatchApproveFunding(c.Request.Context(), req.ActorID, req.InvoiceIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"results": results})
}

// CancelInvoice 取消发票
// POST /api/v1/invoice/cancel
func (h *Handler) CancelInvoice(c *gin.Context) {
	var req invoiceActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.invoiceService.Cancel(c.Request.Context(), req.ActorID, req.InvoiceID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "已取消"})
}

// MarkDefaulted 标记违约
// POST /api/v1/invoice/mark-defaulted
func (h *Handler) MarkDefaulted(c *gin.Context) {
	var req invoiceActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.invoiceService.MarkDefaulted(c.Request.Context(), req.ActorID, req.InvoiceID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "已标记违约"})
}

// RequestFunding 供应商请求放款
// POST /api/v1/invoice/request-funding
func (h *Handler) RequestFunding(c *gin.Context) {
	var req invoiceActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.fundingService.RequestFunding(c.Request.Context(), req.ActorID, req.InvoiceID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// PreviewFunding 放款条款预览
// GET /api/v1/invoice/preview-funding?invoice_id=xxx
func (h *Handler) PreviewFunding(c *gin.Context) {
	invoiceID, ok := parseInt64Query(c, "invoice_id")
	if !ok {
		return
	}

	result, err := h.fundingService.PreviewFunding(c.Request.Context(), invoiceID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// ProcessRepayment 买方到期还款
// POST /api/v1/invoice/repay
func (h *Handler) ProcessRepayment(c *gin.Context) {
	var req invoiceActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.repayService.ProcessRepayment(c.Request.Context(), req.ActorID, req.InvoiceID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// GetInvoice 查询发票详情
// GET /api/v1/invoice/detail?invoice_id=xxx
func (h *Handler) GetInvoice(c *gin.Context) {
	invoiceID, ok := parseInt64Query(c, "invoice_id")
	if !ok {
		return
	}

	invoice, err := h.queryService.GetInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, invoice)
}

// ListInvoices 查询发票列表（按供应商或买方）
// GET /api/v1/invoice/list?supplier_id=xxx 或 ?buyer_id=xxx
func (h *Handler) ListInvoices(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	if supplierStr := c.Query("supplier_id"); supplierStr != "" {
		supplierID, err := strconv.ParseInt(supplierStr, 10, 64)
		if err != nil {
			response.ParamError(c, "supplier_id 参数错误")
			return
		}
		result, err := h.queryService.ListBySupplier(c.Request.Context(), supplierID, page, pageSize)
		if err != nil {
			writeError(c, err)
			return
		}
		response.Success(c, result)
		return
	}

	buyerID, ok := parseInt64Query(c, "buyer_id")
	if !ok {
		return
	}
	result, err := h.queryService.ListByBuyer(c.Request.Context(), buyerID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// GetStats 全局运营快照
// GET /api/v1/stats
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.queryService.GetStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, stats)
}
