package handler

import (
	"time"

	"factorflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 金库接口
// ============================================================

// AddStrategyRequest 注册策略请求
type AddStrategyRequest struct {
	ActorID    int64  `json:"actor_id" binding:"required"`
	StrategyID string `json:"strategy_id" binding:"required"`
	Kind       string `json:"kind" binding:"required"` // LOCAL / BRIDGED
	WeightBps  int    `json:"weight_bps"`
	Instant    bool   `json:"instant"`
}

// AddStrategy 注册收益策略
// POST /api/v1/treasury/strategy/add
func (h *Handler) AddStrategy(c *gin.Context) {
	var req AddStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.treasuryService.AddStrategy(c.Request.Context(), req.ActorID, req.StrategyID, req.Kind, req.WeightBps, req.Instant)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "策略已注册"})
}

// SetWeightRequest 调整权重请求
type SetWeightRequest struct {
	ActorID    int64  `json:"actor_id" binding:"required"`
	StrategyID string `json:"strategy_id" binding:"required"`
	WeightBps  int    `json:"weight_bps"`
}

// SetStrategyWeight 调整策略权重
// POST /api/v1/treasury/strategy/set-weight
func (h *Handler) SetStrategyWeight(c *gin.Context) {
	var req SetWeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.treasuryService.SetWeight(c.Request.Context(), req.ActorID, req.StrategyID, req.WeightBps); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "权重已调整"})
}

// RemoveStrategyRequest 移除策略请求
type RemoveStrategyRequest struct {
	ActorID    int64  `json:"actor_id" binding:"required"`
	StrategyID string `json:"strategy_id" binding:"required"`
}

// RemoveStrategy 移除策略（先撤回价值，再停用）
// POST /api/v1/treasury/strategy/remove
func (h *Handler) RemoveStrategy(c *gin.Context) {
	var req RemoveStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.treasuryService.RemoveStrategy(c.Request.Context(), req.ActorID, req.StrategyID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "策略已移除"})
}

// ListStrategies 活跃策略一览
// GET /api/v1/treasury/strategy/list
func (h *Handler) ListStrategies(c *gin.Context) {
	views, err := h.treasuryService.ListStrategies(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"list": views})
}

// TreasuryMoveRequest 金库划转请求
type TreasuryMoveRequest struct {
	ActorID int64 `json:"actor_id" binding:"required"`
	Amount  int64 `json:"amount" binding:"required,gt=0"`
}

// TreasuryDeposit 资金池闲置资金划入金库
// POST /api/v1/treasury/deposit
func (h *Handler) TreasuryDeposit(c *gin.Context) {
	var req TreasuryMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.treasuryService.Deposit(c.Request.Context(), req.ActorID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// TreasuryWithdraw 金库召回资金到资金池
// POST /api/v1/treasury/withdraw
func (h *Handler) TreasuryWithdraw(c *gin.Context) {
	var req TreasuryMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.treasuryService.Withdraw(c.Request.Context(), req.ActorID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// RebalanceRequest 再平衡请求
type RebalanceRequest struct {
	ActorID int64 `json:"actor_id" binding:"required"`
}

// Rebalance 按权重再平衡（受冷却时间限制）
// POST /api/v1/treasury/rebalance
func (h *Handler) Rebalance(c *gin.Context) {
	var req RebalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.treasuryService.Rebalance(c.Request.Context(), req.ActorID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "再平衡完成"})
}

// ============================================================
// 跨域回调接口（REPORTER 角色）
// ============================================================

// ConfirmDepositRequest 桥确认存入请求
type ConfirmDepositRequest struct {
	ActorID    int64  `json:"actor_id" binding:"required"`
	TransferID string `json:"transfer_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
}

// ConfirmBridgeDeposit 桥确认收到存入资金
// POST /api/v1/treasury/bridge/confirm-deposit
func (h *Handler) ConfirmBridgeDeposit(c *gin.Context) {
	var req ConfirmDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.treasuryService.ConfirmDeposit(c.Request.Context(), req.ActorID, req.TransferID, req.Amount); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "存入已确认"})
}

// UpdateRemoteValueRequest 远端价值上报请求
type UpdateRemoteValueRequest struct {
	ActorID    int64  `json:"actor_id" binding:"required"`
	StrategyID string `json:"strategy_id" binding:"required"`
	Value      int64  `json:"value"`
	AsOf       string `json:"as_of"` // RFC3339，缺省取当前时间
}

// UpdateRemoteValue 报告者上报远端策略价值
// POST /api/v1/treasury/bridge/report-value
func (h *Handler) UpdateRemoteValue(c *gin.Context) {
	var req UpdateRemoteValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	asOf := time.Now()
	if req.AsOf != "" {
		parsed, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			response.ParamError(c, "as_of 必须是 RFC3339 格式")
			return
		}
		asOf = parsed
	}

	if err := h.treasuryService.UpdateRemoteValue(c.Request.Context(), req.ActorID, req.StrategyID, req.Value, asOf); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "价值已上报"})
}

// ReceiveBridgedFundsRequest 跨域资金回流请求
type ReceiveBridgedFundsRequest struct {
	ActorID    int64  `json:"actor_id" binding:"required"`
	TransferID string `json:"transfer_id" binding:"required"`
}

// ReceiveBridgedFunds 桥回流资金到账
// POST /api/v1/treasury/bridge/receive-funds
func (h *Handler) ReceiveBridgedFunds(c *gin.Context) {
	var req ReceiveBridgedFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.treasuryService.ReceiveBridgedFunds(c.Request.Context(), req.ActorID, req.TransferID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "资金已回流"})
}
