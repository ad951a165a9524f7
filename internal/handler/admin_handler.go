package handler

import (
	"factorflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 管理接口（OWNER / ROUTER）
// ============================================================

type adminActionRequest struct {
	ActorID int64 `json:"actor_id" binding:"required"`
}

// Pause 全局熔断
// POST /api/v1/admin/pause
func (h *Handler) Pause(c *gin.Context) {
	var req adminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.vaultService.Pause(c.Request.Context(), req.ActorID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "已熔断"})
}

// Unpause 解除熔断
// POST /api/v1/admin/unpause
func (h *Handler) Unpause(c *gin.Context) {
	var req adminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.vaultService.Unpause(c.Request.Context(), req.ActorID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "已解除熔断"})
}

// RoleRequest 角色变更请求
type RoleRequest struct {
	ActorID  int64  `json:"actor_id" binding:"required"`
	Role     string `json:"role" binding:"required"`
	HolderID int64  `json:"holder_id" binding:"required"`
}

// GrantRole 授予角色
// POST /api/v1/admin/role/grant
func (h *Handler) GrantRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accessService.Grant(c.Request.Context(), req.ActorID, req.Role, req.HolderID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "角色已授予"})
}

// RevokeRole 撤销角色
// POST /api/v1/admin/role/revoke
func (h *Handler) RevokeRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accessService.Revoke(c.Request.Context(), req.ActorID, req.Role, req.HolderID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "角色已撤销"})
}

// EmergencyFundRequest 紧急放款请求
type EmergencyFundRequest struct {
	ActorID       int64 `json:"actor_id" binding:"required"`
	InvoiceID     int64 `json:"invoice_id" binding:"required"`
	FundingAmount int64 `json:"funding_amount" binding:"required,gt=0"`
}

// EmergencyFund 紧急放款（不经生命周期模块，ROUTER 角色）
// POST /api/v1/admin/emergency/fund
func (h *Handler) EmergencyFund(c *gin.Context) {
	var req EmergencyFundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.execService.FundInvoice(c.Request.Context(), req.ActorID, req.InvoiceID, req.FundingAmount); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "紧急放款完成"})
}

// EmergencyRepayRequest 紧急收款请求
type EmergencyRepayRequest struct {
	ActorID   int64 `json:"actor_id" binding:"required"`
	InvoiceID int64 `json:"invoice_id" binding:"required"`
}

// EmergencyRepay 紧急收款（不经生命周期模块，ROUTER 角色）
// POST /api/v1/admin/emergency/repay
func (h *Handler) EmergencyRepay(c *gin.Context) {
	var req EmergencyRepayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.execService.ReceiveRepayment(c.Request.Context(), req.ActorID, req.InvoiceID); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "紧急收款完成"})
}
