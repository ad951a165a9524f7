package handler

import (
	"factorflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 资金池接口
// ============================================================

// VaultDepositRequest 存入请求
type VaultDepositRequest struct {
	HolderID int64 `json:"holder_id" binding:"required"`
	Assets   int64 `json:"assets" binding:"required,gt=0"`
}

// VaultDeposit LP 存入结算资产，铸造份额
// POST /api/v1/vault/deposit
func (h *Handler) VaultDeposit(c *gin.Context) {
	var req VaultDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.vaultService.Deposit(c.Request.Context(), req.HolderID, req.Assets)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// VaultWithdrawRequest 取回请求
type VaultWithdrawRequest struct {
	HolderID int64 `json:"holder_id" binding:"required"`
	Assets   int64 `json:"assets" binding:"required,gt=0"`
}

// VaultWithdraw LP 取回资产，销毁份额
// POST /api/v1/vault/withdraw
func (h *Handler) VaultWithdraw(c *gin.Context) {
	var req VaultWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.vaultService.Withdraw(c.Request.Context(), req.HolderID, req.Assets)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// GetVaultState 资金池三桶账快照
// GET /api/v1/vault/state
func (h *Handler) GetVaultState(c *gin.Context) {
	state, err := h.vaultService.GetState(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"total_shares":        state.TotalShares,
		"total_assets":        state.TotalAssets(),
		"available_liquidity": state.AvailableLiquidity,
		"total_deployed":      state.TotalDeployed,
		"total_in_treasury":   state.TotalInTreasury,
		"paused":              state.Paused,
	})
}

// GetVaultPosition 持有人份额持仓与可取回上限
// GET /api/v1/vault/position?holder_id=xxx
func (h *Handler) GetVaultPosition(c *gin.Context) {
	holderID, ok := parseInt64Query(c, "holder_id")
	if !ok {
		return
	}

	shares, err := h.queryService.GetPosition(c.Request.Context(), holderID)
	if err != nil {
		writeError(c, err)
		return
	}

	maxWithdraw, err := h.vaultService.MaxWithdraw(c.Request.Context(), holderID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"holder_id":    holderID,
		"shares":       shares,
		"max_withdraw": maxWithdraw,
	})
}

// ConvertShares 份额/资产换算
// GET /api/v1/vault/convert?assets=xxx 或 ?shares=xxx
func (h *Handler) ConvertShares(c *gin.Context) {
	if assetsStr := c.Query("assets"); assetsStr != "" {
		assets, ok := parseInt64Query(c, "assets")
		if !ok {
			return
		}
		shares, err := h.vaultService.ConvertToShares(c.Request.Context(), assets)
		if err != nil {
			writeError(c, err)
			return
		}
		response.Success(c, gin.H{"assets": assets, "shares": shares})
		return
	}

	shares, ok := parseInt64Query(c, "shares")
	if !ok {
		return
	}
	assets, err := h.vaultService.ConvertToAssets(c.Request.Context(), shares)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"shares": shares, "assets": assets})
}
