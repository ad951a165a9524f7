package handler

import (
	"factorflow/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 账户相关
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.POST("/recharge", h.Recharge)
			account.GET("/transactions", h.ListTransactions)
		}

		// 发票生命周期
		invoice := api.Group("/invoice")
		{
			invoice.POST("/create", h.CreateInvoice)
			invoice.POST("/approve", h.ApproveInvoice)
			invoice.POST("/approve-funding", h.ApproveFunding)
			invoice.POST("/batch-approve-funding", h.BatchApproveFunding)
			invoice.POST("/cancel", h.CancelInvoice)
			invoice.POST("/mark-defaulted", h.MarkDefaulted)
			invoice.POST("/request-funding", h.RequestFunding)
			invoice.GET("/preview-funding", h.PreviewFunding)
			invoice.POST("/repay", h.ProcessRepayment)
			invoice.GET("/detail", h.GetInvoice)
			invoice.GET("/list", h.ListInvoices)
		}

		// 资金池
		vault := api.Group("/vault")
		{
			vault.POST("/deposit", h.VaultDeposit)
			vault.POST("/withdraw", h.VaultWithdraw)
			vault.GET("/state", h.GetVaultState)
			vault.GET("/position", h.GetVaultPosition)
			vault.GET("/convert", h.ConvertShares)
		}

		// 金库
		treasury := api.Group("/treasury")
		{
			treasury.POST("/strategy/add", h.AddStrategy)
			treasury.POST("/strategy/set-weight", h.SetStrategyWeight)
			treasury.POST("/strategy/remove", h.RemoveStrategy)
			treasury.GET("/strategy/list", h.ListStrategies)
			treasury.POST("/deposit", h.TreasuryDeposit)
			treasury.POST("/withdraw", h.TreasuryWithdraw)
			treasury.POST("/rebalance", h.Rebalance)
			treasury.POST("/bridge/confirm-deposit", h.ConfirmBridgeDeposit)
			treasury.POST("/bridge/report-value", h.UpdateRemoteValue)
			treasury.POST("/bridge/receive-funds", h.ReceiveBridgedFunds)
		}

		// 管理
		admin := api.Group("/admin")
		{
			admin.POST("/pause", h.Pause)
			admin.POST("/unpause", h.Unpause)
			admin.POST("/role/grant", h.GrantRole)
			admin.POST("/role/revoke", h.RevokeRole)
			admin.POST("/emergency/fund", h.EmergencyFund)
			admin.POST("/emergency/repay", h.EmergencyRepay)
		}

		// 运营快照
		api.GET("/stats", h.GetStats)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
