package model

import (
	"time"
)

// ============================================================================
// 策略类型与桥接划转状态
// ============================================================================

const (
	StrategyKindLocal   = "LOCAL"   // 同域策略：同步存取，价值即时可得
	StrategyKindBridged = "BRIDGED" // 跨域策略：资金经桥转出，价值由报告者异步上报
)

const (
	BridgeTransferStatusPending   = "PENDING"   // 已发起，等待桥确认
	BridgeTransferStatusConfirmed = "CONFIRMED" // 桥已确认收到资金
	BridgeTransferStatusDeployed  = "DEPLOYED"  // 远端已完成部署
	BridgeTransferStatusReceived  = "RECEIVED"  // 回流资金已到账（提取方向的终态）
)

const (
	BridgeDirectionDeposit  = "DEPOSIT"
	BridgeDirectionWithdraw = "WITHDRAW"
)

// ValidBridgeTransitions 桥接划转状态机
// 存入方向：PENDING → CONFIRMED → DEPLOYED
// 提取方向：PENDING → RECEIVED
var ValidBridgeTransitions = map[string][]string{
	BridgeTransferStatusPending:   {BridgeTransferStatusConfirmed, BridgeTransferStatusReceived},
	BridgeTransferStatusConfirmed: {BridgeTransferStatusDeployed},
}

func CanBridgeTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidBridgeTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ============================================================================
// 策略配置实体
// ============================================================================

// StrategyAllocation 收益策略配置表
// 金库将闲置资金按权重分配到各策略；活跃策略权重之和不得超过 10000 基点
//
// 跨域策略的价值估算：last_reported_value + pending_deposits - pending_withdrawals
// 超过新鲜度上限后该估算视为不可靠，调用方必须拒绝使用
type StrategyAllocation struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	StrategyID         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"strategy_id"`
	Kind               string     `gorm:"type:varchar(20);not null" json:"kind"`
	WeightBps          int        `gorm:"not null;default:0" json:"weight_bps"`
	CurrentValue       int64      `gorm:"not null;default:0" json:"current_value"`        // 同域策略的实际价值（微单位）
	PendingDeposits    int64      `gorm:"not null;default:0" json:"pending_deposits"`     // 在途存入（仅跨域）
	PendingWithdrawals int64      `gorm:"not null;default:0" json:"pending_withdrawals"`  // 在途提取（仅跨域）
	LastReportedValue  int64      `gorm:"not null;default:0" json:"last_reported_value"`  // 报告者最近上报的远端价值
	LastReportedAt     *time.Time `json:"last_reported_at"`
	Instant            bool       `gorm:"not null;default:false" json:"instant"` // 是否支持即时提取
	Active             bool       `gorm:"not null;default:true;index" json:"active"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StrategyAllocation) TableName() string {
	return "strategy_allocation"
}

// BridgeTransfer 跨域划转表
// 每一笔经桥的资金移动都是一个显式状态机，transfer_id 为 UUID
type BridgeTransfer struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransferID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transfer_id"`
	StrategyID string    `gorm:"type:varchar(64);index;not null" json:"strategy_id"`
	Direction  string    `gorm:"type:varchar(16);not null" json:"direction"`
	Amount     int64     `gorm:"not null" json:"amount"` // 微单位
	Status     string    `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BridgeTransfer) TableName() string {
	return "bridge_transfer"
}
