package model

import (
	"time"
)

// ============================================================================
// 系统账户
// ============================================================================

// 结算资产通过内部账户表流转，以下为保留的系统账户ID
// 普通参与方（供应商/买方/LP）的 HolderID 由业务方分配，必须大于系统账户区间
const (
	SystemHolderDeadShares int64 = 0 // 死份额持有者（首存保护，永不可取）
	SystemHolderVault      int64 = 1 // 资金池账户
	SystemHolderTreasury   int64 = 2 // 金库账户（闲置资金策略层）
	SystemHolderBridge     int64 = 3 // 跨域桥托管账户
)

// IsSystemHolder 保留账户不允许作为外部请求的操作者
func IsSystemHolder(holderID int64) bool {
	return holderID >= SystemHolderDeadShares && holderID <= SystemHolderBridge
}

// Account 结算资产账户表
// 记录每个参与方持有的结算资产余额，是所有资金物理流转的落点
type Account struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	HolderID     int64     `gorm:"uniqueIndex;not null" json:"holder_id"`   // 参与方ID（含系统账户）
	Balance      int64     `gorm:"not null;default:0" json:"balance"`       // 可用余额（微单位）
	FrozenAmount int64     `gorm:"not null;default:0" json:"frozen_amount"` // 冻结金额（预留，暂不使用）
	Version      int       `gorm:"not null;default:0" json:"version"`       // 乐观锁版本号
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
