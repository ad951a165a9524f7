package model

import (
	"time"
)

// 份额精度：空池首存时 1 微单位资产铸造 10^6 份额
// 放大份额精度可以降低后续舍入对小额 LP 的影响
const ShareScale int64 = 1_000_000

// VaultState 资金池状态表（单例行，ID 恒为 1）
//
// 【核心不变式】totalAssets = available_liquidity + total_deployed + total_in_treasury
// 三桶账必须在每一次写入后重新对平，任何违背都视为严重故障
//
// 份额价格 = totalAssets / totalShares，除显式坏账核销外永不下降
type VaultState struct {
	ID                 int64     `gorm:"primaryKey" json:"id"`
	TotalShares        int64     `gorm:"not null;default:0" json:"total_shares"`
	AvailableLiquidity int64     `gorm:"not null;default:0" json:"available_liquidity"` // 可即时取用的流动性（微单位）
	TotalDeployed      int64     `gorm:"not null;default:0" json:"total_deployed"`      // 已放款占用的本金（微单位）
	TotalInTreasury    int64     `gorm:"not null;default:0" json:"total_in_treasury"`   // 已划入金库的闲置资金（微单位）
	Paused             bool      `gorm:"not null;default:false" json:"paused"`          // 全局熔断开关
	Version            int       `gorm:"not null;default:0" json:"version"`             // 乐观锁版本号
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (VaultState) TableName() string {
	return "vault_state"
}

// TotalAssets 三桶合计
func (v *VaultState) TotalAssets() int64 {
	return v.AvailableLiquidity + v.TotalDeployed + v.TotalInTreasury
}

// SharePosition 份额持仓表
// 每个 LP 一行；死份额挂在保留账户 SystemHolderDeadShares 上
type SharePosition struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	HolderID  int64     `gorm:"uniqueIndex;not null" json:"holder_id"`
	Shares    int64     `gorm:"not null;default:0" json:"shares"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SharePosition) TableName() string {
	return "share_position"
}
