package model

import (
	"time"
)

// ============================================================================
// 角色常量
// ============================================================================

const (
	RoleOwner    = "OWNER"    // 系统所有者：熔断、角色管理、紧急恢复
	RoleOperator = "OPERATOR" // 运营方：批准放款、标记违约
	RoleRouter   = "ROUTER"   // 执行层能力：动用资金池的 deployed 桶
	RoleTreasury = "TREASURY" // 金库能力：动用资金池的 treasury 桶
	RoleReporter = "REPORTER" // 跨域报告者：上报远端策略价值
)

// RoleBinding 角色绑定表
// 每一次特权操作前都要查询本表；角色可授予多个持有者
type RoleBinding struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Role      string    `gorm:"type:varchar(20);uniqueIndex:idx_role_holder;not null" json:"role"`
	HolderID  int64     `gorm:"uniqueIndex:idx_role_holder;not null" json:"holder_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (RoleBinding) TableName() string {
	return "role_binding"
}
