package model

import (
	"time"
)

// ============================================================================
// 资金流水类型常量
// ============================================================================

const (
	TransactionTypeRecharge       = "RECHARGE"        // 充值（结算资产入金）
	TransactionTypeVaultDeposit   = "VAULT_DEPOSIT"   // LP 存入资金池
	TransactionTypeVaultWithdraw  = "VAULT_WITHDRAW"  // LP 从资金池取回
	TransactionTypeFunding        = "FUNDING"         // 放款给供应商
	TransactionTypeRepayment      = "REPAYMENT"       // 买方到期还款
	TransactionTypeTreasuryMove   = "TREASURY_MOVE"   // 资金池与金库之间划转
	TransactionTypeBridgeTransfer = "BRIDGE_TRANSFER" // 跨域桥出入金
)

// ============================================================================
// 资金流水实体
// ============================================================================

// AccountTransaction 资金流水表
// 记录账户的每一笔资金变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每笔流水必须关联业务单号（发票号/划转号）—— 便于对账
// 3. 记录交易前后余额 —— 便于校验余额一致性
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	HolderID      int64     `gorm:"index;not null" json:"holder_id"`                             // 账户持有方
	RefNo         string    `gorm:"type:varchar(64);index;not null" json:"ref_no"`               // 关联业务单号
	Amount        int64     `gorm:"not null" json:"amount"`                                      // 金额（正数入账，负数出账）
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
