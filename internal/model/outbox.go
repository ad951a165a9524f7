package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// ============================================================================
// 事件类型常量
// ============================================================================

// 每一次状态迁移都会在同一数据库事务内写入一条 outbox 消息，
// 由后台任务投递到 Kafka；下游索引系统依赖事件的完整性与顺序
const (
	EventInvoiceCreated         = "invoice.created"
	EventInvoiceApproved        = "invoice.approved"
	EventInvoiceFundingApproved = "invoice.funding_approved"
	EventInvoiceFunded          = "invoice.funded"
	EventInvoicePaid            = "invoice.paid"
	EventInvoiceCancelled       = "invoice.cancelled"
	EventInvoiceDefaulted       = "invoice.defaulted"
	EventInvoiceOverdue         = "invoice.overdue"

	EventVaultDeposit       = "vault.deposit"
	EventVaultWithdraw      = "vault.withdraw"
	EventVaultDeployed      = "vault.deployed"
	EventVaultRepaid        = "vault.repaid"
	EventVaultLossWriteDown = "vault.loss_written_down"
	EventVaultPaused        = "vault.paused"
	EventVaultUnpaused      = "vault.unpaused"

	EventTreasuryDeposit   = "treasury.deposit"
	EventTreasuryWithdraw  = "treasury.withdraw"
	EventTreasuryRebalance = "treasury.rebalance"
)

// OutboxMessage 事务性发件箱
// 业务写库与消息写入同一事务，保证"状态已变更但事件丢失"不可能发生
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
