package model

import (
	"time"
)

// ============================================================================
// 发票状态常量
// ============================================================================

const (
	InvoiceStatusPending         = "PENDING"          // 供应商已创建，等待买方确认
	InvoiceStatusApproved        = "APPROVED"         // 买方已确认债务
	InvoiceStatusFundingApproved = "FUNDING_APPROVED" // 运营方已批准放款
	InvoiceStatusFunded          = "FUNDED"           // 已放款给供应商
	InvoiceStatusPaid            = "PAID"             // 买方已足额还款（终态）
	InvoiceStatusCancelled       = "CANCELLED"        // 已取消（终态）
	InvoiceStatusDefaulted       = "DEFAULTED"        // 已违约（终态）
)

// ValidInvoiceTransitions 发票状态机
// 状态只能单向推进，终态之后没有任何出边
var ValidInvoiceTransitions = map[string][]string{
	InvoiceStatusPending:         {InvoiceStatusApproved, InvoiceStatusCancelled},
	InvoiceStatusApproved:        {InvoiceStatusFundingApproved, InvoiceStatusCancelled},
	InvoiceStatusFundingApproved: {InvoiceStatusFunded},
	InvoiceStatusFunded:          {InvoiceStatusPaid, InvoiceStatusDefaulted},
}

func CanInvoiceTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidInvoiceTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsTerminalInvoiceStatus 终态判断
func IsTerminalInvoiceStatus(status string) bool {
	return status == InvoiceStatusPaid ||
		status == InvoiceStatusCancelled ||
		status == InvoiceStatusDefaulted
}

// ============================================================================
// 发票实体
// ============================================================================

// Invoice 发票表
// 反向保理业务的核心对象：供应商持有对买方的应收账款，
// 经买方确认、运营方批准后，由资金池提前折价放款
//
// 【重要】发票表设计原则：
// 1. ID 单调递增，永不复用 —— 审计要求
// 2. 只追加，不物理删除 —— 取消/违约都只改状态
// 3. 金额一律为 6 位小数的微单位（1 元 = 1,000,000）
type Invoice struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceNo       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_no"`   // 发票号（雪花ID生成）
	ExternalID      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"external_id"`  // 外部系统单号（幂等键）
	SupplierID      int64      `gorm:"index;not null" json:"supplier_id"`                         // 供应商（收款方）
	BuyerID         int64      `gorm:"index;not null" json:"buyer_id"`                            // 买方（到期还款方）
	FaceValue       int64      `gorm:"not null" json:"face_value"`                                // 票面金额（微单位）
	FundingAmount   int64      `gorm:"not null;default:0" json:"funding_amount"`                  // 实际放款金额，放款时写入
	DiscountRateBps int        `gorm:"not null" json:"discount_rate_bps"`                         // 年化贴现率（基点）
	MaturityDate    time.Time  `gorm:"not null" json:"maturity_date"`                             // 到期日
	ContentHash     string     `gorm:"type:varchar(128);not null" json:"content_hash"`            // 发票内容哈希（防篡改）
	Status          string     `gorm:"type:varchar(20);index;not null" json:"status"`
	FundedAt        *time.Time `json:"funded_at"`
	PaidAt          *time.Time `json:"paid_at"`
	ClosedAt        *time.Time `json:"closed_at"` // 取消/违约时间
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoice"
}
