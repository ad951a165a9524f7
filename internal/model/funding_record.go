package model

import (
	"time"
)

// FundingRecord 放款记录表
// 由执行层独立维护，与发票表的 status 字段互为交叉校验：
// 即使生命周期模块出现状态漂移，资金是否真正出账以本表为准
//
// 不变式：repaid 只能置位一次，且必须在 funded 之后
type FundingRecord struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceID     int64      `gorm:"uniqueIndex;not null" json:"invoice_id"`
	SupplierID    int64      `gorm:"index;not null" json:"supplier_id"`
	FundingAmount int64      `gorm:"not null" json:"funding_amount"` // 放款金额（微单位）
	FaceValue     int64      `gorm:"not null" json:"face_value"`     // 票面金额（微单位）
	Funded        bool       `gorm:"not null;default:false" json:"funded"`
	Repaid        bool       `gorm:"not null;default:false" json:"repaid"`
	FundedAt      *time.Time `json:"funded_at"`
	RepaidAt      *time.Time `json:"repaid_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FundingRecord) TableName() string {
	return "funding_record"
}
