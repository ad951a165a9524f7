package repository

import (
	"context"
	"errors"
	"time"

	"factorflow/internal/model"

	"gorm.io/gorm"
)

var (
	ErrFundingRecordNotFound = errors.New("放款记录不存在")
	ErrAlreadyFunded         = errors.New("发票已放款，请勿重复操作")
	ErrAlreadyRepaid         = errors.New("发票已还款，请勿重复操作")
	ErrNotFunded             = errors.New("发票尚未放款")
)

type FundingRecordRepository struct {
	db *gorm.DB
}

func NewFundingRecordRepository(db *gorm.DB) *FundingRecordRepository {
	return &FundingRecordRepository{db: db}
}

func (r *FundingRecordRepository) Create(ctx context.Context, tx *gorm.DB, record *model.FundingRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

// GetByInvoiceID 未找到返回 nil 而非错误（放款前本来就没有记录）
// 放款幂等预检必须带上调用方事务读取，避免读到事务外的旧快照
func (r *FundingRecordRepository) GetByInvoiceID(ctx context.Context, tx *gorm.DB, invoiceID int64) (*model.FundingRecord, error) {
	if tx == nil {
		tx = r.db
	}

	var record model.FundingRecord
	err := tx.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// MarkRepaid 置位还款标记
// WHERE 同时要求 funded=true 且 repaid=false：
// repaid 只能置位一次，且必须在 funded 之后，由数据库条件强制
func (r *FundingRecordRepository) MarkRepaid(ctx context.Context, tx *gorm.DB, invoiceID int64) error {
	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.FundingRecord{}).
		Where("invoice_id = ? AND funded = ? AND repaid = ?", invoiceID, true, false).
		Updates(map[string]interface{}{
			"repaid":    true,
			"repaid_at": &now,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		record, err := r.GetByInvoiceID(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if record == nil || !record.Funded {
			return ErrNotFunded
		}
		return ErrAlreadyRepaid
	}

	return nil
}
