package repository

import (
	"context"
	"errors"
	"time"

	"factorflow/internal/model"

	"gorm.io/gorm"
)

var (
	ErrInvoiceNotFound      = errors.New("发票不存在")
	ErrInvoiceStatusInvalid = errors.New("发票状态不合法")
	ErrDuplicateExternalID  = errors.New("外部单号已存在")
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// GetByExternalID 幂等键查询，未找到返回 nil 而非错误
func (r *InvoiceRepository) GetByExternalID(ctx context.Context, externalID string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// UpdateStatus 状态迁移（带状态机校验与 CAS 条件更新）
// WHERE 带上 fromStatus，RowsAffected==0 说明并发迁移已发生
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if !model.CanInvoiceTransitionTo(fromStatus, toStatus) {
		return ErrInvoiceStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}

	now := time.Now()
	switch toStatus {
	case model.InvoiceStatusPaid:
		updates["paid_at"] = &now
	case model.InvoiceStatusCancelled, model.InvoiceStatusDefaulted:
		updates["closed_at"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrInvoiceStatusInvalid
	}

	return nil
}

// MarkFunded 放款迁移：FUNDING_APPROVED → FUNDED，同时写入放款金额与时间
func (r *InvoiceRepository) MarkFunded(ctx context.Context, tx *gorm.DB, id int64, fundingAmount int64, fundedAt time.Time) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status = ?", id, model.InvoiceStatusFundingApproved).
		Updates(map[string]interface{}{
			"status":         model.InvoiceStatusFunded,
			"funding_amount": fundingAmount,
			"funded_at":      &fundedAt,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrInvoiceStatusInvalid
	}

	return nil
}

func (r *InvoiceRepository) ListBySupplier(ctx context.Context, supplierID int64, page, pageSize int) ([]*model.Invoice, int64, error) {
	return r.listByParty(ctx, "supplier_id", supplierID, page, pageSize)
}

func (r *InvoiceRepository) ListByBuyer(ctx context.Context, buyerID int64, page, pageSize int) ([]*model.Invoice, int64, error) {
	return r.listByParty(ctx, "buyer_id", buyerID, page, pageSize)
}

func (r *InvoiceRepository) listByParty(ctx context.Context, column string, partyID int64, page, pageSize int) ([]*model.Invoice, int64, error) {
	var invoices []*model.Invoice
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Invoice{}).Where(column+" = ?", partyID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&invoices).Error

	return invoices, total, err
}

// GetFundedMaturedBefore 查询已放款且到期日早于 before 的发票（逾期监控用）
func (r *InvoiceRepository) GetFundedMaturedBefore(ctx context.Context, before time.Time, limit int) ([]*model.Invoice, error) {
	var invoices []*model.Invoice
	err := r.db.WithContext(ctx).
		Where("status = ? AND maturity_date < ?", model.InvoiceStatusFunded, before).
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

// GetRecentFunded 查询最近进入 FUNDED 状态的发票（对账任务用）
func (r *InvoiceRepository) GetRecentFunded(ctx context.Context, since time.Time, limit int) ([]*model.Invoice, error) {
	var invoices []*model.Invoice
	err := r.db.WithContext(ctx).
		Where("status = ? AND funded_at > ?", model.InvoiceStatusFunded, since).
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

type StatusCount struct {
	Status string
	Count  int64
}

func (r *InvoiceRepository) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// SumByStatus 某状态下的票面金额与放款金额合计
func (r *InvoiceRepository) SumByStatus(ctx context.Context, status string) (faceTotal, fundingTotal int64, err error) {
	var row struct {
		FaceTotal    int64
		FundingTotal int64
	}
	err = r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Select("COALESCE(SUM(face_value),0) as face_total, COALESCE(SUM(funding_amount),0) as funding_total").
		Where("status = ?", status).
		Scan(&row).Error
	return row.FaceTotal, row.FundingTotal, err
}
