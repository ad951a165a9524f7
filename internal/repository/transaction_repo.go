package repository

import (
	"context"

	"factorflow/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.AccountTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByRefNo(ctx context.Context, refNo string) ([]*model.AccountTransaction, error) {
	var transactions []*model.AccountTransaction
	err := r.db.WithContext(ctx).
		Where("ref_no = ?", refNo).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) GetByHolderIDAndRefNo(ctx context.Context, holderID int64, refNo string) (*model.AccountTransaction, error) {
	var trans model.AccountTransaction
	err := r.db.WithContext(ctx).
		Where("holder_id = ? AND ref_no = ?", holderID, refNo).
		First(&trans).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) ListByHolderID(ctx context.Context, holderID int64, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	var transactions []*model.AccountTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.AccountTransaction{}).Where("holder_id = ?", holderID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
