package repository

import (
	"context"
	"errors"
	"time"

	"factorflow/internal/model"

	"gorm.io/gorm"
)

var (
	ErrStrategyNotFound      = errors.New("策略不存在")
	ErrStrategyExists        = errors.New("策略已存在")
	ErrTransferNotFound      = errors.New("跨域划转不存在")
	ErrTransferStatusInvalid = errors.New("跨域划转状态不合法")
)

type StrategyRepository struct {
	db *gorm.DB
}

func NewStrategyRepository(db *gorm.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

func (r *StrategyRepository) Create(ctx context.Context, tx *gorm.DB, strategy *model.StrategyAllocation) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(strategy).Error
}

func (r *StrategyRepository) GetByStrategyID(ctx context.Context, strategyID string) (*model.StrategyAllocation, error) {
	var strategy model.StrategyAllocation
	err := r.db.WithContext(ctx).Where("strategy_id = ?", strategyID).First(&strategy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStrategyNotFound
		}
		return nil, err
	}
	return &strategy, nil
}

func (r *StrategyRepository) ListActive(ctx context.Context) ([]*model.StrategyAllocation, error) {
	var strategies []*model.StrategyAllocation
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&strategies).Error
	return strategies, err
}

// SumActiveWeights 活跃策略的权重合计（基点）
func (r *StrategyRepository) SumActiveWeights(ctx context.Context) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.StrategyAllocation{}).
		Where("active = ?", true).
		Select("COALESCE(SUM(weight_bps),0)").
		Scan(&total).Error
	return int(total), err
}

func (r *StrategyRepository) UpdateWeight(ctx context.Context, strategyID string, weightBps int) error {
	result := r.db.WithContext(ctx).
		Model(&model.StrategyAllocation{}).
		Where("strategy_id = ? AND active = ?", strategyID, true).
		Update("weight_bps", weightBps)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStrategyNotFound
	}
	return nil
}

func (r *StrategyRepository) Deactivate(ctx context.Context, tx *gorm.DB, strategyID string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.StrategyAllocation{}).
		Where("strategy_id = ? AND active = ?", strategyID, true).
		Updates(map[string]interface{}{"active": false, "weight_bps": 0})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStrategyNotFound
	}
	return nil
}

// AddCurrentValue 同域策略价值增减（delta 可为负）
func (r *StrategyRepository) AddCurrentValue(ctx context.Context, tx *gorm.DB, strategyID string, delta int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.StrategyAllocation{}).
		Where("strategy_id = ?", strategyID).
		Update("current_value", gorm.Expr("current_value + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStrategyNotFound
	}
	return nil
}

// AddPending 跨域策略在途金额增减
func (r *StrategyRepository) AddPending(ctx context.Context, tx *gorm.DB, strategyID string, depositDelta, withdrawDelta int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.StrategyAllocation{}).
		Where("strategy_id = ?", strategyID).
		Updates(map[string]interface{}{
			"pending_deposits":    gorm.Expr("pending_deposits + ?", depositDelta),
			"pending_withdrawals": gorm.Expr("pending_withdrawals + ?", withdrawDelta),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStrategyNotFound
	}
	return nil
}

// ReportValue 报告者上报远端价值
func (r *StrategyRepository) ReportValue(ctx context.Context, tx *gorm.DB, strategyID string, value int64, asOf time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.StrategyAllocation{}).
		Where("strategy_id = ?", strategyID).
		Updates(map[string]interface{}{
			"last_reported_value": value,
			"last_reported_at":    &asOf,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStrategyNotFound
	}
	return nil
}

// ============================================================================
// 跨域划转
// ============================================================================

func (r *StrategyRepository) CreateTransfer(ctx context.Context, tx *gorm.DB, transfer *model.BridgeTransfer) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(transfer).Error
}

func (r *StrategyRepository) GetTransferByTransferID(ctx context.Context, transferID string) (*model.BridgeTransfer, error) {
	var transfer model.BridgeTransfer
	err := r.db.WithContext(ctx).Where("transfer_id = ?", transferID).First(&transfer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

// ListTransfersByStrategyAndStatus 按策略与状态列出划转
func (r *StrategyRepository) ListTransfersByStrategyAndStatus(ctx context.Context, strategyID, direction, status string) ([]*model.BridgeTransfer, error) {
	var transfers []*model.BridgeTransfer
	err := r.db.WithContext(ctx).
		Where("strategy_id = ? AND direction = ? AND status = ?", strategyID, direction, status).
		Order("created_at ASC").
		Find(&transfers).Error
	return transfers, err
}

// UpdateTransferStatus 划转状态迁移（带状态机校验与 CAS 条件更新）
func (r *StrategyRepository) UpdateTransferStatus(ctx context.Context, tx *gorm.DB, transferID string, fromStatus, toStatus string) error {
	if !model.CanBridgeTransitionTo(fromStatus, toStatus) {
		return ErrTransferStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.BridgeTransfer{}).
		Where("transfer_id = ? AND status = ?", transferID, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrTransferStatusInvalid
	}

	return nil
}
