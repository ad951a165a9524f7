package repository

import (
	"context"
	"errors"

	"factorflow/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrVaultNotFound     = errors.New("资金池状态不存在")
	ErrVaultConflict     = errors.New("资金池并发冲突，请重试")
	ErrVaultOutOfBalance = errors.New("资金池三桶账不平")
	ErrPositionNotFound  = errors.New("份额持仓不存在")
	ErrSharesNotEnough   = errors.New("份额不足")
	ErrNegativeBucket    = errors.New("资金桶不允许为负")
)

// 单例行主键
const vaultStateID int64 = 1

type VaultRepository struct {
	db *gorm.DB
}

func NewVaultRepository(db *gorm.DB) *VaultRepository {
	return &VaultRepository{db: db}
}

// GetOrInitState 读取单例状态行，首次访问时初始化
func (r *VaultRepository) GetOrInitState(ctx context.Context) (*model.VaultState, error) {
	state, err := r.GetState(ctx)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrVaultNotFound) {
		return nil, err
	}

	newState := &model.VaultState{ID: vaultStateID}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(newState).Error
	if err != nil {
		return nil, err
	}

	return r.GetState(ctx)
}

func (r *VaultRepository) GetState(ctx context.Context) (*model.VaultState, error) {
	var state model.VaultState
	err := r.db.WithContext(ctx).Where("id = ?", vaultStateID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVaultNotFound
		}
		return nil, err
	}
	return &state, nil
}

// GetStateForUpdate 事务内行锁读取
// 资金池是全系统竞争最激烈的一行，所有桶变更都必须先锁后改
func (r *VaultRepository) GetStateForUpdate(ctx context.Context, tx *gorm.DB) (*model.VaultState, error) {
	var state model.VaultState
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", vaultStateID).
		First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVaultNotFound
		}
		return nil, err
	}
	return &state, nil
}

// SaveState 写回状态行（乐观锁）
// 三桶与份额的任何一项为负都直接拒绝，三桶账由调用方在写回前自查
func (r *VaultRepository) SaveState(ctx context.Context, tx *gorm.DB, state *model.VaultState, expectedVersion int) error {
	if state.AvailableLiquidity < 0 || state.TotalDeployed < 0 || state.TotalInTreasury < 0 || state.TotalShares < 0 {
		return ErrNegativeBucket
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.VaultState{}).
		Where("id = ? AND version = ?", vaultStateID, expectedVersion).
		Updates(map[string]interface{}{
			"total_shares":        state.TotalShares,
			"available_liquidity": state.AvailableLiquidity,
			"total_deployed":      state.TotalDeployed,
			"total_in_treasury":   state.TotalInTreasury,
			"paused":              state.Paused,
			"version":             gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrVaultConflict
	}

	return nil
}

// ============================================================================
// 份额持仓
// ============================================================================

func (r *VaultRepository) GetPosition(ctx context.Context, holderID int64) (*model.SharePosition, error) {
	var position model.SharePosition
	err := r.db.WithContext(ctx).Where("holder_id = ?", holderID).First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}
	return &position, nil
}

// AddShares 增持份额，持仓不存在时创建
func (r *VaultRepository) AddShares(ctx context.Context, tx *gorm.DB, holderID int64, shares int64) error {
	if tx == nil {
		tx = r.db
	}

	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "holder_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"shares": gorm.Expr("shares + ?", shares)}),
		}).
		Create(&model.SharePosition{HolderID: holderID, Shares: shares}).Error

	return err
}

// SubShares 减持份额，余额条件由数据库强制
func (r *VaultRepository) SubShares(ctx context.Context, tx *gorm.DB, holderID int64, shares int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.SharePosition{}).
		Where("holder_id = ? AND shares >= ?", holderID, shares).
		Update("shares", gorm.Expr("shares - ?", shares))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrSharesNotEnough
	}

	return nil
}
