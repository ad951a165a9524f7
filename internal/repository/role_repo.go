package repository

import (
	"context"

	"factorflow/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Grant 授予角色，重复授予不报错
func (r *RoleRepository) Grant(ctx context.Context, role string, holderID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.RoleBinding{Role: role, HolderID: holderID}).Error
}

func (r *RoleRepository) Revoke(ctx context.Context, role string, holderID int64) error {
	return r.db.WithContext(ctx).
		Where("role = ? AND holder_id = ?", role, holderID).
		Delete(&model.RoleBinding{}).Error
}

// Has 特权操作前的角色判定
func (r *RoleRepository) Has(ctx context.Context, role string, holderID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.RoleBinding{}).
		Where("role = ? AND holder_id = ?", role, holderID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RoleRepository) ListHolders(ctx context.Context, role string) ([]int64, error) {
	var holders []int64
	err := r.db.WithContext(ctx).
		Model(&model.RoleBinding{}).
		Where("role = ?", role).
		Pluck("holder_id", &holders).Error
	return holders, err
}
