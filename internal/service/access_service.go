package service

import (
	"context"
	"fmt"
	"log"

	"factorflow/internal/model"
	"factorflow/internal/repository"

	"gorm.io/gorm"
)

// AccessService 角色校验
// 所有特权变更入口在执行前都要经过这里；角色表本身只有 OWNER 能改
type AccessService struct {
	roleRepo *repository.RoleRepository
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{
		roleRepo: repository.NewRoleRepository(db),
	}
}

func (s *AccessService) IsOwner(ctx context.Context, holderID int64) (bool, error) {
	return s.roleRepo.Has(ctx, model.RoleOwner, holderID)
}

func (s *AccessService) IsOperator(ctx context.Context, holderID int64) (bool, error) {
	return s.roleRepo.Has(ctx, model.RoleOperator, holderID)
}

func (s *AccessService) require(ctx context.Context, role string, holderID int64) error {
	if model.IsSystemHolder(holderID) {
		return fmt.Errorf("%w: 系统保留账户不能作为操作者", ErrUnauthorized)
	}
	ok, err := s.roleRepo.Has(ctx, role, holderID)
	if err != nil {
		return fmt.Errorf("查询角色失败: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: 需要 %s 角色", ErrUnauthorized, role)
	}
	return nil
}

func (s *AccessService) RequireOwner(ctx context.Context, holderID int64) error {
	return s.require(ctx, model.RoleOwner, holderID)
}

func (s *AccessService) RequireOperator(ctx context.Context, holderID int64) error {
	return s.require(ctx, model.RoleOperator, holderID)
}

func (s *AccessService) RequireRouter(ctx context.Context, holderID int64) error {
	return s.require(ctx, model.RoleRouter, holderID)
}

func (s *AccessService) RequireTreasury(ctx context.Context, holderID int64) error {
	return s.require(ctx, model.RoleTreasury, holderID)
}

func (s *AccessService) RequireReporter(ctx context.Context, holderID int64) error {
	return s.require(ctx, model.RoleReporter, holderID)
}

// EnsureInitialOwner 播种首个 OWNER
// 全新数据库上角色表为空，Grant 又要求已有 OWNER，不播种则所有特权入口永久不可达。
// 只在角色表里没有任何 OWNER 时生效，此后的角色变更一律走 Grant/Revoke
func (s *AccessService) EnsureInitialOwner(ctx context.Context, holderID int64) error {
	if holderID <= 0 || model.IsSystemHolder(holderID) {
		return fmt.Errorf("%w: 初始 OWNER 必须是普通账户, 当前配置 %d", ErrInvalidParam, holderID)
	}

	holders, err := s.roleRepo.ListHolders(ctx, model.RoleOwner)
	if err != nil {
		return fmt.Errorf("查询 OWNER 失败: %w", err)
	}
	if len(holders) > 0 {
		return nil
	}

	if err := s.roleRepo.Grant(ctx, model.RoleOwner, holderID); err != nil {
		return fmt.Errorf("播种初始 OWNER 失败: %w", err)
	}

	log.Printf("[Access] 初始 OWNER 已播种: holderID=%d", holderID)
	return nil
}

// Grant 授予角色（仅 OWNER）
func (s *AccessService) Grant(ctx context.Context, actorID int64, role string, holderID int64) error {
	if err := s.RequireOwner(ctx, actorID); err != nil {
		return err
	}
	if !isKnownRole(role) {
		return fmt.Errorf("%w: 未知角色 %s", ErrInvalidParam, role)
	}
	return s.roleRepo.Grant(ctx, role, holderID)
}

// Revoke 撤销角色（仅 OWNER）
func (s *AccessService) Revoke(ctx context.Context, actorID int64, role string, holderID int64) error {
	if err := s.RequireOwner(ctx, actorID); err != nil {
		return err
	}
	return s.roleRepo.Revoke(ctx, role, holderID)
}

func isKnownRole(role string) bool {
	switch role {
	case model.RoleOwner, model.RoleOperator, model.RoleRouter, model.RoleTreasury, model.RoleReporter:
		return true
	}
	return false
}
