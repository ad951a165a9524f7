package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"factorflow/internal/config"
	"factorflow/internal/finance"
	"factorflow/internal/model"
	"factorflow/internal/repository"
	"factorflow/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VaultService 资金池份额记账
//
// 三桶账模型：
//   availableLiquidity  可即时取用
//   totalDeployed       已放款占用（执行层经 router 能力动用）
//   totalInTreasury     已划入金库（金库层经 treasury 能力动用）
//
// 普通 LP 只能通过 Deposit/Withdraw 影响 available 桶；
// 份额价格 = totalAssets / totalShares，除显式坏账核销外永不下降
type VaultService struct {
	db         *gorm.DB
	cfg        *config.Config
	vaultRepo  *repository.VaultRepository
	ledger     *AssetLedger
	outboxRepo *repository.OutboxRepository
	access     *AccessService
}

func NewVaultService(db *gorm.DB, cfg *config.Config) *VaultService {
	return &VaultService{
		db:         db,
		cfg:        cfg,
		vaultRepo:  repository.NewVaultRepository(db),
		ledger:     NewAssetLedger(db),
		outboxRepo: repository.NewOutboxRepository(db),
		access:     NewAccessService(db),
	}
}

// EnsureNotPaused 熔断检查，所有变更入口（含生命周期模块）统一复用
func (s *VaultService) EnsureNotPaused(ctx context.Context) error {
	state, err := s.vaultRepo.GetOrInitState(ctx)
	if err != nil {
		return err
	}
	if state.Paused {
		return ErrSystemPaused
	}
	return nil
}

func (s *VaultService) GetState(ctx context.Context) (*model.VaultState, error) {
	return s.vaultRepo.GetOrInitState(ctx)
}

type DepositResponse struct {
	Shares      int64 `json:"shares"`
	TotalShares int64 `json:"total_shares"`
	TotalAssets int64 `json:"total_assets"`
}

// Deposit LP 存入结算资产，铸造份额
//
// 【关键点】空池首存保护：
// 1. 首存金额必须达到配置下限，抬高份额价格操纵的成本
// 2. 首存中一小块资产对应的份额永久锁定在死份额账户，无法全部赎回
func (s *VaultService) Deposit(ctx context.Context, holderID int64, assets int64) (*DepositResponse, error) {
	if model.IsSystemHolder(holderID) {
		return nil, fmt.Errorf("%w: 系统保留账户不能存入", ErrInvalidParam)
	}
	if assets <= 0 {
		return nil, fmt.Errorf("%w: 存入金额必须大于0", ErrInvalidParam)
	}
	if err := s.EnsureNotPaused(ctx); err != nil {
		return nil, err
	}

	var resp *DepositResponse

	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.vaultRepo.GetStateForUpdate(ctx, tx)
		if err != nil {
			return err
		}

		shares, err := finance.SharesForDeposit(assets, state.TotalShares, state.TotalAssets(), model.ShareScale)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}
		if shares <= 0 {
			return fmt.Errorf("%w: 存入金额过小，铸造份额为0", ErrInvalidParam)
		}

		holderShares := shares
		if state.TotalShares == 0 {
			if assets < s.cfg.Business.MinInitialDeposit {
				return fmt.Errorf("%w: 首存金额不得低于 %d", ErrInvalidParam, s.cfg.Business.MinInitialDeposit)
			}
			deadShares := s.cfg.Business.DeadShareAssets * model.ShareScale
			holderShares = shares - deadShares
			if holderShares <= 0 {
				return fmt.Errorf("%w: 首存金额不足以覆盖死份额", ErrInvalidParam)
			}
			if err := s.vaultRepo.AddShares(ctx, tx, model.SystemHolderDeadShares, deadShares); err != nil {
				return fmt.Errorf("写入死份额失败: %w", err)
			}
		}

		// 先扣 LP 账户，再入资金池账户
		refNo := idgen.GenerateTransactionNo()
		if err := s.ledger.Transfer(ctx, tx, holderID, model.SystemHolderVault, assets,
			model.TransactionTypeVaultDeposit, refNo, "存入资金池"); err != nil {
			return err
		}

		if err := s.vaultRepo.AddShares(ctx, tx, holderID, holderShares); err != nil {
			return fmt.Errorf("写入份额失败: %w", err)
		}

		state.TotalShares += shares
		state.AvailableLiquidity += assets
		if err := s.vaultRepo.SaveState(ctx, tx, state, state.Version); err != nil {
			return err
		}

		resp = &DepositResponse{
			Shares:      holderShares,
			TotalShares: state.TotalShares,
			TotalAssets: state.TotalAssets(),
		}

		return s.emitVaultEvent(ctx, tx, model.EventVaultDeposit, refNo, map[string]interface{}{
			"holder_id": holderID,
			"assets":    assets,
			"shares":    holderShares,
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("[Vault] 存入成功: holderID=%d, assets=%d, shares=%d", holderID, assets, resp.Shares)
	return resp, nil
}

type WithdrawResponse struct {
	Assets       int64 `json:"assets"`
	SharesBurned int64 `json:"shares_burned"`
}

// Withdraw LP 取回资产，销毁份额
// 只能动用 available 桶；已放款/已入金库的资本不可即时取回
func (s *VaultService) Withdraw(ctx context.Context, holderID int64, assets int64) (*WithdrawResponse, error) {
	if model.IsSystemHolder(holderID) {
		return nil, fmt.Errorf("%w: 系统保留账户不能取回", ErrInvalidParam)
	}
	if assets <= 0 {
		return nil, fmt.Errorf("%w: 取回金额必须大于0", ErrInvalidParam)
	}
	if err := s.EnsureNotPaused(ctx); err != nil {
		return nil, err
	}

	var resp *WithdrawResponse

	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.vaultRepo.GetStateForUpdate(ctx, tx)
		if err != nil {
			return err
		}

		if assets > state.AvailableLiquidity {
			return fmt.Errorf("%w: 可用 %d, 申请 %d", ErrInsufficientLiquidity, state.AvailableLiquidity, assets)
		}

		// 销毁份额向上取整，偏向资金池
		sharesToBurn, err := finance.SharesForWithdraw(assets, state.TotalShares, state.TotalAssets())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}

		if err := s.vaultRepo.SubShares(ctx, tx, holderID, sharesToBurn); err != nil {
			if errors.Is(err, repository.ErrSharesNotEnough) {
				return fmt.Errorf("%w: 份额不足", ErrInvalidParam)
			}
			return err
		}

		refNo := idgen.GenerateTransactionNo()
		if err := s.ledger.Transfer(ctx, tx, model.SystemHolderVault, holderID, assets,
			model.TransactionTypeVaultWithdraw, refNo, "从资金池取回"); err != nil {
			return err
		}

		state.TotalShares -= sharesToBurn
		state.AvailableLiquidity -= assets
		if err := s.vaultRepo.SaveState(ctx, tx, state, state.Version); err != nil {
			return err
		}

		resp = &WithdrawResponse{Assets: assets, SharesBurned: sharesToBurn}

		return s.emitVaultEvent(ctx, tx, model.EventVaultWithdraw, refNo, map[string]interface{}{
			"holder_id":     holderID,
			"assets":        assets,
			"shares_burned": sharesToBurn,
		})
	})

	if err != nil {
		return nil, err
	}

	log.Printf("[Vault] 取回成功: holderID=%d, assets=%d, sharesBurned=%d", holderID, assets, resp.SharesBurned)
	return resp, nil
}

// ConvertToShares 资产 → 份额（只读换算）
func (s *VaultService) ConvertToShares(ctx context.Context, assets int64) (int64, error) {
	state, err := s.vaultRepo.GetOrInitState(ctx)
	if err != nil {
		return 0, err
	}
	shares, err := finance.SharesForDeposit(assets, state.TotalShares, state.TotalAssets(), model.ShareScale)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	return shares, nil
}

// ConvertToAssets 份额 → 资产（只读换算）
func (s *VaultService) ConvertToAssets(ctx context.Context, shares int64) (int64, error) {
	state, err := s.vaultRepo.GetOrInitState(ctx)
	if err != nil {
		return 0, err
	}
	assets, err := finance.AssetsForShares(shares, state.TotalShares, state.TotalAssets())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	return assets, nil
}

// MaxWithdraw 持有人当前可取回的上限
// = min(份额对应的资产价值, 可用流动性)
func (s *VaultService) MaxWithdraw(ctx context.Context, holderID int64) (int64, error) {
	state, err := s.vaultRepo.GetOrInitState(ctx)
	if err != nil {
		return 0, err
	}

	position, err := s.vaultRepo.GetPosition(ctx, holderID)
	if err != nil {
		if errors.Is(err, repository.ErrPositionNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if position.Shares == 0 {
		return 0, nil
	}

	value, err := finance.AssetsForShares(position.Shares, state.TotalShares, state.TotalAssets())
	if err != nil {
		return 0, err
	}

	if value < state.AvailableLiquidity {
		return value, nil
	}
	return state.AvailableLiquidity, nil
}

// ============================================================================
// 资金桶划转（仅供执行层 / 金库层在事务内调用）
// ============================================================================

// DeployForFundingTx 放款占用：available → deployed
// router 能力专用。要求可用流动性充足，且放款后 deployed 不超过总资产的上限比例
func (s *VaultService) DeployForFundingTx(ctx context.Context, tx *gorm.DB, amount int64) error {
	state, err := s.vaultRepo.GetStateForUpdate(ctx, tx)
	if err != nil {
		return err
	}
	if state.Paused {
		return ErrSystemPaused
	}

	if amount > state.AvailableLiquidity {
		return fmt.Errorf("%w: 可用 %d, 放款需要 %d", ErrInsufficientLiquidity, state.AvailableLiquidity, amount)
	}

	newDeployed := state.TotalDeployed + amount
	deployCap := decimal.NewFromInt(state.TotalAssets()).
		Mul(decimal.NewFromInt(int64(s.cfg.Business.DeployCapBps))).
		Div(decimal.NewFromInt(finance.BpsDenominator)).
		Floor().IntPart()
	if newDeployed > deployCap {
		return fmt.Errorf("%w: 放款后占用 %d 超过上限 %d", ErrInsufficientLiquidity, newDeployed, deployCap)
	}

	state.AvailableLiquidity -= amount
	state.TotalDeployed = newDeployed
	return s.vaultRepo.SaveState(ctx, tx, state, state.Version)
}

// ReceiveRepaymentTx 还款回笼：本金从 deployed 释放，本金+收益进入 available
// 份额总数不变，总资产增加 yield，份额价格随之上升 —— LP 无需任何转账动作
func (s *VaultService) ReceiveRepaymentTx(ctx context.Context, tx *gorm.DB, principal, yield int64) error {
	state, err := s.vaultRepo.GetStateForUpdate(ctx, tx)
	if err != nil {
		return err
	}

	if principal > state.TotalDeployed {
		return fmt.Errorf("%w: deployed 桶只有 %d, 回笼本金 %d", repository.ErrVaultOutOfBalance, state.TotalDeployed, principal)
	}

	state.TotalDeployed -= principal
	state.AvailableLiquidity += principal + yield
	return s.vaultRepo.SaveState(ctx, tx, state, state.Version)
}

// DepositToTreasuryTx 金库占用：available → treasury
func (s *VaultService) DepositToTreasuryTx(ctx context.Context, tx *gorm.DB, amount int64) error {
	state, err := s.vaultRepo.GetStateForUpdate(ctx, tx)
	if err != nil {
		return err
	}
	if state.Paused {
		return ErrSystemPaused
	}

	if amount > state.AvailableLiquidity {
		return fmt.Errorf("%w: 可用 %d, 划入金库 %d", ErrInsufficientLiquidity, state.AvailableLiquidity, amount)
	}

	state.AvailableLiquidity -= amount
	state.TotalInTreasury += amount
	return s.vaultRepo.SaveState(ctx, tx, state, state.Version)
}

// WithdrawFromTreasuryTx 金库回笼：treasury → available
// yield 为金库侧产生的超额收益（可为0），随本金一并回到 available
func (s *VaultService) WithdrawFromTreasuryTx(ctx context.Context, tx *gorm.DB, amount, yield int64) error {
	state, err := s.vaultRepo.GetStateForUpdate(ctx, tx)
	if err != nil {
		return err
	}
	if state.Paused {
		return ErrSystemPaused
	}

	if amount > state.TotalInTreasury {
		return fmt.Errorf("%w: treasury 桶只有 %d, 回笼 %d", repository.ErrVaultOutOfBalance, state.TotalInTreasury, amount)
	}

	state.TotalInTreasury -= amount
	state.AvailableLiquidity += amount + yield
	return s.vaultRepo.SaveState(ctx, tx, state, state.Version)
}

// WriteDownLossTx 坏账核销：deployed 桶直接减记，总资产与份额价格一次性下调
// 这是份额价格唯一允许下降的路径，必须伴随 vault.loss_written_down 事件
func (s *VaultService) WriteDownLossTx(ctx context.Context, tx *gorm.DB, principal int64, refNo string) error {
	state, err := s.vaultRepo.GetStateForUpdate(ctx, tx)
	if err != nil {
		return err
	}

	if principal > state.TotalDeployed {
		return fmt.Errorf("%w: deployed 桶只有 %d, 核销 %d", repository.ErrVaultOutOfBalance, state.TotalDeployed, principal)
	}

	state.TotalDeployed -= principal
	if err := s.vaultRepo.SaveState(ctx, tx, state, state.Version); err != nil {
		return err
	}

	return s.emitVaultEvent(ctx, tx, model.EventVaultLossWriteDown, refNo, map[string]interface{}{
		"principal": principal,
	})
}

// ============================================================================
// 熔断开关
// ============================================================================

// Pause 全局熔断（仅 OWNER）
// 熔断后所有变更入口立即以 ErrSystemPaused 拒绝，不会部分执行
func (s *VaultService) Pause(ctx context.Context, actorID int64) error {
	return s.setPaused(ctx, actorID, true, model.EventVaultPaused)
}

// Unpause 解除熔断（仅 OWNER）
func (s *VaultService) Unpause(ctx context.Context, actorID int64) error {
	return s.setPaused(ctx, actorID, false, model.EventVaultUnpaused)
}

func (s *VaultService) setPaused(ctx context.Context, actorID int64, paused bool, eventType string) error {
	if err := s.access.RequireOwner(ctx, actorID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.vaultRepo.GetStateForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		state.Paused = paused
		if err := s.vaultRepo.SaveState(ctx, tx, state, state.Version); err != nil {
			return err
		}

		refNo := idgen.GenerateTransactionNo()
		return s.emitVaultEvent(ctx, tx, eventType, refNo, map[string]interface{}{
			"actor_id": actorID,
		})
	})
}

// ============================================================================
// 内部工具
// ============================================================================

func (s *VaultService) emitVaultEvent(ctx context.Context, tx *gorm.DB, eventType, key string, fields map[string]interface{}) error {
	payload := map[string]interface{}{
		"type":      eventType,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range fields {
		payload[k] = v
	}
	payloadBytes, _ := json.Marshal(payload)

	outboxMsg := &model.OutboxMessage{
		MessageKey: key,
		Topic:      s.cfg.Kafka.Topic.VaultEvents,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
