package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"factorflow/internal/config"
	"factorflow/internal/finance"
	"factorflow/internal/infrastructure/lock"
	"factorflow/internal/model"
	"factorflow/internal/repository"
	"factorflow/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// TreasuryService 金库分配器
// 把资金池的闲置资本按权重分配到各收益策略，赚取基础收益，
// 同时保证资金可以被召回用于发票放款
//
// 权重规则：活跃策略权重之和 ≤ 10000 基点；
// 分摊按权重占比归一（finance.SplitByWeight），分毫不差
type TreasuryService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	vault        *VaultService
	ledger       *AssetLedger
	strategyRepo *repository.StrategyRepository
	outboxRepo   *repository.OutboxRepository
	access       *AccessService
}

func NewTreasuryService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, vault *VaultService) *TreasuryService {
	return &TreasuryService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		vault:        vault,
		ledger:       NewAssetLedger(db),
		strategyRepo: repository.NewStrategyRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
		access:       NewAccessService(db),
	}
}

func (s *TreasuryService) staleness() time.Duration {
	return time.Duration(s.cfg.Business.ValueStalenessMinutes) * time.Minute
}

// strategyFor 把配置行包装成多态策略对象
func (s *TreasuryService) strategyFor(alloc *model.StrategyAllocation) Strategy {
	if alloc.Kind == model.StrategyKindBridged {
		return &bridgedStrategy{alloc: alloc, repo: s.strategyRepo, ledger: s.ledger, staleness: s.staleness()}
	}
	return &localStrategy{alloc: alloc, repo: s.strategyRepo}
}

// ============================================================================
// 策略管理（OWNER）
// ============================================================================

// AddStrategy 注册策略
func (s *TreasuryService) AddStrategy(ctx context.Context, actorID int64, strategyID, kind string, weightBps int, instant bool) error {
	if err := s.access.RequireOwner(ctx, actorID); err != nil {
		return err
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}
	if strategyID == "" {
		return fmt.Errorf("%w: 策略ID不能为空", ErrInvalidParam)
	}
	if kind != model.StrategyKindLocal && kind != model.StrategyKindBridged {
		return fmt.Errorf("%w: 未知策略类型 %s", ErrInvalidParam, kind)
	}
	if kind == model.StrategyKindBridged && instant {
		return fmt.Errorf("%w: 跨域策略不支持即时提取", ErrInvalidParam)
	}
	if weightBps < 0 {
		return fmt.Errorf("%w: 权重不能为负", ErrInvalidParam)
	}

	existing, err := s.strategyRepo.GetByStrategyID(ctx, strategyID)
	if err != nil && err != repository.ErrStrategyNotFound {
		return err
	}
	if existing != nil {
		return repository.ErrStrategyExists
	}

	sum, err := s.strategyRepo.SumActiveWeights(ctx)
	if err != nil {
		return err
	}
	if sum+weightBps > int(finance.BpsDenominator) {
		return fmt.Errorf("%w: 活跃权重合计 %d + %d 超过 10000", ErrInvalidParam, sum, weightBps)
	}

	strategy := &model.StrategyAllocation{
		StrategyID: strategyID,
		Kind:       kind,
		WeightBps:  weightBps,
		Instant:    instant,
		Active:     true,
	}
	if err := s.strategyRepo.Create(ctx, nil, strategy); err != nil {
		return fmt.Errorf("创建策略失败: %w", err)
	}

	log.Printf("[Treasury] 策略已注册: strategyID=%s, kind=%s, weightBps=%d", strategyID, kind, weightBps)
	return nil
}

// SetWeight 调整权重
func (s *TreasuryService) SetWeight(ctx context.Context, actorID int64, strategyID string, weightBps int) error {
	if err := s.access.RequireOwner(ctx, actorID); err != nil {
		return err
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}
	if weightBps < 0 {
		return fmt.Errorf("%w: 权重不能为负", ErrInvalidParam)
	}

	strategy, err := s.strategyRepo.GetByStrategyID(ctx, strategyID)
	if err != nil {
		return err
	}
	if !strategy.Active {
		return repository.ErrStrategyNotFound
	}

	sum, err := s.strategyRepo.SumActiveWeights(ctx)
	if err != nil {
		return err
	}
	if sum-strategy.WeightBps+weightBps > int(finance.BpsDenominator) {
		return fmt.Errorf("%w: 调整后活跃权重合计超过 10000", ErrInvalidParam)
	}

	return s.strategyRepo.UpdateWeight(ctx, strategyID, weightBps)
}

// RemoveStrategy 移除策略：先撤回全部价值，再停用
// 同域策略即时回到资金池；跨域策略只能发起全额提取，
// 资金随后经桥回流，停用后不再参与分配
func (s *TreasuryService) RemoveStrategy(ctx context.Context, actorID int64, strategyID string) error {
	if err := s.access.RequireOwner(ctx, actorID); err != nil {
		return err
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}

	alloc, err := s.strategyRepo.GetByStrategyID(ctx, strategyID)
	if err != nil {
		return err
	}
	if !alloc.Active {
		return repository.ErrStrategyNotFound
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		strategy := s.strategyFor(alloc)
		received, err := strategy.WithdrawAll(ctx, tx)
		if err != nil {
			return err
		}

		if received > 0 {
			if err := s.returnToVaultTx(ctx, tx, received, 0, "策略移除回笼"); err != nil {
				return err
			}
		}

		return s.strategyRepo.Deactivate(ctx, tx, strategyID)
	})
	if err != nil {
		return err
	}

	log.Printf("[Treasury] 策略已移除: strategyID=%s", strategyID)
	return nil
}

// ============================================================================
// 资金调度（TREASURY 角色）
// ============================================================================

type TreasuryDepositResponse struct {
	Amount     int64            `json:"amount"`
	Allocation map[string]int64 `json:"allocation"`
}

// Deposit 从资金池拉取闲置资金，按权重分摊到各活跃策略
func (s *TreasuryService) Deposit(ctx context.Context, actorID int64, amount int64) (*TreasuryDepositResponse, error) {
	if err := s.access.RequireTreasury(ctx, actorID); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: 划入金额必须大于0", ErrInvalidParam)
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return nil, err
	}

	allocs, err := s.strategyRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]finance.WeightedTarget, 0, len(allocs))
	allocByID := make(map[string]*model.StrategyAllocation, len(allocs))
	for _, a := range allocs {
		if a.WeightBps > 0 {
			targets = append(targets, finance.WeightedTarget{ID: a.StrategyID, WeightBps: a.WeightBps})
			allocByID[a.StrategyID] = a
		}
	}

	allocation, err := finance.SplitByWeight(amount, targets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}

	refNo := idgen.GenerateTransactionNo()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 桶账 available → treasury，资金同步到金库账户
		if err := s.vault.DepositToTreasuryTx(ctx, tx, amount); err != nil {
			return err
		}
		if err := s.ledger.Transfer(ctx, tx, model.SystemHolderVault, model.SystemHolderTreasury, amount,
			model.TransactionTypeTreasuryMove, refNo, "资金池划入金库"); err != nil {
			return err
		}

		for strategyID, part := range allocation {
			if part == 0 {
				continue
			}
			if err := s.strategyFor(allocByID[strategyID]).Deposit(ctx, tx, part); err != nil {
				return err
			}
		}

		return s.emitTreasuryEvent(ctx, tx, model.EventTreasuryDeposit, refNo, map[string]interface{}{
			"actor_id":   actorID,
			"amount":     amount,
			"allocation": allocation,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Treasury] 划入成功: amount=%d, strategies=%d", amount, len(allocation))
	return &TreasuryDepositResponse{Amount: amount, Allocation: allocation}, nil
}

type TreasuryWithdrawResponse struct {
	Requested int64 `json:"requested"`
	Received  int64 `json:"received"`  // 即时回到资金池的金额
	Initiated int64 `json:"initiated"` // 已发起、等待桥回流的金额
}

// Withdraw 从策略召回资金到资金池
// 优先走支持即时提取的策略，不足时跨多个策略拼凑；
// 仍不足的部分向跨域策略发起异步提取
func (s *TreasuryService) Withdraw(ctx context.Context, actorID int64, amount int64) (*TreasuryWithdrawResponse, error) {
	if err := s.access.RequireTreasury(ctx, actorID); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: 召回金额必须大于0", ErrInvalidParam)
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return nil, err
	}

	allocs, err := s.strategyRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	// 即时策略在前，跨域策略垫底
	sort.SliceStable(allocs, func(i, j int) bool {
		return s.withdrawPriority(allocs[i]) < s.withdrawPriority(allocs[j])
	})

	var resp *TreasuryWithdrawResponse
	err = s.db.Transaction(func(tx *gorm.DB) error {
		received := int64(0)
		initiated := int64(0)
		remaining := amount

		for _, alloc := range allocs {
			if remaining == 0 {
				break
			}
			strategy := s.strategyFor(alloc)
			value, err := strategy.TotalValue(ctx)
			if err != nil {
				// 估值不可靠的策略直接跳过，不让它拖垮整个召回
				log.Printf("[Treasury] 跳过估值不可靠的策略: strategyID=%s, err=%v", alloc.StrategyID, err)
				continue
			}
			if value <= 0 {
				continue
			}

			take := remaining
			if take > value {
				take = value
			}

			got, err := strategy.Withdraw(ctx, tx, take)
			if err != nil {
				return err
			}
			received += got
			initiated += take - got
			remaining -= take
		}

		if received == 0 && initiated == 0 {
			return fmt.Errorf("%w: 没有策略可供召回", ErrInsufficientLiquidity)
		}

		if received > 0 {
			if err := s.returnToVaultTx(ctx, tx, received, 0, "金库召回"); err != nil {
				return err
			}
		}

		resp = &TreasuryWithdrawResponse{Requested: amount, Received: received, Initiated: initiated}

		refNo := idgen.GenerateTransactionNo()
		return s.emitTreasuryEvent(ctx, tx, model.EventTreasuryWithdraw, refNo, map[string]interface{}{
			"actor_id":  actorID,
			"requested": amount,
			"received":  received,
			"initiated": initiated,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Treasury] 召回完成: requested=%d, received=%d, initiated=%d", amount, resp.Received, resp.Initiated)
	return resp, nil
}

func (s *TreasuryService) withdrawPriority(alloc *model.StrategyAllocation) int {
	if alloc.Kind == model.StrategyKindBridged {
		return 2
	}
	if alloc.Instant {
		return 0
	}
	return 1
}

// Rebalance 按权重再平衡各策略持仓（受冷却时间限制）
// 任何一个策略估值不可靠都会中止整次再平衡
func (s *TreasuryService) Rebalance(ctx context.Context, actorID int64) error {
	if err := s.access.RequireTreasury(ctx, actorID); err != nil {
		return err
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}

	// 锁的过期时间即冷却时间，拿不到锁说明还在冷却
	cooldown := time.Duration(s.cfg.Business.RebalanceCooldownMinutes) * time.Minute
	rebalanceLock := lock.NewRebalanceLock(s.redisClient, cooldown)
	acquired, err := rebalanceLock.TryLock(ctx)
	if err != nil {
		return fmt.Errorf("获取再平衡锁失败: %w", err)
	}
	if !acquired {
		return ErrRebalanceCooldown
	}

	allocs, err := s.strategyRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	total := int64(0)
	values := make(map[string]int64, len(allocs))
	targets := make([]finance.WeightedTarget, 0, len(allocs))
	allocByID := make(map[string]*model.StrategyAllocation, len(allocs))
	for _, a := range allocs {
		value, err := s.strategyFor(a).TotalValue(ctx)
		if err != nil {
			return err
		}
		values[a.StrategyID] = value
		total += value
		allocByID[a.StrategyID] = a
		if a.WeightBps > 0 {
			targets = append(targets, finance.WeightedTarget{ID: a.StrategyID, WeightBps: a.WeightBps})
		}
	}
	if total <= 0 {
		return fmt.Errorf("%w: 金库没有可再平衡的资产", ErrInvalidParam)
	}

	targetAlloc, err := finance.SplitByWeight(total, targets)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 第一遍：从超配策略提取盈余
		surplus := int64(0)
		for _, a := range allocs {
			diff := values[a.StrategyID] - targetAlloc[a.StrategyID]
			if diff <= 0 {
				continue
			}
			got, err := s.strategyFor(a).Withdraw(ctx, tx, diff)
			if err != nil {
				return err
			}
			surplus += got
		}

		// 第二遍：把盈余补到欠配策略（同域优先，即时到账的盈余才可分配）
		for _, a := range allocs {
			if surplus == 0 {
				break
			}
			deficit := targetAlloc[a.StrategyID] - values[a.StrategyID]
			if deficit <= 0 {
				continue
			}
			part := deficit
			if part > surplus {
				part = surplus
			}
			if err := s.strategyFor(a).Deposit(ctx, tx, part); err != nil {
				return err
			}
			surplus -= part
		}

		// 跨域提取在途导致的剩余盈余回到资金池
		if surplus > 0 {
			if err := s.returnToVaultTx(ctx, tx, surplus, 0, "再平衡盈余回笼"); err != nil {
				return err
			}
		}

		refNo := idgen.GenerateTransactionNo()
		return s.emitTreasuryEvent(ctx, tx, model.EventTreasuryRebalance, refNo, map[string]interface{}{
			"actor_id": actorID,
			"total":    total,
			"target":   targetAlloc,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("[Treasury] 再平衡完成: actorID=%d, total=%d", actorID, total)
	return nil
}

// ============================================================================
// 跨域回调（REPORTER 角色）
// ============================================================================

// ConfirmDeposit 桥确认收到存入资金：PENDING → CONFIRMED
func (s *TreasuryService) ConfirmDeposit(ctx context.Context, actorID int64, transferID string, amount int64) error {
	if err := s.access.RequireReporter(ctx, actorID); err != nil {
		return err
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}

	transfer, err := s.strategyRepo.GetTransferByTransferID(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Direction != model.BridgeDirectionDeposit {
		return fmt.Errorf("%w: 划转 %s 不是存入方向", repository.ErrTransferStatusInvalid, transferID)
	}
	if amount != transfer.Amount {
		return fmt.Errorf("%w: 确认金额 %d 与划转金额 %d 不符", ErrInvalidParam, amount, transfer.Amount)
	}

	return s.strategyRepo.UpdateTransferStatus(ctx, nil, transferID,
		model.BridgeTransferStatusPending, model.BridgeTransferStatusConfirmed)
}

// UpdateRemoteValue 报告者上报远端策略价值
// 已确认的存入划转视为已并入上报价值：标记 DEPLOYED 并从在途中扣除
func (s *TreasuryService) UpdateRemoteValue(ctx context.Context, actorID int64, strategyID string, value int64, asOf time.Time) error {
	if err := s.access.RequireReporter(ctx, actorID); err != nil {
		return err
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}
	if value < 0 {
		return fmt.Errorf("%w: 上报价值不能为负", ErrInvalidParam)
	}

	alloc, err := s.strategyRepo.GetByStrategyID(ctx, strategyID)
	if err != nil {
		return err
	}
	if alloc.Kind != model.StrategyKindBridged {
		return fmt.Errorf("%w: 策略 %s 不是跨域策略", ErrInvalidParam, strategyID)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		confirmed, err := s.strategyRepo.ListTransfersByStrategyAndStatus(ctx, strategyID,
			model.BridgeDirectionDeposit, model.BridgeTransferStatusConfirmed)
		if err != nil {
			return err
		}

		deployedSum := int64(0)
		for _, t := range confirmed {
			if err := s.strategyRepo.UpdateTransferStatus(ctx, tx, t.TransferID,
				model.BridgeTransferStatusConfirmed, model.BridgeTransferStatusDeployed); err != nil {
				return err
			}
			deployedSum += t.Amount
		}

		if deployedSum > 0 {
			if err := s.strategyRepo.AddPending(ctx, tx, strategyID, -deployedSum, 0); err != nil {
				return err
			}
		}

		return s.strategyRepo.ReportValue(ctx, tx, strategyID, value, asOf)
	})
}

// ReceiveBridgedFunds 桥回流资金到账：提取划转 PENDING → RECEIVED
// 资金从桥托管账户直接回到资金池（treasury 桶 → available 桶）
func (s *TreasuryService) ReceiveBridgedFunds(ctx context.Context, actorID int64, transferID string) error {
	if err := s.access.RequireReporter(ctx, actorID); err != nil {
		return err
	}
	if err := s.vault.EnsureNotPaused(ctx); err != nil {
		return err
	}

	transfer, err := s.strategyRepo.GetTransferByTransferID(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Direction != model.BridgeDirectionWithdraw {
		return fmt.Errorf("%w: 划转 %s 不是提取方向", repository.ErrTransferStatusInvalid, transferID)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.strategyRepo.UpdateTransferStatus(ctx, tx, transferID,
			model.BridgeTransferStatusPending, model.BridgeTransferStatusReceived); err != nil {
			return err
		}

		if err := s.strategyRepo.AddPending(ctx, tx, transfer.StrategyID, 0, -transfer.Amount); err != nil {
			return err
		}

		// 桶账 treasury → available，资金从桥托管账户回到资金池账户
		if err := s.vault.WithdrawFromTreasuryTx(ctx, tx, transfer.Amount, 0); err != nil {
			return err
		}
		return s.ledger.Transfer(ctx, tx, model.SystemHolderBridge, model.SystemHolderVault, transfer.Amount,
			model.TransactionTypeBridgeTransfer, transferID, "跨域资金回流")
	})
	if err != nil {
		return err
	}

	log.Printf("[Treasury] 跨域资金回流: transferID=%s, amount=%d", transferID, transfer.Amount)
	return nil
}

// ============================================================================
// 内部工具
// ============================================================================

// returnToVaultTx 金库侧资金回到资金池：桶账 treasury → available + 账户划转
func (s *TreasuryService) returnToVaultTx(ctx context.Context, tx *gorm.DB, amount, yield int64, remark string) error {
	if err := s.vault.WithdrawFromTreasuryTx(ctx, tx, amount, yield); err != nil {
		return err
	}
	refNo := idgen.GenerateTransactionNo()
	return s.ledger.Transfer(ctx, tx, model.SystemHolderTreasury, model.SystemHolderVault, amount,
		model.TransactionTypeTreasuryMove, refNo, remark)
}

func (s *TreasuryService) emitTreasuryEvent(ctx context.Context, tx *gorm.DB, eventType, key string, fields map[string]interface{}) error {
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

// ListStrategies 活跃策略一览（含估值；估值不可靠时单独标注）
type StrategyView struct {
	StrategyID string `json:"strategy_id"`
	Kind       string `json:"kind"`
	WeightBps  int    `json:"weight_bps"`
	Instant    bool   `json:"instant"`
	Value      int64  `json:"value"`
	ValueStale bool   `json:"value_stale"`
}

func (s *TreasuryService) ListStrategies(ctx context.Context) ([]StrategyView, error) {
	allocs, err := s.strategyRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]StrategyView, 0, len(allocs))
	for _, a := range allocs {
		view := StrategyView{
			StrategyID: a.StrategyID,
			Kind:       a.Kind,
			WeightBps:  a.WeightBps,
			Instant:    a.Instant,
		}
		value, err := s.strategyFor(a).TotalValue(ctx)
		if err != nil {
			view.ValueStale = true
		} else {
			view.Value = value
		}
		views = append(views, view)
	}
	return views, nil
}
