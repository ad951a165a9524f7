package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：供应商对同一张发票同时发起两次放款请求（网络抖动导致重复提交）
//
// 如果没有分布式锁：
//   goroutine1: 读状态=FUNDING_APPROVED -> 放款 -> FUNDED       OK
//   goroutine2: 读状态=FUNDING_APPROVED -> 放款 -> 重复出账！
//
// 加了分布式锁：
//   goroutine1: 获取锁 -> 放款 -> FUNDED -> 释放锁
//   goroutine2: 等锁... -> 获取锁 -> 重读状态=FUNDED -> 拒绝
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证"检查+删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】先校验 value 再删除，防止把别人的锁删掉：
// A 持锁超时自动过期 -> B 获取锁 -> A 执行完调用 Unlock，
// 若不校验 value，A 会误删 B 的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：按业务维度的锁
// ============================================================================

// NewFundingLock 放款锁（按发票维度）
//
// 【设计思考】为什么按发票维度加锁？
// 不同发票的放款可以并发，同一张发票的放款必须串行 —— 这正是幂等的边界。
// value 使用随机 UUID，便于追踪是哪个请求持有锁
func NewFundingLock(client *redis.Client, invoiceID int64) *DistributedLock {
	key := fmt.Sprintf("funding:lock:invoice:%d", invoiceID)
	return NewDistributedLock(client, key, uuid.NewString(), 30*time.Second)
}

// NewRepaymentLock 还款锁（按发票维度）
func NewRepaymentLock(client *redis.Client, invoiceID int64) *DistributedLock {
	key := fmt.Sprintf("repayment:lock:invoice:%d", invoiceID)
	return NewDistributedLock(client, key, uuid.NewString(), 30*time.Second)
}

// NewRebalanceLock 再平衡锁（全局一把）
// 过期时间即冷却时间：锁自然过期前不允许再次触发再平衡
func NewRebalanceLock(client *redis.Client, cooldown time.Duration) *DistributedLock {
	return NewDistributedLock(client, "treasury:lock:rebalance", uuid.NewString(), cooldown)
}
