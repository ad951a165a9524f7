package finance

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 按权重分摊
// ============================================================================

var (
	ErrNoWeights     = errors.New("没有可分配的权重项")
	ErrWeightsExceed = errors.New("权重之和超过10000基点")
)

// WeightedTarget 一个待分摊的目标及其权重
type WeightedTarget struct {
	ID        string
	WeightBps int
}

// SplitByWeight 把 amount 按权重比例分摊到各目标
// 每项向下取整，余数全部归入权重最大的一项，保证分摊总额恰好等于 amount
// （分毫不差是对账的前提，参考拆分规则引擎的做法）
//
// 权重按占比归一：amount * weight / sumWeights，而不是除以10000，
// 因此权重之和不足10000时资金也会被全额分配
func SplitByWeight(amount int64, targets []WeightedTarget) (map[string]int64, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	if len(targets) == 0 {
		return nil, ErrNoWeights
	}

	sumWeights := 0
	largestIdx := 0
	for i, t := range targets {
		sumWeights += t.WeightBps
		if t.WeightBps > targets[largestIdx].WeightBps {
			largestIdx = i
		}
	}
	if sumWeights <= 0 {
		return nil, ErrNoWeights
	}
	if sumWeights > int(BpsDenominator) {
		return nil, ErrWeightsExceed
	}

	allocation := make(map[string]int64, len(targets))
	allocated := int64(0)
	for i, t := range targets {
		if i == largestIdx {
			continue
		}
		part := decimal.NewFromInt(amount).
			Mul(decimal.NewFromInt(int64(t.WeightBps))).
			Div(decimal.NewFromInt(int64(sumWeights))).
			Floor().IntPart()
		allocation[t.ID] = part
		allocated += part
	}

	// 余数归入最大权重项
	allocation[targets[largestIdx].ID] = amount - allocated

	// 安全校验：分摊总额必须与输入严格相等
	total := int64(0)
	for _, v := range allocation {
		total += v
	}
	if total != amount {
		return nil, errors.New("分摊总额与输入金额不一致")
	}

	return allocation, nil
}
