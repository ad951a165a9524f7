package finance

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 份额换算
// ============================================================================
//
// 铸造（存入）向下取整，销毁（取回）向上取整 —— 两个方向的舍入
// 都偏向资金池，这是防止反复存取磨损池子的刻意设计，不是 bug
// ============================================================================

var (
	ErrEmptyVault        = errors.New("资金池为空")
	ErrNonPositiveAmount = errors.New("金额必须大于0")
)

// SharesForDeposit 存入 assets 应铸造的份额
// 空池时按 ShareScale 放大铸造；否则 assets * totalShares / totalAssets 向下取整
func SharesForDeposit(assets, totalShares, totalAssets, shareScale int64) (int64, error) {
	if assets <= 0 {
		return 0, ErrNonPositiveAmount
	}
	if totalShares == 0 {
		return decimal.NewFromInt(assets).Mul(decimal.NewFromInt(shareScale)).IntPart(), nil
	}
	if totalAssets <= 0 {
		// 有份额却没有资产：池子已被核销到零，不允许再铸造
		return 0, ErrEmptyVault
	}
	return decimal.NewFromInt(assets).
		Mul(decimal.NewFromInt(totalShares)).
		Div(decimal.NewFromInt(totalAssets)).
		Floor().IntPart(), nil
}

// AssetsForShares 份额对应的资产价值，向下取整
func AssetsForShares(shares, totalShares, totalAssets int64) (int64, error) {
	if shares <= 0 {
		return 0, ErrNonPositiveAmount
	}
	if totalShares == 0 {
		return 0, ErrEmptyVault
	}
	return decimal.NewFromInt(shares).
		Mul(decimal.NewFromInt(totalAssets)).
		Div(decimal.NewFromInt(totalShares)).
		Floor().IntPart(), nil
}

// SharesForWithdraw 取回 assets 需要销毁的份额，向上取整
func SharesForWithdraw(assets, totalShares, totalAssets int64) (int64, error) {
	if assets <= 0 {
		return 0, ErrNonPositiveAmount
	}
	if totalShares == 0 || totalAssets <= 0 {
		return 0, ErrEmptyVault
	}
	return decimal.NewFromInt(assets).
		Mul(decimal.NewFromInt(totalShares)).
		Div(decimal.NewFromInt(totalAssets)).
		Ceil().IntPart(), nil
}
