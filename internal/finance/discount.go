package finance

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 贴现计算
// ============================================================================
//
// 单利贴现，以放款时刻（而非建票时刻）的剩余期限计算：
//
//   secondsToMaturity = maturityDate - now
//   annualDiscount    = faceValue * discountRateBps / 10000
//   discount          = annualDiscount * secondsToMaturity / secondsPerYear
//   fundingAmount     = faceValue - discount
//
// 金额为 6 位小数微单位；faceValue * bps * seconds 远超 int64 上限，
// 中间计算必须走 decimal
// ============================================================================

const (
	SecondsPerYear int64 = 365 * 24 * 3600
	BpsDenominator int64 = 10000
)

var (
	ErrMaturityPassed      = errors.New("剩余期限不足，不能放款")
	ErrNonPositiveFace     = errors.New("票面金额必须大于0")
	ErrDiscountExceedsFace = errors.New("贴现金额超过票面金额")
)

// ComputeDiscount 计算贴现金额与放款金额
// 贴现向上取整到微单位（对资金池有利），放款金额 = 票面 - 贴现
// 剩余期限 <= 0 时直接报错，绝不静默截断
func ComputeDiscount(faceValue int64, discountRateBps int, maturityDate, now time.Time) (fundingAmount, discount int64, err error) {
	if faceValue <= 0 {
		return 0, 0, ErrNonPositiveFace
	}

	secondsToMaturity := maturityDate.Unix() - now.Unix()
	if secondsToMaturity <= 0 {
		return 0, 0, ErrMaturityPassed
	}

	d := decimal.NewFromInt(faceValue).
		Mul(decimal.NewFromInt(int64(discountRateBps))).
		Mul(decimal.NewFromInt(secondsToMaturity)).
		Div(decimal.NewFromInt(BpsDenominator)).
		Div(decimal.NewFromInt(SecondsPerYear)).
		Ceil()

	discount = d.IntPart()
	if discount >= faceValue {
		return 0, 0, ErrDiscountExceedsFace
	}

	return faceValue - discount, discount, nil
}
