package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiscount(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		faceValue    int64
		rateBps      int
		maturity     time.Time
		wantFunding  int64
		wantDiscount int64
		wantErr      error
	}{
		{
			// 10,000.000000 票面，年化 500 基点，剩余 30 天
			// 贴现 = 10000000000 * 500 * 2592000 / 10000 / 31536000 = 41095890.41... 向上取整
			name:         "标准场景_30天",
			faceValue:    10_000_000_000,
			rateBps:      500,
			maturity:     now.Add(30 * 24 * time.Hour),
			wantFunding:  9_958_904_109,
			wantDiscount: 41_095_891,
		},
		{
			// 整整一年，贴现恰好等于年化额度，无需取整
			name:         "整年期限",
			faceValue:    10_000_000_000,
			rateBps:      500,
			maturity:     now.Add(365 * 24 * time.Hour),
			wantFunding:  9_500_000_000,
			wantDiscount: 500_000_000,
		},
		{
			// 剩余 1 秒也要收 1 微单位贴现（向上取整）
			name:         "极短期限仍收贴现",
			faceValue:    10_000_000_000,
			rateBps:      500,
			maturity:     now.Add(time.Second),
			wantFunding:  9_999_999_984,
			wantDiscount: 16,
		},
		{
			name:      "已到期拒绝放款",
			faceValue: 10_000_000_000,
			rateBps:   500,
			maturity:  now.Add(-time.Hour),
			wantErr:   ErrMaturityPassed,
		},
		{
			name:      "到期时刻恰好等于当前时刻",
			faceValue: 10_000_000_000,
			rateBps:   500,
			maturity:  now,
			wantErr:   ErrMaturityPassed,
		},
		{
			name:      "票面金额非正",
			faceValue: 0,
			rateBps:   500,
			maturity:  now.Add(24 * time.Hour),
			wantErr:   ErrNonPositiveFace,
		},
		{
			// 票面 1 微单位，任何贴现取整后都吃掉全部票面
			name:      "贴现吞没票面",
			faceValue: 1,
			rateBps:   500,
			maturity:  now.Add(24 * time.Hour),
			wantErr:   ErrDiscountExceedsFace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			funding, discount, err := ComputeDiscount(tt.faceValue, tt.rateBps, tt.maturity, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFunding, funding)
			assert.Equal(t, tt.wantDiscount, discount)
			assert.Equal(t, tt.faceValue, funding+discount, "放款+贴现必须等于票面")
		})
	}
}

func TestComputeDiscountTimeOfFunding(t *testing.T) {
	// 贴现按放款时刻的剩余期限算：离到期越近，贴现越少、放款越多
	maturity := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	early, _, err := ComputeDiscount(10_000_000_000, 500, maturity, maturity.Add(-60*24*time.Hour))
	require.NoError(t, err)

	late, _, err := ComputeDiscount(10_000_000_000, 500, maturity, maturity.Add(-10*24*time.Hour))
	require.NoError(t, err)

	assert.Greater(t, late, early)
}

func TestComputeDiscountNoOverflow(t *testing.T) {
	// faceValue * bps * seconds 约 1e19，超过 int64；decimal 中间计算不允许溢出
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	maturity := now.Add(365 * 24 * time.Hour)

	funding, discount, err := ComputeDiscount(1_000_000_000_000_000, 2000, maturity, now)
	require.NoError(t, err)
	assert.Equal(t, int64(200_000_000_000_000), discount)
	assert.Equal(t, int64(800_000_000_000_000), funding)
}
