package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShareScale = 1_000_000

func TestSharesForDeposit(t *testing.T) {
	tests := []struct {
		name        string
		assets      int64
		totalShares int64
		totalAssets int64
		want        int64
		wantErr     error
	}{
		{
			// 空池首存按 ShareScale 放大：1.000000 资产 → 1e12 份额
			name:   "空池按比例放大铸造",
			assets: 1_000_000,
			want:   1_000_000_000_000,
		},
		{
			// 份额价格 1：等比铸造
			name:        "份额价格为1时等比铸造",
			assets:      500_000,
			totalShares: 1_000_000_000_000,
			totalAssets: 1_000_000,
			want:        500_000_000_000,
		},
		{
			// 份额价格翻倍后，同样资产只铸一半份额
			name:        "份额价格上升后铸造减少",
			assets:      1_000_000,
			totalShares: 1_000_000_000_000,
			totalAssets: 2_000_000,
			want:        500_000_000_000,
		},
		{
			// 3 份额 / 2 资产，存 1 资产 → floor(1.5) = 1
			name:        "铸造向下取整",
			assets:      1,
			totalShares: 3,
			totalAssets: 2,
			want:        1,
		},
		{
			name:    "金额非正",
			assets:  0,
			wantErr: ErrNonPositiveAmount,
		},
		{
			// 有份额但资产被核销到零，不允许再铸造
			name:        "池子被核销到零",
			assets:      1_000_000,
			totalShares: 1_000_000_000_000,
			totalAssets: 0,
			wantErr:     ErrEmptyVault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SharesForDeposit(tt.assets, tt.totalShares, tt.totalAssets, testShareScale)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSharesForWithdraw(t *testing.T) {
	// 取回 1 资产（3 份额 / 2 资产）→ ceil(1.5) = 2，销毁偏向资金池
	shares, err := SharesForWithdraw(1, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), shares)

	_, err = SharesForWithdraw(1, 0, 0)
	assert.ErrorIs(t, err, ErrEmptyVault)

	_, err = SharesForWithdraw(0, 3, 2)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestAssetsForShares(t *testing.T) {
	// 2 份额（3 份额 / 2 资产）→ floor(4/3) = 1
	assets, err := AssetsForShares(2, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), assets)

	_, err = AssetsForShares(1, 0, 0)
	assert.ErrorIs(t, err, ErrEmptyVault)
}

func TestRoundingFavorsVault(t *testing.T) {
	// 铸造向下、销毁向上：任何一轮存取的净效果都不会让池子吃亏
	totalShares := int64(7_777_777_777)
	totalAssets := int64(3_333_333)

	deposit := int64(999_999)
	minted, err := SharesForDeposit(deposit, totalShares, totalAssets, testShareScale)
	require.NoError(t, err)

	// 立刻取回铸造份额对应的资产，价值不超过存入金额
	value, err := AssetsForShares(minted, totalShares+minted, totalAssets+deposit)
	require.NoError(t, err)
	assert.LessOrEqual(t, value, deposit)

	// 按同样资产取回需要销毁的份额不少于铸造所得
	burned, err := SharesForWithdraw(deposit, totalShares, totalAssets)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, burned, minted)
}
