package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitByWeight(t *testing.T) {
	t.Run("整除场景精确分摊", func(t *testing.T) {
		allocation, err := SplitByWeight(100, []WeightedTarget{
			{ID: "a", WeightBps: 6000},
			{ID: "b", WeightBps: 4000},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(60), allocation["a"])
		assert.Equal(t, int64(40), allocation["b"])
	})

	t.Run("余数归入最大权重项", func(t *testing.T) {
		allocation, err := SplitByWeight(101, []WeightedTarget{
			{ID: "a", WeightBps: 3333},
			{ID: "b", WeightBps: 3333},
			{ID: "c", WeightBps: 3334},
		})
		require.NoError(t, err)
		// a、b 各 floor(101*3333/10000)=33，余数 35 全归 c
		assert.Equal(t, int64(33), allocation["a"])
		assert.Equal(t, int64(33), allocation["b"])
		assert.Equal(t, int64(35), allocation["c"])
	})

	t.Run("分摊总额恒等于输入", func(t *testing.T) {
		amounts := []int64{1, 7, 99, 12345, 9_999_999_999}
		targets := []WeightedTarget{
			{ID: "a", WeightBps: 1},
			{ID: "b", WeightBps: 2999},
			{ID: "c", WeightBps: 7000},
		}
		for _, amount := range amounts {
			allocation, err := SplitByWeight(amount, targets)
			require.NoError(t, err)
			total := int64(0)
			for _, v := range allocation {
				total += v
			}
			assert.Equal(t, amount, total)
		}
	})

	t.Run("权重不满一万也全额分配", func(t *testing.T) {
		// 按占比归一：单个 5000 基点目标拿到全部金额
		allocation, err := SplitByWeight(100, []WeightedTarget{
			{ID: "a", WeightBps: 5000},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(100), allocation["a"])
	})

	t.Run("权重超过一万拒绝", func(t *testing.T) {
		_, err := SplitByWeight(100, []WeightedTarget{
			{ID: "a", WeightBps: 6000},
			{ID: "b", WeightBps: 5000},
		})
		assert.ErrorIs(t, err, ErrWeightsExceed)
	})

	t.Run("没有权重项拒绝", func(t *testing.T) {
		_, err := SplitByWeight(100, nil)
		assert.ErrorIs(t, err, ErrNoWeights)

		_, err = SplitByWeight(100, []WeightedTarget{{ID: "a", WeightBps: 0}})
		assert.ErrorIs(t, err, ErrNoWeights)
	})

	t.Run("金额非正拒绝", func(t *testing.T) {
		_, err := SplitByWeight(0, []WeightedTarget{{ID: "a", WeightBps: 10000}})
		assert.ErrorIs(t, err, ErrNonPositiveAmount)
	})
}
