package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVaultStateTotalAssets(t *testing.T) {
	state := &VaultState{
		AvailableLiquidity: 1_000_000,
		TotalDeployed:      2_000_000,
		TotalInTreasury:    3_000_000,
	}
	assert.Equal(t, int64(6_000_000), state.TotalAssets())
}

func TestIsSystemHolder(t *testing.T) {
	assert.True(t, IsSystemHolder(SystemHolderDeadShares))
	assert.True(t, IsSystemHolder(SystemHolderVault))
	assert.True(t, IsSystemHolder(SystemHolderTreasury))
	assert.True(t, IsSystemHolder(SystemHolderBridge))

	assert.False(t, IsSystemHolder(4))
	assert.False(t, IsSystemHolder(1001))
	assert.False(t, IsSystemHolder(-1))
}
