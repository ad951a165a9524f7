package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// 流动性不足时放款占用必须整体失败，不允许部分划转
func TestDeployForFundingTxInsufficientLiquidity(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewVaultService(db, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `vault_state`").
		WillReturnRows(vaultStateRows(false, 100, 0, 0, 100_000_000))
	mock.ExpectRollback()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.DeployForFundingTx(context.Background(), tx, 1_000_000)
	})

	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	// 拒绝后桶账没有任何写入
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeployForFundingTxRejectsWhenPaused(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewVaultService(db, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `vault_state`").
		WillReturnRows(vaultStateRows(true, 10_000_000_000, 0, 0, 10_000_000_000_000))
	mock.ExpectRollback()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.DeployForFundingTx(context.Background(), tx, 1_000_000)
	})

	assert.ErrorIs(t, err, ErrSystemPaused)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 熔断后金库回笼同样被拒，资金在事故处理期间一动不动
func TestWithdrawFromTreasuryTxRejectsWhenPaused(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewVaultService(db, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `vault_state`").
		WillReturnRows(vaultStateRows(true, 0, 0, 5_000_000, 5_000_000_000_000))
	mock.ExpectRollback()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.WithdrawFromTreasuryTx(context.Background(), tx, 1_000_000, 0)
	})

	assert.ErrorIs(t, err, ErrSystemPaused)
	assert.NoError(t, mock.ExpectationsWereMet())
}
