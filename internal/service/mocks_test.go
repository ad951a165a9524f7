package service

import (
	"fmt"
	"testing"
	"time"

	"factorflow/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockDB 基于 sqlmock 的 gorm 连接
// 期望按声明顺序匹配，任何未声明的 SQL 都会让用例失败 ——
// 正好用来断言"错误路径上没有发生任何写入"
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				InvoiceEvents: "factorflow.invoice.events",
				VaultEvents:   "factorflow.vault.events",
			},
		},
		Business: config.BusinessConfig{
			MinDiscountRateBps: 50,
			MaxDiscountRateBps: 2000,
			GracePeriodDays:    7,
			MinInitialDeposit:  1_000_000_000,
			DeadShareAssets:    1000,
			DeployCapBps:       8000,
			MaxRetryCount:      5,
			InitialOwnerID:     1001,
		},
	}
}

func vaultStateRows(paused bool, available, deployed, treasury, shares int64) *sqlmock.Rows {
	return sqlmock.
		NewRows([]string{"id", "total_shares", "available_liquidity", "total_deployed", "total_in_treasury", "paused", "version"}).
		AddRow(1, shares, available, deployed, treasury, paused, 1)
}

func roleCountRows(count int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(count)
}

func invoiceRows(id int64, status string, supplierID, buyerID, faceValue int64, maturity time.Time) *sqlmock.Rows {
	return sqlmock.
		NewRows([]string{"id", "invoice_no", "supplier_id", "buyer_id", "face_value", "discount_rate_bps", "maturity_date", "status"}).
		AddRow(id, fmt.Sprintf("INV%022d", id), supplierID, buyerID, faceValue, 500, maturity, status)
}

func fundingRecordRows(invoiceID, supplierID, fundingAmount, faceValue int64, funded, repaid bool) *sqlmock.Rows {
	return sqlmock.
		NewRows([]string{"id", "invoice_id", "supplier_id", "funding_amount", "face_value", "funded", "repaid"}).
		AddRow(1, invoiceID, supplierID, fundingAmount, faceValue, funded, repaid)
}

func expectNotPaused(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT (.+) FROM `vault_state`").
		WillReturnRows(vaultStateRows(false, 0, 0, 0, 0))
}

func expectPaused(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT (.+) FROM `vault_state`").
		WillReturnRows(vaultStateRows(true, 0, 0, 0, 0))
}

func expectHasRole(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT count(.+) FROM `role_binding`").
		WillReturnRows(roleCountRows(1))
}

func expectNoRole(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT count(.+) FROM `role_binding`").
		WillReturnRows(roleCountRows(0))
}
