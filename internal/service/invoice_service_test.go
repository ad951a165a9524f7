package service

import (
	"context"
	"testing"
	"time"

	"factorflow/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvoiceService(t *testing.T) (*InvoiceService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	cfg := testConfig()
	return NewInvoiceService(db, cfg, NewVaultService(db, cfg)), mock
}

func TestApproveFundingRejectsNonOperator(t *testing.T) {
	svc, mock := newInvoiceService(t)

	expectNotPaused(mock)
	expectNoRole(mock)

	err := svc.ApproveFunding(context.Background(), 42, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveFundingRejectsWhenPaused(t *testing.T) {
	svc, mock := newInvoiceService(t)

	expectPaused(mock)

	err := svc.ApproveFunding(context.Background(), 7, 1)
	assert.ErrorIs(t, err, ErrSystemPaused)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 批量批准放款必须跳过无效项继续执行，而不是整批回滚
func TestBatchApproveFundingSkipsInvalid(t *testing.T) {
	svc, mock := newInvoiceService(t)
	maturity := time.Now().Add(30 * 24 * time.Hour)

	expectNotPaused(mock)
	expectHasRole(mock)

	// id=1：APPROVED，正常批准
	expectNotPaused(mock)
	expectHasRole(mock)
	mock.ExpectQuery("SELECT (.+) FROM `invoice`").
		WillReturnRows(invoiceRows(1, model.InvoiceStatusApproved, 2001, 3001, 10_000_000_000, maturity))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `invoice`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `outbox_message`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// id=2：还在 PENDING，条件更新不命中，单项失败回滚
	expectNotPaused(mock)
	expectHasRole(mock)
	mock.ExpectQuery("SELECT (.+) FROM `invoice`").
		WillReturnRows(invoiceRows(2, model.InvoiceStatusPending, 2001, 3001, 5_000_000_000, maturity))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `invoice`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	// id=3：不存在
	expectNotPaused(mock)
	expectHasRole(mock)
	mock.ExpectQuery("SELECT (.+) FROM `invoice`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	results, err := svc.BatchApproveFunding(context.Background(), 7, []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.NotEmpty(t, results[1].Message)
	assert.False(t, results[2].OK)
	assert.NotEmpty(t, results[2].Message)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDefaultedRejectsWithinGrace(t *testing.T) {
	svc, mock := newInvoiceService(t)

	expectNotPaused(mock)
	expectHasRole(mock)
	// 到期 3 天，宽限期 7 天：还不能标记违约
	mock.ExpectQuery("SELECT (.+) FROM `invoice`").
		WillReturnRows(invoiceRows(1, model.InvoiceStatusFunded, 2001, 3001, 10_000_000_000, time.Now().Add(-3*24*time.Hour)))

	err := svc.MarkDefaulted(context.Background(), 7, 1)
	assert.ErrorIs(t, err, ErrInvalidParam)
	// 宽限期内拒绝后不允许有任何后续读写
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDefaultedWritesDownLossAfterGrace(t *testing.T) {
	svc, mock := newInvoiceService(t)
	const fundingAmount = 9_958_904_109

	expectNotPaused(mock)
	expectHasRole(mock)
	mock.ExpectQuery("SELECT (.+) FROM `invoice`").
		WillReturnRows(invoiceRows(1, model.InvoiceStatusFunded, 2001, 3001, 10_000_000_000, time.Now().Add(-10*24*time.Hour)))
	mock.ExpectQuery("SELECT (.+) FROM `funding_record`").
		WillReturnRows(fundingRecordRows(1, 2001, fundingAmount, 10_000_000_000, true, false))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `invoice`").WillReturnResult(sqlmock.NewResult(0, 1))
	// 坏账核销：deployed 桶减记本金
	mock.ExpectQuery("SELECT (.+) FROM `vault_state`").
		WillReturnRows(vaultStateRows(false, 1_000_000_000, fundingAmount, 0, 20_000_000_000_000))
	mock.ExpectExec("UPDATE `vault_state`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `outbox_message`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `outbox_message`").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := svc.MarkDefaulted(context.Background(), 7, 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
