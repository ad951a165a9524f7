package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestRechargeRejectsWhenPaused(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewAccountService(db, NewVaultService(db, testConfig()))

	expectPaused(mock)

	err := svc.Recharge(context.Background(), 1001, 5_000_000, "PAY20260824001")
	assert.ErrorIs(t, err, ErrSystemPaused)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 同一单号重复充值只入账一次
func TestRechargeIdempotentByRefNo(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewAccountService(db, NewVaultService(db, testConfig()))

	expectNotPaused(mock)
	mock.ExpectQuery("SELECT (.+) FROM `account_transaction`").
		WillReturnRows(sqlmock.
			NewRows([]string{"id", "transaction_no", "holder_id", "ref_no", "amount", "type"}).
			AddRow(1, "TXN0000000000000000000001", 1001, "PAY20260824001", 5_000_000, "RECHARGE"))

	err := svc.Recharge(context.Background(), 1001, 5_000_000, "PAY20260824001")
	assert.NoError(t, err)
	// 已入账的单号不触发任何新写入
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRechargeRejectsSystemHolder(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewAccountService(db, NewVaultService(db, testConfig()))

	err := svc.Recharge(context.Background(), 1, 5_000_000, "PAY20260824002")
	assert.ErrorIs(t, err, ErrInvalidParam)
	assert.NoError(t, mock.ExpectationsWereMet())
}
