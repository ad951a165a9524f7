package service

import (
	"context"
	"testing"

	"factorflow/internal/model"
	"factorflow/internal/repository"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// 已有放款记录的发票不允许二次放款，且幂等预检必须在调用方事务内读取
func TestFundInvoiceTxRejectsDoubleFunding(t *testing.T) {
	db, mock := newMockDB(t)
	cfg := testConfig()
	svc := NewExecutionService(db, cfg, NewVaultService(db, cfg))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `funding_record`").
		WillReturnRows(fundingRecordRows(7, 2001, 9_958_904_109, 10_000_000_000, true, false))
	mock.ExpectRollback()

	invoice := &model.Invoice{
		ID:         7,
		InvoiceNo:  "INV0000000000000000000007",
		SupplierID: 2001,
		BuyerID:    3001,
		FaceValue:  10_000_000_000,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.FundInvoiceTx(context.Background(), tx, invoice, 9_958_904_109)
	})

	assert.ErrorIs(t, err, repository.ErrAlreadyFunded)
	// 除预检查询外没有任何资金移动发生
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiveRepaymentTxRejectsUnfunded(t *testing.T) {
	db, mock := newMockDB(t)
	cfg := testConfig()
	svc := NewExecutionService(db, cfg, NewVaultService(db, cfg))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `funding_record`").
		WillReturnRows(fundingRecordRows(7, 2001, 0, 10_000_000_000, false, false))
	mock.ExpectRollback()

	invoice := &model.Invoice{ID: 7, InvoiceNo: "INV0000000000000000000007", BuyerID: 3001}
	err := db.Transaction(func(tx *gorm.DB) error {
		_, txErr := svc.ReceiveRepaymentTx(context.Background(), tx, invoice)
		return txErr
	})

	assert.ErrorIs(t, err, repository.ErrNotFunded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiveRepaymentTxRejectsDoubleRepayment(t *testing.T) {
	db, mock := newMockDB(t)
	cfg := testConfig()
	svc := NewExecutionService(db, cfg, NewVaultService(db, cfg))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `funding_record`").
		WillReturnRows(fundingRecordRows(7, 2001, 9_958_904_109, 10_000_000_000, true, true))
	mock.ExpectRollback()

	invoice := &model.Invoice{ID: 7, InvoiceNo: "INV0000000000000000000007", BuyerID: 3001}
	err := db.Transaction(func(tx *gorm.DB) error {
		_, txErr := svc.ReceiveRepaymentTx(context.Background(), tx, invoice)
		return txErr
	})

	assert.ErrorIs(t, err, repository.ErrAlreadyRepaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
