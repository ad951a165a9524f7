package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

// 全新库上必须能播种出首个 OWNER，否则所有特权入口永久不可达
func TestEnsureInitialOwnerSeedsWhenEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewAccessService(db)

	mock.ExpectQuery("SELECT (.+) FROM `role_binding`").
		WillReturnRows(sqlmock.NewRows([]string{"holder_id"}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `role_binding`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := svc.EnsureInitialOwner(context.Background(), 1001)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureInitialOwnerNoopWhenOwnerExists(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewAccessService(db)

	mock.ExpectQuery("SELECT (.+) FROM `role_binding`").
		WillReturnRows(sqlmock.NewRows([]string{"holder_id"}).AddRow(77))

	err := svc.EnsureInitialOwner(context.Background(), 1001)
	assert.NoError(t, err)
	// 已有 OWNER 时不再写入，避免配置漂移悄悄扩权
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureInitialOwnerRejectsReservedHolders(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewAccessService(db)

	for _, holderID := range []int64{0, -5, 1, 2, 3} {
		err := svc.EnsureInitialOwner(context.Background(), holderID)
		assert.ErrorIs(t, err, ErrInvalidParam, "holderID=%d", holderID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
