package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// 熔断后桥资金回流同样被拒：报告者解除熔断后重试即可
func TestReceiveBridgedFundsRejectsWhenPaused(t *testing.T) {
	db, mock := newMockDB(t)
	cfg := testConfig()
	svc := NewTreasuryService(db, nil, cfg, NewVaultService(db, cfg))

	expectHasRole(mock)
	expectPaused(mock)

	err := svc.ReceiveBridgedFunds(context.Background(), 9001, "3f1c9a2e-0000-0000-0000-000000000001")
	assert.ErrorIs(t, err, ErrSystemPaused)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveStrategyRejectsWhenPaused(t *testing.T) {
	db, mock := newMockDB(t)
	cfg := testConfig()
	svc := NewTreasuryService(db, nil, cfg, NewVaultService(db, cfg))

	expectHasRole(mock)
	expectPaused(mock)

	err := svc.RemoveStrategy(context.Background(), 1001, "local-lending")
	assert.ErrorIs(t, err, ErrSystemPaused)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddStrategyRejectsNonOwner(t *testing.T) {
	db, mock := newMockDB(t)
	cfg := testConfig()
	svc := NewTreasuryService(db, nil, cfg, NewVaultService(db, cfg))

	expectNoRole(mock)

	err := svc.AddStrategy(context.Background(), 42, "local-lending", "LOCAL", 5000, true)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NoError(t, mock.ExpectationsWereMet())
}
