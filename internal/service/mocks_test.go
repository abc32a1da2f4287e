// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/pkg/db"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

// MockTxController is a mock implementation of db.TxController.
// It also implements repository.DBExecutor by embedding MockDBExecutor.
type MockTxController struct {
	mock.Mock
	MockDBExecutor
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// mockTxRunner routes every transaction to tx.
func mockTxRunner(tx *MockTxController) TxRunner {
	return TxRunner{
		Begin: func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			return tx, nil
		},
		Commit: func(db.TxController) error {
			return tx.Commit()
		},
		Rollback: func(db.TxController) {
			_ = tx.Rollback()
		},
	}
}

// MockBalanceRepository is a mock implementation of repository.BalanceRepository.
type MockBalanceRepository struct {
	mock.Mock
}

func (m *MockBalanceRepository) CreateBalance(ctx context.Context, q repository.DBExecutor, b *domain.Balance) error {
	args := m.Called(ctx, q, b)
	return args.Error(0)
}

func (m *MockBalanceRepository) GetBalanceForUpdate(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string) (*domain.Balance, error) {
	args := m.Called(ctx, q, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Balance), args.Error(1)
}

func (m *MockBalanceRepository) UpdateBalance(ctx context.Context, q repository.DBExecutor, b *domain.Balance) error {
	args := m.Called(ctx, q, b)
	return args.Error(0)
}

func (m *MockBalanceRepository) GetBalance(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string) (*domain.Balance, error) {
	args := m.Called(ctx, q, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Balance), args.Error(1)
}

func (m *MockBalanceRepository) ListBalances(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) ([]domain.Balance, error) {
	args := m.Called(ctx, q, userID)
	return args.Get(0).([]domain.Balance), args.Error(1)
}

// MockLedgerEntryRepository is a mock implementation of repository.LedgerEntryRepository.
type MockLedgerEntryRepository struct {
	mock.Mock
}

func (m *MockLedgerEntryRepository) CreateEntry(ctx context.Context, q repository.DBExecutor, entry *domain.LedgerEntry) error {
	args := m.Called(ctx, q, entry)
	return args.Error(0)
}

func (m *MockLedgerEntryRepository) ListEntries(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	args := m.Called(ctx, q, userID, currency, limit, offset)
	return args.Get(0).([]domain.LedgerEntry), args.Get(1).(int64), args.Error(2)
}

// MockDepositRepository is a mock implementation of repository.DepositRepository.
type MockDepositRepository struct {
	mock.Mock
}

func (m *MockDepositRepository) CreateDeposit(ctx context.Context, q repository.DBExecutor, d *domain.Deposit) error {
	args := m.Called(ctx, q, d)
	return args.Error(0)
}

func (m *MockDepositRepository) GetDeposit(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Deposit, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Deposit), args.Error(1)
}

func (m *MockDepositRepository) GetDepositForUpdate(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Deposit, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Deposit), args.Error(1)
}

func (m *MockDepositRepository) UpdateDeposit(ctx context.Context, q repository.DBExecutor, d *domain.Deposit) error {
	args := m.Called(ctx, q, d)
	return args.Error(0)
}

func (m *MockDepositRepository) ListDeposits(ctx context.Context, q repository.DBExecutor, filter domain.RequestFilter) ([]domain.Deposit, int64, error) {
	args := m.Called(ctx, q, filter)
	return args.Get(0).([]domain.Deposit), args.Get(1).(int64), args.Error(2)
}
