// internal/repository/request_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
)

// DepositRepository defines the interface for deposit requests.
type DepositRepository interface {
	CreateDeposit(ctx context.Context, q DBExecutor, d *domain.Deposit) error
	GetDeposit(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Deposit, error)
	// GetDepositForUpdate locks the row so the pending guard and the ledger
	// mutation share one transaction.
	GetDepositForUpdate(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Deposit, error)
	// UpdateDeposit writes the resolution fields of d.
	UpdateDeposit(ctx context.Context, q DBExecutor, d *domain.Deposit) error
	ListDeposits(ctx context.Context, q DBExecutor, filter domain.RequestFilter) ([]domain.Deposit, int64, error)
}

// WithdrawalRepository defines the interface for withdrawal requests.
type WithdrawalRepository interface {
	CreateWithdrawal(ctx context.Context, q DBExecutor, w *domain.Withdrawal) error
	GetWithdrawal(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Withdrawal, error)
	GetWithdrawalForUpdate(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, q DBExecutor, w *domain.Withdrawal) error
	ListWithdrawals(ctx context.Context, q DBExecutor, filter domain.RequestFilter) ([]domain.Withdrawal, int64, error)
}
