// internal/repository/balance_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
)

// BalanceRepository defines the interface for balance rows. Only the ledger
// store writes through it.
type BalanceRepository interface {
	// CreateBalance inserts b unless the (user, currency) row already exists.
	CreateBalance(ctx context.Context, q DBExecutor, b *domain.Balance) error
	// GetBalanceForUpdate returns the row and holds its exclusive lock until q
	// finishes. Returns util.ErrNotFound when the row does not exist.
	GetBalanceForUpdate(ctx context.Context, q DBExecutor, userID uuid.UUID, currency string) (*domain.Balance, error)
	// UpdateBalance writes all three amounts of b.
	UpdateBalance(ctx context.Context, q DBExecutor, b *domain.Balance) error
	// GetBalance reads a row without locking it.
	GetBalance(ctx context.Context, q DBExecutor, userID uuid.UUID, currency string) (*domain.Balance, error)
	// ListBalances returns every currency row for a user.
	ListBalances(ctx context.Context, q DBExecutor, userID uuid.UUID) ([]domain.Balance, error)
}

// LedgerEntryRepository defines the interface for the balance journal.
type LedgerEntryRepository interface {
	// CreateEntry appends a journal row.
	CreateEntry(ctx context.Context, q DBExecutor, entry *domain.LedgerEntry) error
	// ListEntries pages a user's journal for one currency, newest first, and
	// returns the total row count.
	ListEntries(ctx context.Context, q DBExecutor, userID uuid.UUID, currency string, limit, offset int) ([]domain.LedgerEntry, int64, error)
}
