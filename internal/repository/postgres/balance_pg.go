// internal/repository/postgres/balance_pg.go
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
)

const balanceColumns = `user_id, currency, balance, available_balance, locked_balance, created_at, updated_at`

// BalanceRepository implements repository.BalanceRepository for PostgreSQL.
type BalanceRepository struct{}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository() repository.BalanceRepository {
	return &BalanceRepository{}
}

// CreateBalance inserts the row; a concurrent creator winning the race is not an error.
func (r *BalanceRepository) CreateBalance(ctx context.Context, q repository.DBExecutor, b *domain.Balance) error {
	query := `INSERT INTO balances (` + balanceColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7)
              ON CONFLICT (user_id, currency) DO NOTHING`
	_, err := q.ExecContext(ctx, query,
		b.UserID, b.Currency, b.Balance, b.AvailableBalance, b.LockedBalance, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create balance for user %s %s: %w", b.UserID, b.Currency, classify(err))
	}
	return nil
}

// GetBalanceForUpdate reads the row under an exclusive row lock.
func (r *BalanceRepository) GetBalanceForUpdate(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string) (*domain.Balance, error) {
	var b domain.Balance
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1 AND currency = $2 FOR UPDATE`
	err := q.GetContext(ctx, &b, query, userID, currency)
	if err := getOne(err, fmt.Sprintf("balance %s/%s", userID, currency)); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBalance writes the three amounts.
func (r *BalanceRepository) UpdateBalance(ctx context.Context, q repository.DBExecutor, b *domain.Balance) error {
	query := `UPDATE balances
              SET balance = $1, available_balance = $2, locked_balance = $3, updated_at = $4
              WHERE user_id = $5 AND currency = $6`
	res, err := q.ExecContext(ctx, query,
		b.Balance, b.AvailableBalance, b.LockedBalance, b.UpdatedAt, b.UserID, b.Currency)
	if err != nil {
		return fmt.Errorf("failed to update balance for user %s %s: %w", b.UserID, b.Currency, classify(err))
	}
	return expectOneRow(res, fmt.Sprintf("balance %s/%s", b.UserID, b.Currency))
}

// GetBalance reads the row without locking.
func (r *BalanceRepository) GetBalance(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string) (*domain.Balance, error) {
	var b domain.Balance
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1 AND currency = $2`
	err := q.GetContext(ctx, &b, query, userID, currency)
	if err := getOne(err, fmt.Sprintf("balance %s/%s", userID, currency)); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBalances returns all of a user's currencies.
func (r *BalanceRepository) ListBalances(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) ([]domain.Balance, error) {
	balances := []domain.Balance{}
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1 ORDER BY currency`
	if err := q.SelectContext(ctx, &balances, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list balances for user %s: %w", userID, classify(err))
	}
	return balances, nil
}

// LedgerEntryRepository implements repository.LedgerEntryRepository for PostgreSQL.
type LedgerEntryRepository struct{}

// NewLedgerEntryRepository creates a new LedgerEntryRepository.
func NewLedgerEntryRepository() repository.LedgerEntryRepository {
	return &LedgerEntryRepository{}
}

// CreateEntry inserts a journal row.
func (r *LedgerEntryRepository) CreateEntry(ctx context.Context, q repository.DBExecutor, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, user_id, currency, kind, amount, available_delta, locked_delta, balance_after, reference_id, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := q.ExecContext(ctx, query,
		e.ID, e.UserID, e.Currency, e.Kind, e.Amount, e.AvailableDelta, e.LockedDelta, e.BalanceAfter, e.ReferenceID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", classify(err))
	}
	return nil
}

// ListEntries retrieves a paginated list of journal rows.
// It performs two queries: one for the data and one for the total count.
func (r *LedgerEntryRepository) ListEntries(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	entries := []domain.LedgerEntry{}
	query := `
		SELECT id, user_id, currency, kind, amount, available_delta, locked_delta, balance_after, reference_id, created_at
		FROM ledger_entries
		WHERE user_id = $1 AND currency = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	if err := q.SelectContext(ctx, &entries, query, userID, currency, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch ledger entries for user %s: %w", userID, classify(err))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM ledger_entries WHERE user_id = $1 AND currency = $2`
	if err := q.GetContext(ctx, &total, countQuery, userID, currency); err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries for user %s: %w", userID, classify(err))
	}
	return entries, total, nil
}
