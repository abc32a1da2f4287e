// internal/repository/postgres/withdrawal_pg.go
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
)

const withdrawalColumns = `id, user_id, amount, currency, payment_method, status, destination_address, bank_details,
	transaction_id, processed_by, admin_notes, created_at, processed_at`

// WithdrawalRepository implements repository.WithdrawalRepository for PostgreSQL.
type WithdrawalRepository struct{}

// NewWithdrawalRepository creates a new WithdrawalRepository.
func NewWithdrawalRepository() repository.WithdrawalRepository {
	return &WithdrawalRepository{}
}

// CreateWithdrawal inserts a new withdrawal request.
func (r *WithdrawalRepository) CreateWithdrawal(ctx context.Context, q repository.DBExecutor, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals (` + withdrawalColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := q.ExecContext(ctx, query,
		w.ID, w.UserID, w.Amount, w.Currency, w.PaymentMethod, w.Status, w.DestinationAddress, w.BankDetails,
		w.TransactionID, w.ProcessedBy, w.AdminNotes, w.CreatedAt, w.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", classify(err))
	}
	return nil
}

// GetWithdrawal retrieves a withdrawal by ID.
func (r *WithdrawalRepository) GetWithdrawal(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Withdrawal, error) {
	return r.get(ctx, q, id, "")
}

// GetWithdrawalForUpdate retrieves and locks a withdrawal by ID.
func (r *WithdrawalRepository) GetWithdrawalForUpdate(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Withdrawal, error) {
	return r.get(ctx, q, id, " FOR UPDATE")
}

func (r *WithdrawalRepository) get(ctx context.Context, q repository.DBExecutor, id uuid.UUID, lock string) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1` + lock
	err := q.GetContext(ctx, &w, query, id)
	if err := getOne(err, fmt.Sprintf("withdrawal %s", id)); err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateWithdrawal writes the resolution fields.
func (r *WithdrawalRepository) UpdateWithdrawal(ctx context.Context, q repository.DBExecutor, w *domain.Withdrawal) error {
	query := `UPDATE withdrawals
              SET status = $1, transaction_id = $2, processed_by = $3, admin_notes = $4, processed_at = $5
              WHERE id = $6`
	res, err := q.ExecContext(ctx, query, w.Status, w.TransactionID, w.ProcessedBy, w.AdminNotes, w.ProcessedAt, w.ID)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal %s: %w", w.ID, classify(err))
	}
	return expectOneRow(res, fmt.Sprintf("withdrawal %s", w.ID))
}

// ListWithdrawals returns one page of withdrawals matching filter plus the total match count.
func (r *WithdrawalRepository) ListWithdrawals(ctx context.Context, q repository.DBExecutor, filter domain.RequestFilter) ([]domain.Withdrawal, int64, error) {
	var wb whereBuilder
	if filter.UserID != nil {
		wb.add("user_id", *filter.UserID)
	}
	if filter.Status != "" {
		wb.add("status", filter.Status)
	}
	pageClause, args := wb.page(filter.Limit, filter.Offset)

	withdrawals := []domain.Withdrawal{}
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals` + wb.String() + ` ORDER BY created_at DESC` + pageClause
	if err := q.SelectContext(ctx, &withdrawals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list withdrawals: %w", classify(err))
	}

	var total int64
	if err := q.GetContext(ctx, &total, `SELECT COUNT(*) FROM withdrawals`+wb.String(), wb.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", classify(err))
	}
	return withdrawals, total, nil
}
