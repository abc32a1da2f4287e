// internal/repository/postgres/deposit_pg.go
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
)

const depositColumns = `id, user_id, amount, currency, payment_method, status, transaction_id, processed_by, admin_notes, created_at, processed_at`

// DepositRepository implements repository.DepositRepository for PostgreSQL.
type DepositRepository struct{}

// NewDepositRepository creates a new DepositRepository.
func NewDepositRepository() repository.DepositRepository {
	return &DepositRepository{}
}

// CreateDeposit inserts a new deposit request.
func (r *DepositRepository) CreateDeposit(ctx context.Context, q repository.DBExecutor, d *domain.Deposit) error {
	query := `INSERT INTO deposits (` + depositColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := q.ExecContext(ctx, query,
		d.ID, d.UserID, d.Amount, d.Currency, d.PaymentMethod, d.Status,
		d.TransactionID, d.ProcessedBy, d.AdminNotes, d.CreatedAt, d.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to create deposit: %w", classify(err))
	}
	return nil
}

// GetDeposit retrieves a deposit by ID.
func (r *DepositRepository) GetDeposit(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Deposit, error) {
	return r.get(ctx, q, id, "")
}

// GetDepositForUpdate retrieves and locks a deposit by ID.
func (r *DepositRepository) GetDepositForUpdate(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Deposit, error) {
	return r.get(ctx, q, id, " FOR UPDATE")
}

func (r *DepositRepository) get(ctx context.Context, q repository.DBExecutor, id uuid.UUID, lock string) (*domain.Deposit, error) {
	var d domain.Deposit
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1` + lock
	err := q.GetContext(ctx, &d, query, id)
	if err := getOne(err, fmt.Sprintf("deposit %s", id)); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDeposit writes the resolution fields.
func (r *DepositRepository) UpdateDeposit(ctx context.Context, q repository.DBExecutor, d *domain.Deposit) error {
	query := `UPDATE deposits
              SET status = $1, processed_by = $2, admin_notes = $3, processed_at = $4
              WHERE id = $5`
	res, err := q.ExecContext(ctx, query, d.Status, d.ProcessedBy, d.AdminNotes, d.ProcessedAt, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update deposit %s: %w", d.ID, classify(err))
	}
	return expectOneRow(res, fmt.Sprintf("deposit %s", d.ID))
}

// ListDeposits returns one page of deposits matching filter plus the total match count.
func (r *DepositRepository) ListDeposits(ctx context.Context, q repository.DBExecutor, filter domain.RequestFilter) ([]domain.Deposit, int64, error) {
	var w whereBuilder
	if filter.UserID != nil {
		w.add("user_id", *filter.UserID)
	}
	if filter.Status != "" {
		w.add("status", filter.Status)
	}
	pageClause, args := w.page(filter.Limit, filter.Offset)

	deposits := []domain.Deposit{}
	query := `SELECT ` + depositColumns + ` FROM deposits` + w.String() + ` ORDER BY created_at DESC` + pageClause
	if err := q.SelectContext(ctx, &deposits, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list deposits: %w", classify(err))
	}

	var total int64
	if err := q.GetContext(ctx, &total, `SELECT COUNT(*) FROM deposits`+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count deposits: %w", classify(err))
	}
	return deposits, total, nil
}
