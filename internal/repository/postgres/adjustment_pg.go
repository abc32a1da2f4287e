// internal/repository/postgres/adjustment_pg.go
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
)

// AdjustmentRepository implements repository.AdjustmentRepository for PostgreSQL.
type AdjustmentRepository struct{}

// NewAdjustmentRepository creates a new AdjustmentRepository.
func NewAdjustmentRepository() repository.AdjustmentRepository {
	return &AdjustmentRepository{}
}

const adjustmentColumns = `id, user_id, admin_id, currency, adjustment_type, amount, previous_balance, new_balance, account_type, admin_notes, created_at`

// CreateAdjustment appends an audit row.
func (r *AdjustmentRepository) CreateAdjustment(ctx context.Context, q repository.DBExecutor, a *domain.AdminBalanceAdjustment) error {
	query := `INSERT INTO admin_balance_adjustments (` + adjustmentColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := q.ExecContext(ctx, query,
		a.ID, a.UserID, a.AdminID, a.Currency, a.AdjustmentType, a.Amount,
		a.PreviousBalance, a.NewBalance, a.AccountType, a.AdminNotes, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create balance adjustment: %w", classify(err))
	}
	return nil
}

// ListAdjustments pages a user's audit trail, newest first.
func (r *AdjustmentRepository) ListAdjustments(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, limit, offset int) ([]domain.AdminBalanceAdjustment, int64, error) {
	adjustments := []domain.AdminBalanceAdjustment{}
	query := `SELECT ` + adjustmentColumns + ` FROM admin_balance_adjustments
              WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &adjustments, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list adjustments for user %s: %w", userID, classify(err))
	}
	var total int64
	if err := q.GetContext(ctx, &total, `SELECT COUNT(*) FROM admin_balance_adjustments WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count adjustments for user %s: %w", userID, classify(err))
	}
	return adjustments, total, nil
}

// PackageRepository implements repository.PackageRepository for PostgreSQL.
type PackageRepository struct{}

// NewPackageRepository creates a new PackageRepository.
func NewPackageRepository() repository.PackageRepository {
	return &PackageRepository{}
}

// CreatePackage inserts a catalog row.
func (r *PackageRepository) CreatePackage(ctx context.Context, q repository.DBExecutor, p *domain.Package) error {
	query := `INSERT INTO packages (id, name, description, min_deposit, features, active, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := q.ExecContext(ctx, query, p.ID, p.Name, p.Description, p.MinDeposit, p.Features, p.Active, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: package %q already exists", util.ErrInvalidInput, p.Name)
		}
		return fmt.Errorf("failed to create package: %w", classify(err))
	}
	return nil
}

// ListPackages returns the catalog ordered by minimum deposit.
func (r *PackageRepository) ListPackages(ctx context.Context, q repository.DBExecutor, activeOnly bool) ([]domain.Package, error) {
	packages := []domain.Package{}
	query := `SELECT id, name, description, min_deposit, features, active, created_at FROM packages`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY min_deposit, name`
	if err := q.SelectContext(ctx, &packages, query); err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", classify(err))
	}
	return packages, nil
}
