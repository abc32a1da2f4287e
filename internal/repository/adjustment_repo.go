// internal/repository/adjustment_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
)

// AdjustmentRepository defines the interface for the append-only admin audit
// trail. Rows are never updated or deleted.
type AdjustmentRepository interface {
	CreateAdjustment(ctx context.Context, q DBExecutor, a *domain.AdminBalanceAdjustment) error
	ListAdjustments(ctx context.Context, q DBExecutor, userID uuid.UUID, limit, offset int) ([]domain.AdminBalanceAdjustment, int64, error)
}

// PackageRepository defines the interface for the investment package catalog.
type PackageRepository interface {
	CreatePackage(ctx context.Context, q DBExecutor, p *domain.Package) error
	ListPackages(ctx context.Context, q DBExecutor, activeOnly bool) ([]domain.Package, error)
}
