// internal/service/package_service.go
package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
)

// PackageService manages the investment package catalog.
type PackageService interface {
	CreatePackage(ctx context.Context, name, description string, minDeposit decimal.Decimal, features domain.FeatureSet) (*domain.Package, error)
	ListPackages(ctx context.Context, activeOnly bool) ([]domain.Package, error)
}

type packageService struct {
	deps     Deps
	packages repository.PackageRepository
}

// NewPackageService creates a new instance of PackageService.
func NewPackageService(deps Deps, packages repository.PackageRepository) PackageService {
	return &packageService{deps: deps, packages: packages}
}

func (s *packageService) CreatePackage(ctx context.Context, name, description string, minDeposit decimal.Decimal, features domain.FeatureSet) (*domain.Package, error) {
	p, err := domain.NewPackage(name, description, minDeposit, features)
	if err != nil {
		return nil, fmt.Errorf("create package: %w", err)
	}
	err = s.deps.Tx.InTx(ctx, "create package", func(q repository.DBExecutor) error {
		return s.packages.CreatePackage(ctx, q, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *packageService) ListPackages(ctx context.Context, activeOnly bool) ([]domain.Package, error) {
	packages, err := s.packages.ListPackages(ctx, s.deps.Reader, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	return packages, nil
}
