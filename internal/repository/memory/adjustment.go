package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
)

// AdjustmentRepository implements repository.AdjustmentRepository in memory.
type AdjustmentRepository struct{ s *Store }

// Adjustments returns the store's audit table.
func (s *Store) Adjustments() repository.AdjustmentRepository { return &AdjustmentRepository{s} }

func (r *AdjustmentRepository) CreateAdjustment(_ context.Context, q repository.DBExecutor, a *domain.AdminBalanceAdjustment) error {
	return r.s.write(q, func() {
		r.s.adjustments = append(r.s.adjustments, *a)
	}, func() {
		for i := len(r.s.adjustments) - 1; i >= 0; i-- {
			if r.s.adjustments[i].ID == a.ID {
				r.s.adjustments = append(r.s.adjustments[:i], r.s.adjustments[i+1:]...)
				return
			}
		}
	})
}

func (r *AdjustmentRepository) ListAdjustments(_ context.Context, _ repository.DBExecutor, userID uuid.UUID, limit, offset int) ([]domain.AdminBalanceAdjustment, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []domain.AdminBalanceAdjustment
	for i := len(r.s.adjustments) - 1; i >= 0; i-- {
		if a := r.s.adjustments[i]; a.UserID == userID {
			matched = append(matched, a)
		}
	}
	return page(matched, limit, offset), int64(len(matched)), nil
}

// PackageRepository implements repository.PackageRepository in memory.
type PackageRepository struct{ s *Store }

// Packages returns the store's package catalog.
func (s *Store) Packages() repository.PackageRepository { return &PackageRepository{s} }

func (r *PackageRepository) CreatePackage(_ context.Context, q repository.DBExecutor, p *domain.Package) error {
	var dup bool
	err := r.s.write(q, func() {
		for _, existing := range r.s.packages {
			if existing.Name == p.Name {
				dup = true
				return
			}
		}
		r.s.packages[p.ID] = *p
	}, func() {
		delete(r.s.packages, p.ID)
	})
	if err != nil {
		return err
	}
	if dup {
		return fmt.Errorf("%w: package %q already exists", util.ErrInvalidInput, p.Name)
	}
	return nil
}

func (r *PackageRepository) ListPackages(_ context.Context, _ repository.DBExecutor, activeOnly bool) ([]domain.Package, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Package{}
	for _, p := range r.s.packages {
		if !activeOnly || p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MinDeposit.Equal(out[j].MinDeposit) {
			return out[i].MinDeposit.LessThan(out[j].MinDeposit)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
