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

// DepositRepository implements repository.DepositRepository in memory.
type DepositRepository struct{ s *Store }

// Deposits returns the store's deposit table.
func (s *Store) Deposits() repository.DepositRepository { return &DepositRepository{s} }

func (r *DepositRepository) CreateDeposit(_ context.Context, q repository.DBExecutor, d *domain.Deposit) error {
	return r.s.write(q, func() { r.s.deposits[d.ID] = *d }, func() { delete(r.s.deposits, d.ID) })
}

func (r *DepositRepository) GetDeposit(_ context.Context, _ repository.DBExecutor, id uuid.UUID) (*domain.Deposit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deposits[id]
	if !ok {
		return nil, fmt.Errorf("%w: deposit %s", util.ErrNotFound, id)
	}
	return &d, nil
}

func (r *DepositRepository) GetDepositForUpdate(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Deposit, error) {
	if err := lockRow(q, "deposit:"+id.String()); err != nil {
		return nil, err
	}
	return r.GetDeposit(ctx, q, id)
}

func (r *DepositRepository) UpdateDeposit(ctx context.Context, q repository.DBExecutor, d *domain.Deposit) error {
	prev, err := r.GetDeposit(ctx, q, d.ID)
	if err != nil {
		return err
	}
	return r.s.write(q, func() { r.s.deposits[d.ID] = *d }, func() { r.s.deposits[d.ID] = *prev })
}

func (r *DepositRepository) ListDeposits(_ context.Context, _ repository.DBExecutor, f domain.RequestFilter) ([]domain.Deposit, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []domain.Deposit
	for _, d := range r.s.deposits {
		if (f.UserID == nil || d.UserID == *f.UserID) && (f.Status == "" || d.Status == f.Status) {
			matched = append(matched, d)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, f.Limit, f.Offset), int64(len(matched)), nil
}

// WithdrawalRepository implements repository.WithdrawalRepository in memory.
type WithdrawalRepository struct{ s *Store }

// Withdrawals returns the store's withdrawal table.
func (s *Store) Withdrawals() repository.WithdrawalRepository { return &WithdrawalRepository{s} }

func (r *WithdrawalRepository) CreateWithdrawal(_ context.Context, q repository.DBExecutor, w *domain.Withdrawal) error {
	return r.s.write(q, func() { r.s.withdrawals[w.ID] = *w }, func() { delete(r.s.withdrawals, w.ID) })
}

func (r *WithdrawalRepository) GetWithdrawal(_ context.Context, _ repository.DBExecutor, id uuid.UUID) (*domain.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.withdrawals[id]
	if !ok {
		return nil, fmt.Errorf("%w: withdrawal %s", util.ErrNotFound, id)
	}
	return &w, nil
}

func (r *WithdrawalRepository) GetWithdrawalForUpdate(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Withdrawal, error) {
	if err := lockRow(q, "withdrawal:"+id.String()); err != nil {
		return nil, err
	}
	return r.GetWithdrawal(ctx, q, id)
}

func (r *WithdrawalRepository) UpdateWithdrawal(ctx context.Context, q repository.DBExecutor, w *domain.Withdrawal) error {
	prev, err := r.GetWithdrawal(ctx, q, w.ID)
	if err != nil {
		return err
	}
	return r.s.write(q, func() { r.s.withdrawals[w.ID] = *w }, func() { r.s.withdrawals[w.ID] = *prev })
}

func (r *WithdrawalRepository) ListWithdrawals(_ context.Context, _ repository.DBExecutor, f domain.RequestFilter) ([]domain.Withdrawal, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []domain.Withdrawal
	for _, w := range r.s.withdrawals {
		if (f.UserID == nil || w.UserID == *f.UserID) && (f.Status == "" || w.Status == f.Status) {
			matched = append(matched, w)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, f.Limit, f.Offset), int64(len(matched)), nil
}
