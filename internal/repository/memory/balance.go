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

// BalanceRepository implements repository.BalanceRepository in memory.
type BalanceRepository struct{ s *Store }

// Balances returns the store's balance table.
func (s *Store) Balances() repository.BalanceRepository { return &BalanceRepository{s} }

func balanceLockKey(userID uuid.UUID, currency string) string {
	return "balance:" + userID.String() + ":" + currency
}

func (r *BalanceRepository) CreateBalance(_ context.Context, q repository.DBExecutor, b *domain.Balance) error {
	key := balanceKey{b.UserID, b.Currency}
	var inserted bool
	return r.s.write(q, func() {
		if _, ok := r.s.balances[key]; !ok {
			r.s.balances[key] = *b
			inserted = true
		}
	}, func() {
		if inserted {
			delete(r.s.balances, key)
		}
	})
}

func (r *BalanceRepository) GetBalanceForUpdate(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string) (*domain.Balance, error) {
	if err := lockRow(q, balanceLockKey(userID, currency)); err != nil {
		return nil, err
	}
	return r.GetBalance(ctx, q, userID, currency)
}

func (r *BalanceRepository) UpdateBalance(_ context.Context, q repository.DBExecutor, b *domain.Balance) error {
	key := balanceKey{b.UserID, b.Currency}
	r.s.mu.Lock()
	prev, ok := r.s.balances[key]
	r.s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: balance %s/%s", util.ErrNotFound, b.UserID, b.Currency)
	}
	return r.s.write(q, func() { r.s.balances[key] = *b }, func() { r.s.balances[key] = prev })
}

func (r *BalanceRepository) GetBalance(_ context.Context, _ repository.DBExecutor, userID uuid.UUID, currency string) (*domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.balances[balanceKey{userID, currency}]
	if !ok {
		return nil, fmt.Errorf("%w: balance %s/%s", util.ErrNotFound, userID, currency)
	}
	return &b, nil
}

func (r *BalanceRepository) ListBalances(_ context.Context, _ repository.DBExecutor, userID uuid.UUID) ([]domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Balance{}
	for k, b := range r.s.balances {
		if k.userID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

// AllBalances returns a snapshot of every balance row.
func (s *Store) AllBalances() []domain.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Balance, 0, len(s.balances))
	for _, b := range s.balances {
		out = append(out, b)
	}
	return out
}

// LedgerEntryRepository implements repository.LedgerEntryRepository in memory.
type LedgerEntryRepository struct{ s *Store }

// LedgerEntries returns the store's journal table.
func (s *Store) LedgerEntries() repository.LedgerEntryRepository { return &LedgerEntryRepository{s} }

func (r *LedgerEntryRepository) CreateEntry(_ context.Context, q repository.DBExecutor, e *domain.LedgerEntry) error {
	return r.s.write(q, func() {
		r.s.entries = append(r.s.entries, *e)
	}, func() {
		for i := len(r.s.entries) - 1; i >= 0; i-- {
			if r.s.entries[i].ID == e.ID {
				r.s.entries = append(r.s.entries[:i], r.s.entries[i+1:]...)
				return
			}
		}
	})
}

func (r *LedgerEntryRepository) ListEntries(_ context.Context, _ repository.DBExecutor, userID uuid.UUID, currency string, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []domain.LedgerEntry
	for i := len(r.s.entries) - 1; i >= 0; i-- {
		e := r.s.entries[i]
		if e.UserID == userID && e.Currency == currency {
			matched = append(matched, e)
		}
	}
	return page(matched, limit, offset), int64(len(matched)), nil
}
