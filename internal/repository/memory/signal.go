package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
)

// SignalRepository implements repository.SignalRepository in memory.
type SignalRepository struct{ s *Store }

// Signals returns the store's signal table.
func (s *Store) Signals() repository.SignalRepository { return &SignalRepository{s} }

func (r *SignalRepository) CreateSignal(_ context.Context, q repository.DBExecutor, sig *domain.Signal) error {
	return r.s.write(q, func() { r.s.signals[sig.ID] = *sig }, func() { delete(r.s.signals, sig.ID) })
}

func (r *SignalRepository) GetSignal(_ context.Context, _ repository.DBExecutor, id uuid.UUID) (*domain.Signal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sig, ok := r.s.signals[id]
	if !ok {
		return nil, fmt.Errorf("%w: signal %s", util.ErrNotFound, id)
	}
	return &sig, nil
}

func (r *SignalRepository) GetSignalForUpdate(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Signal, error) {
	if err := lockRow(q, "signal:"+id.String()); err != nil {
		return nil, err
	}
	return r.GetSignal(ctx, q, id)
}

func (r *SignalRepository) UpdateSignal(ctx context.Context, q repository.DBExecutor, sig *domain.Signal) error {
	prev, err := r.GetSignal(ctx, q, sig.ID)
	if err != nil {
		return err
	}
	return r.s.write(q, func() { r.s.signals[sig.ID] = *sig }, func() { r.s.signals[sig.ID] = *prev })
}

func (r *SignalRepository) ListSignals(_ context.Context, _ repository.DBExecutor, status domain.SignalStatus) ([]domain.Signal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Signal{}
	for _, sig := range r.s.signals {
		if status == "" || sig.Status == status {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *SignalRepository) ListDueSignalIDs(_ context.Context, _ repository.DBExecutor, now time.Time) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []domain.Signal
	for _, sig := range r.s.signals {
		if sig.IsDue(now) {
			due = append(due, sig)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Expiry.Before(due[j].Expiry) })
	ids := make([]uuid.UUID, 0, len(due))
	for _, sig := range due {
		ids = append(ids, sig.ID)
	}
	return ids, nil
}

// SignalUsageRepository implements repository.SignalUsageRepository in memory.
type SignalUsageRepository struct{ s *Store }

// SignalUsages returns the store's stake table.
func (s *Store) SignalUsages() repository.SignalUsageRepository { return &SignalUsageRepository{s} }

func (r *SignalUsageRepository) CreateUsage(_ context.Context, q repository.DBExecutor, u *domain.SignalUsage) error {
	var dup bool
	err := r.s.write(q, func() {
		for _, existing := range r.s.usages {
			if existing.SignalID == u.SignalID && existing.UserID == u.UserID && existing.Status == domain.UsageStatusPending {
				dup = true
				return
			}
		}
		r.s.usages[u.ID] = *u
	}, func() {
		delete(r.s.usages, u.ID)
	})
	if err != nil {
		return err
	}
	if dup {
		return fmt.Errorf("%w: signal %s", util.ErrAlreadyJoined, u.SignalID)
	}
	return nil
}

func (r *SignalUsageRepository) get(id uuid.UUID) (*domain.SignalUsage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.usages[id]
	if !ok {
		return nil, fmt.Errorf("%w: signal usage %s", util.ErrNotFound, id)
	}
	return &u, nil
}

func (r *SignalUsageRepository) GetUsageForUpdate(_ context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.SignalUsage, error) {
	if err := lockRow(q, "usage:"+id.String()); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r *SignalUsageRepository) UpdateUsage(_ context.Context, q repository.DBExecutor, u *domain.SignalUsage) error {
	prev, err := r.get(u.ID)
	if err != nil {
		return err
	}
	return r.s.write(q, func() { r.s.usages[u.ID] = *u }, func() { r.s.usages[u.ID] = *prev })
}

func (r *SignalUsageRepository) HasPendingUsage(_ context.Context, _ repository.DBExecutor, signalID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.usages {
		if u.SignalID == signalID && u.UserID == userID && u.Status == domain.UsageStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *SignalUsageRepository) ListPendingUsageIDs(ctx context.Context, q repository.DBExecutor, signalID uuid.UUID) ([]uuid.UUID, error) {
	usages, err := r.ListUsages(ctx, q, domain.UsageFilter{SignalID: &signalID, Status: domain.UsageStatusPending})
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(usages))
	for i := len(usages) - 1; i >= 0; i-- {
		ids = append(ids, usages[i].ID)
	}
	return ids, nil
}

func (r *SignalUsageRepository) ListUsages(_ context.Context, _ repository.DBExecutor, f domain.UsageFilter) ([]domain.SignalUsage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.SignalUsage{}
	for _, u := range r.s.usages {
		if (f.SignalID == nil || u.SignalID == *f.SignalID) &&
			(f.UserID == nil || u.UserID == *f.UserID) &&
			(f.Status == "" || u.Status == f.Status) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
