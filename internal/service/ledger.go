// internal/service/ledger.go
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
)

// EntryRef tags a ledger mutation with the business event behind it.
type EntryRef struct {
	Kind        domain.EntryKind
	ReferenceID *uuid.UUID
}

// Ref builds an EntryRef for the record id.
func Ref(kind domain.EntryKind, id uuid.UUID) EntryRef {
	return EntryRef{Kind: kind, ReferenceID: &id}
}

// Movement is the locked row before and after one mutation, read and written
// inside the caller's transaction.
type Movement struct {
	Before domain.Balance
	After  domain.Balance
	Entry  *domain.LedgerEntry
}

// LedgerStore is the only writer of balance rows. Every mutation runs on the
// caller's transaction q, holds the (user, currency) row lock until q ends and
// appends one journal entry.
type LedgerStore struct {
	deps     Deps
	balances repository.BalanceRepository
	entries  repository.LedgerEntryRepository
}

// NewLedgerStore creates a LedgerStore.
func NewLedgerStore(deps Deps, balances repository.BalanceRepository, entries repository.LedgerEntryRepository) *LedgerStore {
	return &LedgerStore{deps: deps, balances: balances, entries: entries}
}

// Credit adds amount to balance and available. The row is created on first credit.
func (l *LedgerStore) Credit(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string, amount decimal.Decimal, ref EntryRef) (*Movement, error) {
	return l.mutate(ctx, q, userID, currency, true, amount, ref, func(b *domain.Balance) error {
		return b.Credit(amount)
	})
}

// Debit removes amount from available and balance.
func (l *LedgerStore) Debit(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string, amount decimal.Decimal, ref EntryRef) (*Movement, error) {
	return l.mutate(ctx, q, userID, currency, false, amount, ref, func(b *domain.Balance) error {
		return b.Debit(amount)
	})
}

// Lock moves amount from available to locked.
func (l *LedgerStore) Lock(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string, amount decimal.Decimal, ref EntryRef) (*Movement, error) {
	return l.mutate(ctx, q, userID, currency, false, amount, ref, func(b *domain.Balance) error {
		return b.Lock(amount)
	})
}

// Release moves amount from locked back to available.
func (l *LedgerStore) Release(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string, amount decimal.Decimal, ref EntryRef) (*Movement, error) {
	return l.mutate(ctx, q, userID, currency, false, amount, ref, func(b *domain.Balance) error {
		return b.Release(amount)
	})
}

// RemoveLocked takes a reserved amount out of the system.
func (l *LedgerStore) RemoveLocked(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string, amount decimal.Decimal, ref EntryRef) (*Movement, error) {
	return l.mutate(ctx, q, userID, currency, false, amount, ref, func(b *domain.Balance) error {
		return b.RemoveLocked(amount)
	})
}

// SettleLocked releases lockedAmount and credits settlementAmount in one step.
func (l *LedgerStore) SettleLocked(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string, lockedAmount, settlementAmount decimal.Decimal, ref EntryRef) (*Movement, error) {
	return l.mutate(ctx, q, userID, currency, false, settlementAmount, ref, func(b *domain.Balance) error {
		return b.SettleLocked(lockedAmount, settlementAmount)
	})
}

func (l *LedgerStore) mutate(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, currency string, create bool, amount decimal.Decimal, ref EntryRef, apply func(*domain.Balance) error) (*Movement, error) {
	b, err := l.balances.GetBalanceForUpdate(ctx, q, userID, currency)
	missing := util.IsError(err, util.ErrNotFound)
	switch {
	case missing && create:
		if err := l.balances.CreateBalance(ctx, q, domain.NewBalance(userID, currency)); err != nil {
			return nil, err
		}
		if b, err = l.balances.GetBalanceForUpdate(ctx, q, userID, currency); err != nil {
			return nil, err
		}
	case missing:
		// Only a credit may succeed against an absent row; run apply on a
		// zero row so the caller gets the same error it would on an empty one.
		zero := domain.NewBalance(userID, currency)
		if err := l.check(apply(zero), userID, currency); err != nil {
			return nil, err
		}
		return nil, l.check(fmt.Errorf("%w: %s on missing balance %s/%s", util.ErrInvariantViolation, ref.Kind, userID, currency), userID, currency)
	case err != nil:
		return nil, err
	}

	before := *b
	if err := l.check(apply(b), userID, currency); err != nil {
		return nil, err
	}
	if err := l.balances.UpdateBalance(ctx, q, b); err != nil {
		return nil, err
	}
	entry := domain.NewLedgerEntry(ref.Kind, amount, &before, b, ref.ReferenceID)
	if err := l.entries.CreateEntry(ctx, q, entry); err != nil {
		return nil, err
	}
	l.deps.Metrics.LedgerMutation(string(ref.Kind))
	return &Movement{Before: before, After: *b, Entry: entry}, nil
}

// check logs invariant violations distinctly from user-facing errors.
func (l *LedgerStore) check(err error, userID uuid.UUID, currency string) error {
	if err != nil && errors.Is(err, util.ErrInvariantViolation) {
		l.deps.Metrics.InvariantViolation()
		l.deps.logger().Error("Ledger invariant violation", "user_id", userID, "currency", currency, "error", err)
	}
	return err
}

// GetBalance returns the user's row for currency, or a zero balance when none exists yet.
func (l *LedgerStore) GetBalance(ctx context.Context, userID uuid.UUID, currency string) (*domain.Balance, error) {
	currency, err := domain.NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	b, err := l.balances.GetBalance(ctx, l.deps.Reader, userID, currency)
	if util.IsError(err, util.ErrNotFound) {
		return domain.NewBalance(userID, currency), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// ListBalances returns every currency the user holds.
func (l *LedgerStore) ListBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	balances, err := l.balances.ListBalances(ctx, l.deps.Reader, userID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return balances, nil
}

// ListEntries pages the user's journal for currency.
func (l *LedgerStore) ListEntries(ctx context.Context, userID uuid.UUID, currency string, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	currency, err := domain.NormalizeCurrency(currency)
	if err != nil {
		return nil, 0, err
	}
	limit, offset = clampPage(limit, offset)
	entries, total, err := l.entries.ListEntries(ctx, l.deps.Reader, userID, currency, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, total, nil
}
