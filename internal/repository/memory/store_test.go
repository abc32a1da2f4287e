// internal/repository/memory/store_test.go
package memory

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/util"
)

func seedBalance(t *testing.T, s *Store, amount int64) *domain.Balance {
	t.Helper()
	b := domain.NewBalance(uuid.New(), "USD")
	require.NoError(t, b.Credit(decimal.NewFromInt(amount)))
	require.NoError(t, s.Balances().CreateBalance(context.Background(), s, b))
	return b
}

func TestRollbackUndoesWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	b := seedBalance(t, s, 100)
	repo := s.Balances()

	tx, err := s.BeginTx(ctx, nil)
	require.NoError(t, err)
	q := tx.(*Tx)

	locked, err := repo.GetBalanceForUpdate(ctx, q, b.UserID, "USD")
	require.NoError(t, err)
	require.NoError(t, locked.Debit(decimal.NewFromInt(40)))
	require.NoError(t, repo.UpdateBalance(ctx, q, locked))

	fresh := domain.NewBalance(uuid.New(), "EUR")
	require.NoError(t, repo.CreateBalance(ctx, q, fresh))
	require.NoError(t, s.LedgerEntries().CreateEntry(ctx, q, domain.NewLedgerEntry(domain.EntryKindDeposit, decimal.NewFromInt(1), b, locked, nil)))

	require.NoError(t, tx.Rollback())
	assert.ErrorIs(t, tx.Commit(), sql.ErrTxDone)

	got, err := repo.GetBalance(ctx, s, b.UserID, "USD")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(got.AvailableBalance))

	_, err = repo.GetBalance(ctx, s, fresh.UserID, "EUR")
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, total, err := s.LedgerEntries().ListEntries(ctx, s, b.UserID, "USD", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRowLockBlocksUntilCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	b := seedBalance(t, s, 100)
	repo := s.Balances()

	first, err := s.BeginTx(ctx, nil)
	require.NoError(t, err)
	held, err := repo.GetBalanceForUpdate(ctx, first.(*Tx), b.UserID, "USD")
	require.NoError(t, err)

	acquired := make(chan *domain.Balance)
	go func() {
		second, _ := s.BeginTx(ctx, nil)
		defer second.Rollback()
		got, err := repo.GetBalanceForUpdate(ctx, second.(*Tx), b.UserID, "USD")
		if err != nil {
			close(acquired)
			return
		}
		acquired <- got
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction acquired a held row lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, held.Lock(decimal.NewFromInt(30)))
	require.NoError(t, repo.UpdateBalance(ctx, first.(*Tx), held))
	require.NoError(t, first.Commit())

	select {
	case got, ok := <-acquired:
		require.True(t, ok)
		assert.True(t, decimal.NewFromInt(30).Equal(got.LockedBalance), "waiter must see the committed row")
	case <-time.After(time.Second):
		t.Fatal("row lock was not released on commit")
	}
}

func TestRowLockRespectsContext(t *testing.T) {
	s := NewStore()
	b := seedBalance(t, s, 10)
	repo := s.Balances()

	holder, err := s.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer holder.Rollback()
	_, err = repo.GetBalanceForUpdate(context.Background(), holder.(*Tx), b.UserID, "USD")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waiter, err := s.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer waiter.Rollback()

	_, err = repo.GetBalanceForUpdate(ctx, waiter.(*Tx), b.UserID, "USD")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockIsReentrant(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	b := seedBalance(t, s, 10)

	tx, err := s.BeginTx(ctx, nil)
	require.NoError(t, err)
	q := tx.(*Tx)
	_, err = s.Balances().GetBalanceForUpdate(ctx, q, b.UserID, "USD")
	require.NoError(t, err)
	_, err = s.Balances().GetBalanceForUpdate(ctx, q, b.UserID, "USD")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func TestPendingUsageQueries(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	sig := domain.NewSignal(uuid.New(), "USD", domain.SignalParams{
		Name: "s", ProfitTarget: decimal.NewFromFloat(0.1), LossLimit: decimal.NewFromFloat(0.1), Expiry: time.Now().Add(time.Hour),
	})
	require.NoError(t, s.Signals().CreateSignal(ctx, s, sig))

	user := uuid.New()
	u := domain.NewSignalUsage(sig.ID, user, decimal.NewFromInt(10))
	require.NoError(t, s.SignalUsages().CreateUsage(ctx, s, u))

	pending, err := s.SignalUsages().HasPendingUsage(ctx, s, sig.ID, user)
	require.NoError(t, err)
	assert.True(t, pending)

	ids, err := s.SignalUsages().ListPendingUsageIDs(ctx, s, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u.ID}, ids)

	require.NoError(t, u.Refund(time.Now()))
	require.NoError(t, s.SignalUsages().UpdateUsage(ctx, s, u))

	pending, err = s.SignalUsages().HasPendingUsage(ctx, s, sig.ID, user)
	require.NoError(t, err)
	assert.False(t, pending)

	due, err := s.Signals().ListDueSignalIDs(ctx, s, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{sig.ID}, due)
}
