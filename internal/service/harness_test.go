// internal/service/harness_test.go
package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/metrics"
	"tradedesk-ledger/internal/notify"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/repository/memory"
	"tradedesk-ledger/internal/util"
	"tradedesk-ledger/pkg/db"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier keeps every notification it is given.
type recordingNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func (n *recordingNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(n.notes))
	for _, note := range n.notes {
		out = append(out, note.Kind)
	}
	return out
}

var _ notify.Notifier = (*recordingNotifier)(nil)

// harness wires every service to one memory store.
type harness struct {
	store       *memory.Store
	clock       *fakeClock
	notifier    *recordingNotifier
	ledger      *LedgerStore
	deposits    DepositService
	withdrawals WithdrawalService
	signals     SignalService
	settlement  *SettlementEngine
	adjustments AdjustmentService
	packages    PackageService
	admin       uuid.UUID
}

type harnessOption func(*harnessRepos)

type harnessRepos struct {
	usages repository.SignalUsageRepository
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	store := memory.NewStore()
	repos := harnessRepos{usages: store.SignalUsages()}
	for _, opt := range opts {
		opt(&repos)
	}

	h := &harness{
		store:    store,
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		admin:    uuid.New(),
	}
	deps := Deps{
		Tx: TxRunner{
			Begin:    store.BeginTx,
			Commit:   db.CommitTx,
			Rollback: db.RollbackTx,
		},
		Reader:   store,
		Logger:   util.GetLogger(),
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Notifier: h.notifier,
		Clock:    h.clock.Now,
	}
	h.ledger = NewLedgerStore(deps, store.Balances(), store.LedgerEntries())
	h.deposits = NewDepositService(deps, h.ledger, store.Deposits())
	h.withdrawals = NewWithdrawalService(deps, h.ledger, store.Withdrawals())
	h.signals = NewSignalService(deps, SignalPolicy{MinStake: decimal.NewFromInt(10), Currency: "USD"},
		h.ledger, store.Signals(), repos.usages)
	h.settlement = NewSettlementEngine(deps, h.ledger, store.Signals(), repos.usages)
	h.adjustments = NewAdjustmentService(deps, h.ledger, store.Adjustments())
	h.packages = NewPackageService(deps, store.Packages())
	return h
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fund deposits amount USD for user through the approval workflow.
func (h *harness) fund(t *testing.T, user uuid.UUID, amount string) {
	t.Helper()
	ctx := context.Background()
	d, err := h.deposits.RequestDeposit(ctx, user, dec(amount), "USD", "bank_transfer", nil)
	require.NoError(t, err)
	_, _, err = h.deposits.ApproveDeposit(ctx, d.ID, h.admin)
	require.NoError(t, err)
}

func (h *harness) openSignal(t *testing.T, profit, loss string) *domain.Signal {
	t.Helper()
	sig, err := h.signals.CreateSignal(context.Background(), h.admin, domain.SignalParams{
		Name:         "BTC breakout",
		ProfitTarget: dec(profit),
		LossLimit:    dec(loss),
		Expiry:       h.clock.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	return sig
}

// assertBalance checks the user's USD row.
func (h *harness) assertBalance(t *testing.T, user uuid.UUID, available, locked string) {
	t.Helper()
	b, err := h.ledger.GetBalance(context.Background(), user, "USD")
	require.NoError(t, err)
	assert.True(t, dec(available).Equal(b.AvailableBalance), "available: want %s, got %s", available, b.AvailableBalance)
	assert.True(t, dec(locked).Equal(b.LockedBalance), "locked: want %s, got %s", locked, b.LockedBalance)
	assert.True(t, b.Balance.Equal(b.AvailableBalance.Add(b.LockedBalance)), "balance %s != available + locked", b.Balance)
}

// assertInvariants checks every row and that each row equals the sum of its journal.
func (h *harness) assertInvariants(t *testing.T) {
	t.Helper()
	for _, b := range h.store.AllBalances() {
		require.NoError(t, b.Validate(), "balance %s/%s", b.UserID, b.Currency)

		entries, _, err := h.ledger.ListEntries(context.Background(), b.UserID, b.Currency, 100, 0)
		require.NoError(t, err)
		available, locked := decimal.Zero, decimal.Zero
		for _, e := range entries {
			available = available.Add(e.AvailableDelta)
			locked = locked.Add(e.LockedDelta)
		}
		assert.True(t, available.Equal(b.AvailableBalance), "journal available %s != %s", available, b.AvailableBalance)
		assert.True(t, locked.Equal(b.LockedBalance), "journal locked %s != %s", locked, b.LockedBalance)
	}
}

// totalFunds sums balance over every row.
func (h *harness) totalFunds() decimal.Decimal {
	total := decimal.Zero
	for _, b := range h.store.AllBalances() {
		total = total.Add(b.Balance)
	}
	return total
}
