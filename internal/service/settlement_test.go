// internal/service/settlement_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
)

// flakyUsages fails the failAt-th UpdateUsage call once.
type flakyUsages struct {
	repository.SignalUsageRepository
	calls  atomic.Int32
	failAt int32
}

var errDiskFull = errors.New("disk full")

func (f *flakyUsages) UpdateUsage(ctx context.Context, q repository.DBExecutor, u *domain.SignalUsage) error {
	if f.calls.Add(1) == f.failAt {
		return errDiskFull
	}
	return f.SignalUsageRepository.UpdateUsage(ctx, q, u)
}

func withFlakyUsages(failAt int32) harnessOption {
	return func(r *harnessRepos) {
		r.usages = &flakyUsages{SignalUsageRepository: r.usages, failAt: failAt}
	}
}

func TestExecuteSignalResumesAfterFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, withFlakyUsages(2))
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	sig := h.openSignal(t, "0.10", "0.05")
	for _, u := range users {
		h.fund(t, u, "100")
		_, _, err := h.signals.JoinSignal(ctx, u, sig.ID, dec("50"))
		require.NoError(t, err)
	}

	_, err := h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeProfit)
	require.ErrorIs(t, err, errDiskFull)

	got, err := h.signals.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusOpen, got.Status)
	settled, err := h.signals.ListUsages(ctx, domain.UsageFilter{SignalID: &sig.ID, Status: domain.UsageStatusSettled})
	require.NoError(t, err)
	require.Len(t, settled, 1)
	h.assertBalance(t, settled[0].UserID, "105", "0")
	h.assertInvariants(t)

	res, err := h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeProfit)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusExecuted, res.Signal.Status)
	assert.Len(t, res.Usages, 2)

	for _, u := range users {
		h.assertBalance(t, u, "105", "0")
	}
	pending, err := h.signals.ListUsages(ctx, domain.UsageFilter{SignalID: &sig.ID, Status: domain.UsageStatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
	h.assertInvariants(t)
}

func TestInterruptedExecutionKeepsItsTerms(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, withFlakyUsages(2))
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	sig := h.openSignal(t, "0.10", "0.05")
	for _, u := range users {
		h.fund(t, u, "100")
		_, _, err := h.signals.JoinSignal(ctx, u, sig.ID, dec("50"))
		require.NoError(t, err)
	}

	_, err := h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeProfit)
	require.ErrorIs(t, err, errDiskFull)

	got, err := h.signals.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusOpen, got.Status)
	require.NotNil(t, got.PendingStatus)
	assert.Equal(t, domain.SignalStatusExecuted, *got.PendingStatus)
	require.NotNil(t, got.Outcome)
	assert.Equal(t, domain.OutcomeProfit, *got.Outcome)

	_, err = h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeLoss)
	assert.ErrorIs(t, err, util.ErrSignalAlreadyResolved)
	_, err = h.settlement.CancelSignal(ctx, sig.ID)
	assert.ErrorIs(t, err, util.ErrSignalAlreadyResolved)

	late := uuid.New()
	h.fund(t, late, "100")
	_, _, err = h.signals.JoinSignal(ctx, late, sig.ID, dec("50"))
	assert.ErrorIs(t, err, util.ErrSignalNotOpen)

	h.clock.Advance(25 * time.Hour)
	results, err := h.settlement.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)

	pending, err := h.signals.ListUsages(ctx, domain.UsageFilter{SignalID: &sig.ID, Status: domain.UsageStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	res, err := h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeProfit)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusExecuted, res.Signal.Status)
	assert.Nil(t, res.Signal.PendingStatus)
	assert.Equal(t, domain.OutcomeProfit, *res.Signal.Outcome)
	for _, u := range users {
		h.assertBalance(t, u, "105", "0")
	}
	settled, err := h.signals.ListUsages(ctx, domain.UsageFilter{SignalID: &sig.ID, Status: domain.UsageStatusSettled})
	require.NoError(t, err)
	require.Len(t, settled, 3)
	for _, u := range settled {
		assert.True(t, dec("5").Equal(u.Result.Decimal), "stake %s result %s", u.ID, u.Result.Decimal)
	}
	h.assertBalance(t, late, "100", "0")
	h.assertInvariants(t)
}

func TestInterruptedExpiryFinishesOnNextSweep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, withFlakyUsages(1))
	users := []uuid.UUID{uuid.New(), uuid.New()}
	sig := h.openSignal(t, "0.10", "0.05")
	for _, u := range users {
		h.fund(t, u, "100")
		_, _, err := h.signals.JoinSignal(ctx, u, sig.ID, dec("40"))
		require.NoError(t, err)
	}

	h.clock.Advance(25 * time.Hour)
	_, err := h.settlement.ExpireDue(ctx)
	require.ErrorIs(t, err, errDiskFull)

	_, err = h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeProfit)
	assert.ErrorIs(t, err, util.ErrSignalAlreadyResolved)

	results, err := h.settlement.ExpireDue(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.SignalStatusExpired, results[0].Signal.Status)
	for _, u := range users {
		h.assertBalance(t, u, "100", "0")
	}
	h.assertInvariants(t)
}

func TestConcurrentApproveCreditsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.New()
	d, err := h.deposits.RequestDeposit(ctx, user, dec("75"), "USD", "card", nil)
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		notPend   atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := h.deposits.ApproveDeposit(ctx, d.ID, h.admin)
			switch {
			case err == nil:
				succeeded.Add(1)
			case util.IsError(err, util.ErrNotPending):
				notPend.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, workers-1, notPend.Load())
	h.assertBalance(t, user, "75", "0")
	h.assertInvariants(t)
}

func TestConcurrentResolutionHasOneWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, "100")
	sig := h.openSignal(t, "0.10", "0.05")
	_, _, err := h.signals.JoinSignal(ctx, user, sig.ID, dec("50"))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs [2]error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeProfit)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = h.settlement.CancelSignal(ctx, sig.ID)
	}()
	wg.Wait()

	got, err := h.signals.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	switch {
	case errs[0] == nil:
		assert.ErrorIs(t, errs[1], util.ErrSignalAlreadyResolved)
		assert.Equal(t, domain.SignalStatusExecuted, got.Status)
		h.assertBalance(t, user, "105", "0")
	case errs[1] == nil:
		assert.ErrorIs(t, errs[0], util.ErrSignalAlreadyResolved)
		assert.Equal(t, domain.SignalStatusCancelled, got.Status)
		h.assertBalance(t, user, "100", "0")
	default:
		t.Fatalf("both resolutions failed: %v / %v", errs[0], errs[1])
	}
	h.assertInvariants(t)
}

func TestConcurrentJoinsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, "100")

	const signals = 5
	ids := make([]uuid.UUID, signals)
	for i := range ids {
		ids[i] = h.openSignal(t, "0.10", "0.05").ID
	}

	var (
		wg     sync.WaitGroup
		joined atomic.Int32
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, _, err := h.signals.JoinSignal(ctx, user, id, dec("30")); err == nil {
				joined.Add(1)
			} else {
				assert.ErrorIs(t, err, util.ErrInsufficientFunds)
			}
		}(id)
	}
	wg.Wait()

	assert.EqualValues(t, 3, joined.Load())
	h.assertBalance(t, user, "10", "90")
	h.assertInvariants(t)
}

func TestNotificationsFollowWorkflow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, "100")
	w, _, err := h.withdrawals.RequestWithdrawal(ctx, user, dec("10"), "USD", "crypto", wallet("0xabc"))
	require.NoError(t, err)
	_, _, err = h.withdrawals.ApproveWithdrawal(ctx, w.ID, h.admin, nil)
	require.NoError(t, err)

	assert.Equal(t, []domain.NotificationKind{
		domain.NotifyDepositRequested,
		domain.NotifyDepositApproved,
		domain.NotifyWithdrawalRequested,
		domain.NotifyWithdrawalApproved,
	}, h.notifier.kinds())
}

func TestPackageCatalog(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	gold, err := h.packages.CreatePackage(ctx, "Gold", "priority desk", dec("5000"),
		domain.NewFeatureSet(domain.FeatureSignals, domain.FeatureDedicatedManager))
	require.NoError(t, err)
	assert.True(t, gold.Active)
	assert.True(t, gold.Features.Has(domain.FeatureDedicatedManager))

	_, err = h.packages.CreatePackage(ctx, "Starter", "", dec("100"), domain.NewFeatureSet(domain.FeatureSignals))
	require.NoError(t, err)

	_, err = h.packages.CreatePackage(ctx, "Gold", "again", dec("1"), 0)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = h.packages.CreatePackage(ctx, "Negative", "", dec("-1"), 0)
	assert.ErrorIs(t, err, util.ErrInvalidAmount)

	list, err := h.packages.ListPackages(ctx, true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Starter", list[0].Name)
	assert.Equal(t, "Gold", list[1].Name)
}
