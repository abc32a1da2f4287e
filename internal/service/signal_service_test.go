// internal/service/signal_service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/util"
)

func TestJoinAndExecuteProfit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, "100")
	sig := h.openSignal(t, "0.10", "0.05")

	u, b, err := h.signals.JoinSignal(ctx, user, sig.ID, dec("50"))
	require.NoError(t, err)
	assert.Equal(t, domain.UsageStatusPending, u.Status)
	assert.False(t, u.Result.Valid)
	assert.True(t, dec("50").Equal(b.AvailableBalance))
	h.assertBalance(t, user, "50", "50")

	res, err := h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeProfit)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusExecuted, res.Signal.Status)
	require.Len(t, res.Usages, 1)
	assert.Equal(t, domain.UsageStatusSettled, res.Usages[0].Status)
	assert.True(t, dec("5").Equal(res.Usages[0].Result.Decimal))
	assert.NotNil(t, res.Usages[0].SettledAt)

	h.assertBalance(t, user, "105", "0")
	h.assertInvariants(t)
	assert.Contains(t, h.notifier.kinds(), domain.NotifySignalSettled)
}

func TestJoinAndExecuteLoss(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, "100")
	sig := h.openSignal(t, "0.10", "0.05")

	_, _, err := h.signals.JoinSignal(ctx, user, sig.ID, dec("50"))
	require.NoError(t, err)

	res, err := h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeLoss)
	require.NoError(t, err)
	require.Len(t, res.Usages, 1)
	assert.True(t, dec("-2.5").Equal(res.Usages[0].Result.Decimal))

	h.assertBalance(t, user, "97.5", "0")
	h.assertInvariants(t)
}

func TestJoinAndCancel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, "100")
	sig := h.openSignal(t, "0.10", "0.05")

	_, _, err := h.signals.JoinSignal(ctx, user, sig.ID, dec("50"))
	require.NoError(t, err)

	res, err := h.settlement.CancelSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusCancelled, res.Signal.Status)
	require.Len(t, res.Usages, 1)
	assert.Equal(t, domain.UsageStatusCancelled, res.Usages[0].Status)
	assert.True(t, res.Usages[0].Result.Decimal.IsZero())

	h.assertBalance(t, user, "100", "0")
	h.assertInvariants(t)
	assert.Contains(t, h.notifier.kinds(), domain.NotifySignalRefunded)
}

func TestResolveTwice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, "100")
	sig := h.openSignal(t, "0.10", "0.05")
	_, _, err := h.signals.JoinSignal(ctx, user, sig.ID, dec("50"))
	require.NoError(t, err)

	_, err = h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeProfit)
	require.NoError(t, err)

	_, err = h.settlement.ExecuteSignal(ctx, sig.ID, domain.OutcomeProfit)
	assert.ErrorIs(t, err, util.ErrSignalAlreadyResolved)
	_, err = h.settlement.CancelSignal(ctx, sig.ID)
	assert.ErrorIs(t, err, util.ErrSignalAlreadyResolved)

	h.assertBalance(t, user, "105", "0")
	usages, err := h.signals.ListUsages(ctx, domain.UsageFilter{SignalID: &sig.ID})
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, domain.UsageStatusSettled, usages[0].Status)
}

func TestJoinSignalRejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, "100")
	sig := h.openSignal(t, "0.10", "0.05")

	t.Run("BelowMinimum", func(t *testing.T) {
		_, _, err := h.signals.JoinSignal(ctx, user, sig.ID, dec("5"))
		assert.ErrorIs(t, err, util.ErrBelowMinimum)
		h.assertBalance(t, user, "100", "0")
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		_, _, err := h.signals.JoinSignal(ctx, user, sig.ID, dec("-20"))
		assert.ErrorIs(t, err, util.ErrInvalidAmount)
		_, _, err = h.signals.JoinSignal(ctx, user, sig.ID, dec("20.000000001"))
		assert.ErrorIs(t, err, util.ErrInvalidAmount)
		h.assertBalance(t, user, "100", "0")
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		_, _, err := h.signals.JoinSignal(ctx, user, sig.ID, dec("100.01"))
		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		h.assertBalance(t, user, "100", "0")
	})

	t.Run("UnfundedUser", func(t *testing.T) {
		_, _, err := h.signals.JoinSignal(ctx, uuid.New(), sig.ID, dec("10"))
		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
	})

	t.Run("AlreadyJoined", func(t *testing.T) {
		_, _, err := h.signals.JoinSignal(ctx, user, sig.ID, dec("10"))
		require.NoError(t, err)
		_, _, err = h.signals.JoinSignal(ctx, user, sig.ID, dec("10"))
		assert.ErrorIs(t, err, util.ErrAlreadyJoined)
		h.assertBalance(t, user, "90", "10")
	})

	t.Run("UnknownSignal", func(t *testing.T) {
		_, _, err := h.signals.JoinSignal(ctx, user, uuid.New(), dec("10"))
		assert.ErrorIs(t, err, util.ErrNotFound)
	})

	t.Run("ResolvedSignal", func(t *testing.T) {
		closed := h.openSignal(t, "0.2", "0.1")
		_, err := h.settlement.CancelSignal(ctx, closed.ID)
		require.NoError(t, err)
		_, _, err = h.signals.JoinSignal(ctx, user, closed.ID, dec("10"))
		assert.ErrorIs(t, err, util.ErrSignalNotOpen)
	})

	t.Run("PastExpiry", func(t *testing.T) {
		late := h.openSignal(t, "0.2", "0.1")
		h.clock.Advance(25 * time.Hour)
		_, _, err := h.signals.JoinSignal(ctx, user, late.ID, dec("10"))
		assert.ErrorIs(t, err, util.ErrSignalNotOpen)
	})

	h.assertInvariants(t)
}

func TestCreateSignalValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	now := h.clock.Now()

	tests := []struct {
		name   string
		params domain.SignalParams
	}{
		{"EmptyName", domain.SignalParams{Name: " ", ProfitTarget: dec("0.1"), LossLimit: dec("0.1"), Expiry: now.Add(time.Hour)}},
		{"ZeroProfit", domain.SignalParams{Name: "s", ProfitTarget: dec("0"), LossLimit: dec("0.1"), Expiry: now.Add(time.Hour)}},
		{"NegativeLoss", domain.SignalParams{Name: "s", ProfitTarget: dec("0.1"), LossLimit: dec("-0.1"), Expiry: now.Add(time.Hour)}},
		{"LossAboveStake", domain.SignalParams{Name: "s", ProfitTarget: dec("0.1"), LossLimit: dec("1.5"), Expiry: now.Add(time.Hour)}},
		{"PastExpiry", domain.SignalParams{Name: "s", ProfitTarget: dec("0.1"), LossLimit: dec("0.1"), Expiry: now}},
		{"RateTooPrecise", domain.SignalParams{Name: "s", ProfitTarget: dec("0.1234567"), LossLimit: dec("0.1"), Expiry: now.Add(time.Hour)}},
		{"ProfitTooLarge", domain.SignalParams{Name: "s", ProfitTarget: dec("10000"), LossLimit: dec("0.1"), Expiry: now.Add(time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.signals.CreateSignal(ctx, h.admin, tt.params)
			assert.ErrorIs(t, err, util.ErrInvalidInput)
		})
	}

	signals, err := h.signals.ListSignals(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestExpireSignal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, bob := uuid.New(), uuid.New()
	h.fund(t, alice, "100")
	h.fund(t, bob, "40")
	sig := h.openSignal(t, "0.10", "0.05")
	other := h.openSignal(t, "0.10", "0.05")
	_, _, err := h.signals.JoinSignal(ctx, alice, sig.ID, dec("60"))
	require.NoError(t, err)
	_, _, err = h.signals.JoinSignal(ctx, bob, sig.ID, dec("40"))
	require.NoError(t, err)

	_, err = h.settlement.ExpireSignal(ctx, sig.ID)
	assert.ErrorIs(t, err, util.ErrSignalNotExpired)
	h.assertBalance(t, alice, "40", "60")

	h.clock.Advance(24 * time.Hour)
	results, err := h.settlement.ExpireDue(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	got, err := h.signals.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusExpired, got.Status)
	assert.NotNil(t, got.ResolvedAt)
	got, err = h.signals.GetSignal(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalStatusExpired, got.Status)

	h.assertBalance(t, alice, "100", "0")
	h.assertBalance(t, bob, "40", "0")

	// A second sweep finds nothing to do.
	results, err = h.settlement.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
	h.assertInvariants(t)
}

func TestSignalConservation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	stakes := map[uuid.UUID]string{uuid.New(): "10", uuid.New(): "33.33", uuid.New(): "150"}
	for user := range stakes {
		h.fund(t, user, "200")
	}
	before := h.totalFunds()

	cancelled := h.openSignal(t, "0.25", "0.5")
	for user, amount := range stakes {
		_, _, err := h.signals.JoinSignal(ctx, user, cancelled.ID, dec(amount))
		require.NoError(t, err)
	}
	assert.True(t, before.Equal(h.totalFunds()), "joining must not change total funds")

	_, err := h.settlement.CancelSignal(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.True(t, before.Equal(h.totalFunds()), "refunds must restore total funds")

	executed := h.openSignal(t, "0.25", "0.5")
	for user, amount := range stakes {
		_, _, err := h.signals.JoinSignal(ctx, user, executed.ID, dec(amount))
		require.NoError(t, err)
	}
	res, err := h.settlement.ExecuteSignal(ctx, executed.ID, domain.OutcomeLoss)
	require.NoError(t, err)

	results := dec("0")
	for _, u := range res.Usages {
		results = results.Add(u.Result.Decimal)
	}
	assert.True(t, before.Add(results).Equal(h.totalFunds()), "total funds must move by the sum of results")
	h.assertInvariants(t)
}
