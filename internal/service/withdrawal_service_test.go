// internal/service/withdrawal_service_test.go
package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/util"
)

func wallet(addr string) domain.WithdrawalDestination {
	return domain.WithdrawalDestination{Address: &addr}
}

func TestWithdrawalLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectReleasesFunds", func(t *testing.T) {
		h := newHarness(t)
		user := uuid.New()
		h.fund(t, user, "55")

		w, b, err := h.withdrawals.RequestWithdrawal(ctx, user, dec("30"), "usd", "crypto", wallet("0xabc"))
		require.NoError(t, err)
		assert.Equal(t, "USD", w.Currency)
		assert.Equal(t, domain.RequestStatusPending, w.Status)
		assert.True(t, dec("30").Equal(b.LockedBalance))
		h.assertBalance(t, user, "25", "30")

		notes := "destination flagged"
		w, _, err = h.withdrawals.RejectWithdrawal(ctx, w.ID, h.admin, &notes)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusFailed, w.Status)
		require.NotNil(t, w.AdminNotes)
		assert.Equal(t, notes, *w.AdminNotes)
		h.assertBalance(t, user, "55", "0")
		h.assertInvariants(t)
	})

	t.Run("ApproveRemovesFunds", func(t *testing.T) {
		h := newHarness(t)
		user := uuid.New()
		h.fund(t, user, "55")

		w, _, err := h.withdrawals.RequestWithdrawal(ctx, user, dec("30"), "USD", "crypto", wallet("0xabc"))
		require.NoError(t, err)

		txID := "0xfeed"
		w, b, err := h.withdrawals.ApproveWithdrawal(ctx, w.ID, h.admin, &txID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusCompleted, w.Status)
		require.NotNil(t, w.ProcessedBy)
		assert.Equal(t, h.admin, *w.ProcessedBy)
		assert.True(t, dec("25").Equal(b.Balance))
		h.assertBalance(t, user, "25", "0")

		_, _, err = h.withdrawals.ApproveWithdrawal(ctx, w.ID, h.admin, nil)
		assert.ErrorIs(t, err, util.ErrNotPending)
		_, _, err = h.withdrawals.RejectWithdrawal(ctx, w.ID, h.admin, nil)
		assert.ErrorIs(t, err, util.ErrNotPending)
		h.assertBalance(t, user, "25", "0")
		h.assertInvariants(t)
	})

	t.Run("CancelByOwner", func(t *testing.T) {
		h := newHarness(t)
		user := uuid.New()
		h.fund(t, user, "55")
		w, _, err := h.withdrawals.RequestWithdrawal(ctx, user, dec("55"), "USD", "crypto", wallet("0xabc"))
		require.NoError(t, err)

		_, _, err = h.withdrawals.CancelWithdrawal(ctx, w.ID, uuid.New())
		assert.ErrorIs(t, err, util.ErrForbidden)
		h.assertBalance(t, user, "0", "55")

		w, _, err = h.withdrawals.CancelWithdrawal(ctx, w.ID, user)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusCancelled, w.Status)
		h.assertBalance(t, user, "55", "0")
		h.assertInvariants(t)
	})
}

func TestRequestWithdrawalRejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.New()
	h.fund(t, user, "20")

	tests := []struct {
		name    string
		amount  string
		dest    domain.WithdrawalDestination
		wantErr error
	}{
		{"ZeroAmount", "0", wallet("0xabc"), util.ErrInvalidAmount},
		{"NoDestination", "5", domain.WithdrawalDestination{}, util.ErrInvalidInput},
		{"MoreThanAvailable", "20.00000001", wallet("0xabc"), util.ErrInsufficientFunds},
		{"SubSatoshi", "0.000000005", wallet("0xabc"), util.ErrInvalidAmount},
		{"TooManyDecimals", "5.123456789", wallet("0xabc"), util.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.withdrawals.RequestWithdrawal(ctx, user, dec(tt.amount), "USD", "crypto", tt.dest)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, total, err := h.withdrawals.ListWithdrawals(ctx, domain.RequestFilter{UserID: &user})
	require.NoError(t, err)
	assert.Zero(t, total)
	h.assertBalance(t, user, "20", "0")
}
