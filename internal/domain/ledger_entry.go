// internal/domain/ledger_entry.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind names the business event behind a ledger journal row.
type EntryKind string

const (
	EntryKindDeposit            EntryKind = "deposit"
	EntryKindWithdrawalReserve  EntryKind = "withdrawal_reserve"
	EntryKindWithdrawalPayout   EntryKind = "withdrawal_payout"
	EntryKindWithdrawalRelease  EntryKind = "withdrawal_release"
	EntryKindSignalStake        EntryKind = "signal_stake"
	EntryKindSignalSettle       EntryKind = "signal_settle"
	EntryKindSignalRefund       EntryKind = "signal_refund"
	EntryKindAdjustmentIncrease EntryKind = "adjustment_increase"
	EntryKindAdjustmentDecrease EntryKind = "adjustment_decrease"
)

// LedgerEntry is an append-only journal row written in the same transaction
// as the balance mutation it describes.
type LedgerEntry struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	Currency       string          `db:"currency" json:"currency"`
	Kind           EntryKind       `db:"kind" json:"kind"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	AvailableDelta decimal.Decimal `db:"available_delta" json:"available_delta"`
	LockedDelta    decimal.Decimal `db:"locked_delta" json:"locked_delta"`
	BalanceAfter   decimal.Decimal `db:"balance_after" json:"balance_after"`
	ReferenceID    *uuid.UUID      `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// NewLedgerEntry derives the deltas by comparing the row before and after.
func NewLedgerEntry(kind EntryKind, amount decimal.Decimal, before, after *Balance, referenceID *uuid.UUID) *LedgerEntry {
	return &LedgerEntry{
		ID:             uuid.New(),
		UserID:         after.UserID,
		Currency:       after.Currency,
		Kind:           kind,
		Amount:         amount,
		AvailableDelta: after.AvailableBalance.Sub(before.AvailableBalance),
		LockedDelta:    after.LockedBalance.Sub(before.LockedBalance),
		BalanceAfter:   after.Balance,
		ReferenceID:    referenceID,
		CreatedAt:      time.Now().UTC(),
	}
}

// TotalDelta is the change this entry made to the balance.
func (e *LedgerEntry) TotalDelta() decimal.Decimal {
	return e.AvailableDelta.Add(e.LockedDelta)
}
