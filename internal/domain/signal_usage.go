// internal/domain/signal_usage.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/util"
)

// UsageStatus is the lifecycle state of a stake.
type UsageStatus string

const (
	UsageStatusPending   UsageStatus = "pending"
	UsageStatusSettled   UsageStatus = "settled"
	UsageStatusCancelled UsageStatus = "cancelled"
)

// SignalUsage is one user's locked stake against one signal.
// Result stays null until the stake is settled or refunded.
type SignalUsage struct {
	ID        uuid.UUID           `db:"id" json:"id"`
	SignalID  uuid.UUID           `db:"signal_id" json:"signal_id"`
	UserID    uuid.UUID           `db:"user_id" json:"user_id"`
	Amount    decimal.Decimal     `db:"amount" json:"amount"`
	Result    decimal.NullDecimal `db:"result" json:"result"`
	Status    UsageStatus         `db:"status" json:"status"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	SettledAt *time.Time          `db:"settled_at" json:"settled_at,omitempty"`
}

// NewSignalUsage creates a pending stake.
func NewSignalUsage(signalID, userID uuid.UUID, amount decimal.Decimal) *SignalUsage {
	return &SignalUsage{
		ID:        uuid.New(),
		SignalID:  signalID,
		UserID:    userID,
		Amount:    amount,
		Status:    UsageStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Payout is what the stake returns to available funds at rate.
func (u *SignalUsage) Payout(rate decimal.Decimal) (result, payout decimal.Decimal) {
	result = u.Amount.Mul(rate).Round(8)
	return result, u.Amount.Add(result)
}

// Settle records the signed monetary outcome.
func (u *SignalUsage) Settle(result decimal.Decimal, now time.Time) error {
	return u.finish(UsageStatusSettled, result, now)
}

// Refund records a full refund.
func (u *SignalUsage) Refund(now time.Time) error {
	return u.finish(UsageStatusCancelled, decimal.Zero, now)
}

func (u *SignalUsage) finish(status UsageStatus, result decimal.Decimal, now time.Time) error {
	if u.Status != UsageStatusPending {
		return fmt.Errorf("%w: stake %s is %s", util.ErrNotPending, u.ID, u.Status)
	}
	u.Status = status
	u.Result = decimal.NewNullDecimal(result)
	settled := now.UTC()
	u.SettledAt = &settled
	return nil
}

// UsageFilter narrows stake listings. Zero values match all.
type UsageFilter struct {
	SignalID *uuid.UUID
	UserID   *uuid.UUID
	Status   UsageStatus
}
