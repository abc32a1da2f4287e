// internal/domain/balance.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations

	"tradedesk-ledger/internal/util"
)

// Balance is one user's funds in one currency.
// Balance always equals AvailableBalance + LockedBalance and no field is negative.
type Balance struct {
	UserID           uuid.UUID       `db:"user_id" json:"user_id"`
	Currency         string          `db:"currency" json:"currency"`
	Balance          decimal.Decimal `db:"balance" json:"balance"`
	AvailableBalance decimal.Decimal `db:"available_balance" json:"available_balance"`
	LockedBalance    decimal.Decimal `db:"locked_balance" json:"locked_balance"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// NewBalance creates an empty Balance row for lazy creation on first credit.
func NewBalance(userID uuid.UUID, currency string) *Balance {
	now := time.Now().UTC()
	return &Balance{
		UserID:           userID,
		Currency:         currency,
		Balance:          decimal.Zero,
		AvailableBalance: decimal.Zero,
		LockedBalance:    decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Validate checks the accounting invariant.
func (b *Balance) Validate() error {
	if b.Balance.IsNegative() || b.AvailableBalance.IsNegative() || b.LockedBalance.IsNegative() {
		return fmt.Errorf("%w: negative field on %s/%s (balance=%s available=%s locked=%s)",
			util.ErrInvariantViolation, b.UserID, b.Currency, b.Balance, b.AvailableBalance, b.LockedBalance)
	}
	if !b.Balance.Equal(b.AvailableBalance.Add(b.LockedBalance)) {
		return fmt.Errorf("%w: balance %s != available %s + locked %s on %s/%s",
			util.ErrInvariantViolation, b.Balance, b.AvailableBalance, b.LockedBalance, b.UserID, b.Currency)
	}
	return nil
}

// apply runs the mutation on a copy and only commits it to b when the result
// still satisfies Validate, so a failed operation never leaves b half-updated.
func (b *Balance) apply(mutate func(next *Balance) error) error {
	next := *b
	if err := mutate(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	*b = next
	return nil
}

// AmountScale is the number of decimal places every stored amount keeps.
const AmountScale = 8

// maxAmount is the first value a NUMERIC(20,8) column cannot hold.
var maxAmount = decimal.New(1, 20-AmountScale)

// ValidateAmount checks that amount is positive and storable without
// rounding.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", util.ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", util.ErrInvalidAmount, amount, AmountScale)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: %s exceeds the maximum of %s", util.ErrInvalidAmount, amount, maxAmount.Sub(decimal.New(1, -AmountScale)))
	}
	return nil
}

// Credit adds amount to the balance and to available funds.
func (b *Balance) Credit(amount decimal.Decimal) error {
	return b.apply(func(n *Balance) error {
		if err := ValidateAmount(amount); err != nil {
			return err
		}
		n.Balance = n.Balance.Add(amount)
		n.AvailableBalance = n.AvailableBalance.Add(amount)
		return nil
	})
}

// Debit removes amount from available funds and from the balance.
func (b *Balance) Debit(amount decimal.Decimal) error {
	return b.apply(func(n *Balance) error {
		if err := ValidateAmount(amount); err != nil {
			return err
		}
		if n.AvailableBalance.LessThan(amount) {
			return fmt.Errorf("%w: available %s, requested %s", util.ErrInsufficientFunds, n.AvailableBalance, amount)
		}
		n.Balance = n.Balance.Sub(amount)
		n.AvailableBalance = n.AvailableBalance.Sub(amount)
		return nil
	})
}

// Lock moves amount from available to locked funds.
func (b *Balance) Lock(amount decimal.Decimal) error {
	return b.apply(func(n *Balance) error {
		if err := ValidateAmount(amount); err != nil {
			return err
		}
		if n.AvailableBalance.LessThan(amount) {
			return fmt.Errorf("%w: available %s, requested %s", util.ErrInsufficientFunds, n.AvailableBalance, amount)
		}
		n.AvailableBalance = n.AvailableBalance.Sub(amount)
		n.LockedBalance = n.LockedBalance.Add(amount)
		return nil
	})
}

// Release moves amount from locked back to available funds.
// Releasing more than is locked means a caller lost track of a reservation.
func (b *Balance) Release(amount decimal.Decimal) error {
	return b.apply(func(n *Balance) error {
		if err := ValidateAmount(amount); err != nil {
			return err
		}
		if n.LockedBalance.LessThan(amount) {
			return fmt.Errorf("%w: release %s exceeds locked %s", util.ErrInvariantViolation, amount, n.LockedBalance)
		}
		n.LockedBalance = n.LockedBalance.Sub(amount)
		n.AvailableBalance = n.AvailableBalance.Add(amount)
		return nil
	})
}

// RemoveLocked takes amount out of locked funds and out of the balance; the
// money leaves the system. Used when a reserved withdrawal is paid out.
func (b *Balance) RemoveLocked(amount decimal.Decimal) error {
	return b.apply(func(n *Balance) error {
		if err := ValidateAmount(amount); err != nil {
			return err
		}
		if n.LockedBalance.LessThan(amount) {
			return fmt.Errorf("%w: remove %s exceeds locked %s", util.ErrInvariantViolation, amount, n.LockedBalance)
		}
		n.LockedBalance = n.LockedBalance.Sub(amount)
		n.Balance = n.Balance.Sub(amount)
		return nil
	})
}

// SettleLocked releases lockedAmount and pays settlementAmount into available
// funds in one step. The balance moves by settlementAmount - lockedAmount.
func (b *Balance) SettleLocked(lockedAmount, settlementAmount decimal.Decimal) error {
	return b.apply(func(n *Balance) error {
		if err := ValidateAmount(lockedAmount); err != nil {
			return err
		}
		if settlementAmount.IsNegative() {
			return fmt.Errorf("%w: settlement amount %s is negative", util.ErrInvalidAmount, settlementAmount)
		}
		if !settlementAmount.IsZero() {
			if err := ValidateAmount(settlementAmount); err != nil {
				return err
			}
		}
		if n.LockedBalance.LessThan(lockedAmount) {
			return fmt.Errorf("%w: settle %s exceeds locked %s", util.ErrInvariantViolation, lockedAmount, n.LockedBalance)
		}
		n.LockedBalance = n.LockedBalance.Sub(lockedAmount)
		n.AvailableBalance = n.AvailableBalance.Add(settlementAmount)
		n.Balance = n.Balance.Add(settlementAmount.Sub(lockedAmount))
		return nil
	})
}

// NormalizeCurrency upper-cases and validates an ISO-style currency code.
func NormalizeCurrency(currency string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if len(c) < 3 || len(c) > 10 {
		return "", fmt.Errorf("%w: currency %q", util.ErrInvalidInput, currency)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: currency %q", util.ErrInvalidInput, currency)
		}
	}
	return c, nil
}
