// internal/domain/signal.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/util"
)

// SignalStatus is the lifecycle state of a Signal. Open is the only
// non-terminal state. An open signal with a PendingStatus is part way
// through resolution.
type SignalStatus string

const (
	SignalStatusOpen      SignalStatus = "open"
	SignalStatusExecuted  SignalStatus = "executed"
	SignalStatusExpired   SignalStatus = "expired"
	SignalStatusCancelled SignalStatus = "cancelled"
)

// ParseSignalStatus validates a status filter coming from a caller.
func ParseSignalStatus(s string) (SignalStatus, error) {
	switch st := SignalStatus(s); st {
	case SignalStatusOpen, SignalStatusExecuted, SignalStatusExpired, SignalStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown signal status %q", util.ErrInvalidInput, s)
}

// Outcome is supplied by the administrator when a signal is executed.
type Outcome string

const (
	OutcomeProfit Outcome = "profit"
	OutcomeLoss   Outcome = "loss"
)

// ParseOutcome validates an outcome name.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeProfit, OutcomeLoss:
		return o, nil
	}
	return "", fmt.Errorf("%w: outcome must be %q or %q, got %q", util.ErrInvalidInput, OutcomeProfit, OutcomeLoss, s)
}

// Signal is an admin-authored proposition users stake funds against.
// ProfitTarget and LossLimit are fractions of the stake.
type Signal struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Currency     string          `db:"currency" json:"currency"`
	ProfitTarget decimal.Decimal `db:"profit_target" json:"profit_target"`
	LossLimit    decimal.Decimal `db:"loss_limit" json:"loss_limit"`
	Expiry       time.Time       `db:"expiry" json:"expiry"`
	Status       SignalStatus    `db:"status" json:"status"`
	Outcome      *Outcome        `db:"outcome" json:"outcome,omitempty"`
	CreatedBy    uuid.UUID       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`

	// PendingStatus is the resolution in progress; stakes are settled on
	// these terms only.
	PendingStatus *SignalStatus `db:"pending_status" json:"pending_status,omitempty"`
}

// rateScale and maxRate bound ProfitTarget and LossLimit to NUMERIC(10,6).
const rateScale = 6

var maxRate = decimal.New(1, 10-rateScale)

// SignalParams are the admin inputs for a new signal.
type SignalParams struct {
	Name         string
	ProfitTarget decimal.Decimal
	LossLimit    decimal.Decimal
	Expiry       time.Time
}

// Validate checks the params against now. LossLimit may not exceed 1 so a
// losing stake can never settle below zero.
func (p SignalParams) Validate(now time.Time) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: signal name is required", util.ErrInvalidInput)
	}
	if !p.ProfitTarget.IsPositive() {
		return fmt.Errorf("%w: profit target must be positive", util.ErrInvalidInput)
	}
	if !p.LossLimit.IsPositive() || p.LossLimit.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: loss limit must be in (0, 1]", util.ErrInvalidInput)
	}
	if !p.ProfitTarget.Equal(p.ProfitTarget.Truncate(rateScale)) || !p.LossLimit.Equal(p.LossLimit.Truncate(rateScale)) {
		return fmt.Errorf("%w: rates take at most %d decimal places", util.ErrInvalidInput, rateScale)
	}
	if p.ProfitTarget.GreaterThanOrEqual(maxRate) {
		return fmt.Errorf("%w: profit target must be below %s", util.ErrInvalidInput, maxRate)
	}
	if !p.Expiry.After(now) {
		return fmt.Errorf("%w: expiry must be in the future", util.ErrInvalidInput)
	}
	return nil
}

// NewSignal creates an open Signal.
func NewSignal(adminID uuid.UUID, currency string, p SignalParams) *Signal {
	return &Signal{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(p.Name),
		Currency:     currency,
		ProfitTarget: p.ProfitTarget,
		LossLimit:    p.LossLimit,
		Expiry:       p.Expiry.UTC(),
		Status:       SignalStatusOpen,
		CreatedBy:    adminID,
		CreatedAt:    time.Now().UTC(),
	}
}

// IsJoinable reports whether new stakes are accepted at now. An open signal
// past its expiry is waiting for the sweeper and takes no new stakes.
func (s *Signal) IsJoinable(now time.Time) bool {
	return s.Status == SignalStatusOpen && s.PendingStatus == nil && now.Before(s.Expiry)
}

// IsDue reports whether the signal should be expired at now. A signal that
// is being executed or cancelled is not due.
func (s *Signal) IsDue(now time.Time) bool {
	if s.PendingStatus != nil && *s.PendingStatus != SignalStatusExpired {
		return false
	}
	return s.Status == SignalStatusOpen && !now.Before(s.Expiry)
}

// Rate is the signed fraction of the stake paid out for outcome.
func (s *Signal) Rate(outcome Outcome) decimal.Decimal {
	if outcome == OutcomeProfit {
		return s.ProfitTarget
	}
	return s.LossLimit.Neg()
}

// BeginResolution records status and outcome as the resolution in progress.
// It reports true when the same resolution was already started, and fails
// with ErrSignalAlreadyResolved when a different one was.
func (s *Signal) BeginResolution(status SignalStatus, outcome *Outcome) (bool, error) {
	if s.Status != SignalStatusOpen {
		return false, fmt.Errorf("%w: signal %s is %s", util.ErrSignalAlreadyResolved, s.ID, s.Status)
	}
	if status == SignalStatusOpen {
		return false, fmt.Errorf("%w: cannot resolve to open", util.ErrInvalidInput)
	}
	if s.PendingStatus != nil {
		if *s.PendingStatus != status || !sameOutcome(s.Outcome, outcome) {
			return false, fmt.Errorf("%w: signal %s is being resolved as %s", util.ErrSignalAlreadyResolved, s.ID, s.describePending())
		}
		return true, nil
	}
	s.PendingStatus = &status
	s.Outcome = outcome
	return false, nil
}

// Resolve moves an open signal to a terminal status. A resolution already in
// progress must match.
func (s *Signal) Resolve(status SignalStatus, outcome *Outcome, now time.Time) error {
	if _, err := s.BeginResolution(status, outcome); err != nil {
		return err
	}
	s.Status = status
	s.PendingStatus = nil
	resolved := now.UTC()
	s.ResolvedAt = &resolved
	return nil
}

func (s *Signal) describePending() string {
	if s.Outcome != nil {
		return fmt.Sprintf("%s/%s", *s.PendingStatus, *s.Outcome)
	}
	return string(*s.PendingStatus)
}

func sameOutcome(a, b *Outcome) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
