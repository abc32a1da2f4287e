// internal/domain/adjustment.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/util"
)

// AdjustmentType is the direction of a manual balance change.
type AdjustmentType string

const (
	AdjustmentIncrease AdjustmentType = "increase"
	AdjustmentDecrease AdjustmentType = "decrease"
)

// ParseAdjustmentType validates a direction name.
func ParseAdjustmentType(s string) (AdjustmentType, error) {
	switch t := AdjustmentType(strings.ToLower(strings.TrimSpace(s))); t {
	case AdjustmentIncrease, AdjustmentDecrease:
		return t, nil
	}
	return "", fmt.Errorf("%w: adjustment type must be %q or %q, got %q", util.ErrInvalidInput, AdjustmentIncrease, AdjustmentDecrease, s)
}

// DefaultAccountType labels adjustments that do not name an account.
const DefaultAccountType = "main"

// AdminBalanceAdjustment is the immutable audit row for one manual change.
// PreviousBalance and NewBalance are captured inside the mutating transaction.
type AdminBalanceAdjustment struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	AdminID         uuid.UUID       `db:"admin_id" json:"admin_id"`
	Currency        string          `db:"currency" json:"currency"`
	AdjustmentType  AdjustmentType  `db:"adjustment_type" json:"adjustment_type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	PreviousBalance decimal.Decimal `db:"previous_balance" json:"previous_balance"`
	NewBalance      decimal.Decimal `db:"new_balance" json:"new_balance"`
	AccountType     string          `db:"account_type" json:"account_type"`
	AdminNotes      string          `db:"admin_notes" json:"admin_notes"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// AdjustmentRequest carries the admin's inputs.
type AdjustmentRequest struct {
	UserID      uuid.UUID
	Currency    string
	Amount      decimal.Decimal
	AccountType string
	Direction   AdjustmentType
	Notes       string
}
