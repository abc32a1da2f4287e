// internal/domain/withdrawal.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Withdrawal is a user's request to take funds out. The amount is reserved
// (locked) from the moment the request exists until it is resolved.
type Withdrawal struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	UserID             uuid.UUID       `db:"user_id" json:"user_id"`
	Amount             decimal.Decimal `db:"amount" json:"amount"`
	Currency           string          `db:"currency" json:"currency"`
	PaymentMethod      string          `db:"payment_method" json:"payment_method"`
	Status             RequestStatus   `db:"status" json:"status"`
	DestinationAddress *string         `db:"destination_address" json:"destination_address,omitempty"`
	BankDetails        *string         `db:"bank_details" json:"bank_details,omitempty"`
	TransactionID      *string         `db:"transaction_id" json:"transaction_id,omitempty"`
	ProcessedBy        *uuid.UUID      `db:"processed_by" json:"processed_by,omitempty"`
	AdminNotes         *string         `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// WithdrawalDestination is where approved funds are sent. At least one field must be set.
type WithdrawalDestination struct {
	Address     *string `json:"destination_address,omitempty"`
	BankDetails *string `json:"bank_details,omitempty"`
}

// IsEmpty reports whether neither an address nor bank details were given.
func (d WithdrawalDestination) IsEmpty() bool {
	return (d.Address == nil || *d.Address == "") && (d.BankDetails == nil || *d.BankDetails == "")
}

// NewWithdrawal creates a pending Withdrawal.
func NewWithdrawal(userID uuid.UUID, amount decimal.Decimal, currency, paymentMethod string, dest WithdrawalDestination) *Withdrawal {
	return &Withdrawal{
		ID:                 uuid.New(),
		UserID:             userID,
		Amount:             amount,
		Currency:           currency,
		PaymentMethod:      paymentMethod,
		Status:             RequestStatusPending,
		DestinationAddress: dest.Address,
		BankDetails:        dest.BankDetails,
		CreatedAt:          time.Now().UTC(),
	}
}

// Complete marks a paid-out withdrawal. transactionID is the payout reference, if any.
func (w *Withdrawal) Complete(adminID uuid.UUID, transactionID *string, now time.Time) error {
	if err := w.resolve(RequestStatusCompleted, &adminID, nil, now); err != nil {
		return err
	}
	w.TransactionID = transactionID
	return nil
}

// Fail marks a rejected withdrawal.
func (w *Withdrawal) Fail(adminID uuid.UUID, notes *string, now time.Time) error {
	return w.resolve(RequestStatusFailed, &adminID, notes, now)
}

// Cancel marks a withdrawal withdrawn by its owner.
func (w *Withdrawal) Cancel(now time.Time) error {
	return w.resolve(RequestStatusCancelled, nil, nil, now)
}

func (w *Withdrawal) resolve(status RequestStatus, adminID *uuid.UUID, notes *string, now time.Time) error {
	if err := requirePending("withdrawal", w.Status); err != nil {
		return err
	}
	w.Status = status
	w.ProcessedBy = adminID
	if notes != nil {
		w.AdminNotes = notes
	}
	processed := now.UTC()
	w.ProcessedAt = &processed
	return nil
}
