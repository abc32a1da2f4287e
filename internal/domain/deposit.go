// internal/domain/deposit.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deposit is a user's request to add funds, resolved once by an admin.
type Deposit struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Status        RequestStatus   `db:"status" json:"status"`
	TransactionID *string         `db:"transaction_id" json:"transaction_id,omitempty"` // external payment reference
	ProcessedBy   *uuid.UUID      `db:"processed_by" json:"processed_by,omitempty"`
	AdminNotes    *string         `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// NewDeposit creates a pending Deposit.
func NewDeposit(userID uuid.UUID, amount decimal.Decimal, currency, paymentMethod string, transactionID *string) *Deposit {
	return &Deposit{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: paymentMethod,
		Status:        RequestStatusPending,
		TransactionID: transactionID,
		CreatedAt:     time.Now().UTC(),
	}
}

// Complete marks an approved deposit.
func (d *Deposit) Complete(adminID uuid.UUID, now time.Time) error {
	return d.resolve(RequestStatusCompleted, &adminID, nil, now)
}

// Fail marks a rejected deposit.
func (d *Deposit) Fail(adminID uuid.UUID, notes *string, now time.Time) error {
	return d.resolve(RequestStatusFailed, &adminID, notes, now)
}

// Cancel marks a deposit withdrawn by its owner.
func (d *Deposit) Cancel(now time.Time) error {
	return d.resolve(RequestStatusCancelled, nil, nil, now)
}

func (d *Deposit) resolve(status RequestStatus, adminID *uuid.UUID, notes *string, now time.Time) error {
	if err := requirePending("deposit", d.Status); err != nil {
		return err
	}
	d.Status = status
	d.ProcessedBy = adminID
	if notes != nil {
		d.AdminNotes = notes
	}
	processed := now.UTC()
	d.ProcessedAt = &processed
	return nil
}
