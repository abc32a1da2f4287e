// internal/domain/notification.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind names the state transition being announced.
type NotificationKind string

const (
	NotifyDepositRequested    NotificationKind = "deposit_requested"
	NotifyDepositApproved     NotificationKind = "deposit_approved"
	NotifyDepositRejected     NotificationKind = "deposit_rejected"
	NotifyWithdrawalRequested NotificationKind = "withdrawal_requested"
	NotifyWithdrawalApproved  NotificationKind = "withdrawal_approved"
	NotifyWithdrawalRejected  NotificationKind = "withdrawal_rejected"
	NotifySignalSettled       NotificationKind = "signal_settled"
	NotifySignalRefunded      NotificationKind = "signal_refunded"
	NotifyBalanceAdjusted     NotificationKind = "balance_adjusted"
)

// Notification is a best-effort message emitted after a committed transition.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	Kind        NotificationKind `json:"kind"`
	UserID      uuid.UUID        `json:"user_id"`
	ReferenceID uuid.UUID        `json:"reference_id"`
	Message     string           `json:"message"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewNotification stamps a Notification.
func NewNotification(kind NotificationKind, userID, referenceID uuid.UUID, message string) Notification {
	return Notification{
		ID:          uuid.New(),
		Kind:        kind,
		UserID:      userID,
		ReferenceID: referenceID,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
}
