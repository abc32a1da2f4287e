// internal/domain/request.go
package domain

import (
	"fmt"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/util"
)

// RequestStatus is the lifecycle state shared by deposits and withdrawals.
// Pending is the only non-terminal state.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusFailed    RequestStatus = "failed"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s != RequestStatusPending
}

// ParseRequestStatus validates a status filter coming from a caller.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(s); st {
	case RequestStatusPending, RequestStatusCompleted, RequestStatusFailed, RequestStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", util.ErrInvalidInput, s)
}

func requirePending(kind string, s RequestStatus) error {
	if s != RequestStatusPending {
		return fmt.Errorf("%w: %s is %s", util.ErrNotPending, kind, s)
	}
	return nil
}

// RequestFilter narrows deposit and withdrawal listings. Zero values match all.
type RequestFilter struct {
	UserID *uuid.UUID
	Status RequestStatus
	Limit  int
	Offset int
}
