// internal/repository/signal_repo.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
)

// SignalRepository defines the interface for signals.
type SignalRepository interface {
	CreateSignal(ctx context.Context, q DBExecutor, s *domain.Signal) error
	GetSignal(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Signal, error)
	// GetSignalForUpdate holds the signal row for the rest of q; resolution
	// and joins serialize on it.
	GetSignalForUpdate(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Signal, error)
	UpdateSignal(ctx context.Context, q DBExecutor, s *domain.Signal) error
	// ListSignals returns signals newest first; an empty status matches all.
	ListSignals(ctx context.Context, q DBExecutor, status domain.SignalStatus) ([]domain.Signal, error)
	// ListDueSignalIDs returns open signals whose expiry is at or before now.
	ListDueSignalIDs(ctx context.Context, q DBExecutor, now time.Time) ([]uuid.UUID, error)
}

// SignalUsageRepository defines the interface for stakes.
type SignalUsageRepository interface {
	// CreateUsage inserts a pending stake. A second pending stake by the same
	// user on the same signal fails with util.ErrAlreadyJoined.
	CreateUsage(ctx context.Context, q DBExecutor, u *domain.SignalUsage) error
	GetUsageForUpdate(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.SignalUsage, error)
	UpdateUsage(ctx context.Context, q DBExecutor, u *domain.SignalUsage) error
	HasPendingUsage(ctx context.Context, q DBExecutor, signalID, userID uuid.UUID) (bool, error)
	// ListPendingUsageIDs returns the stakes a resolution still has to process.
	ListPendingUsageIDs(ctx context.Context, q DBExecutor, signalID uuid.UUID) ([]uuid.UUID, error)
	ListUsages(ctx context.Context, q DBExecutor, filter domain.UsageFilter) ([]domain.SignalUsage, error)
}
