// internal/repository/postgres/signal_pg.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
)

const signalColumns = `id, name, currency, profit_target, loss_limit, expiry, status, outcome, pending_status, created_by, created_at, resolved_at`

// SignalRepository implements repository.SignalRepository for PostgreSQL.
type SignalRepository struct{}

// NewSignalRepository creates a new SignalRepository.
func NewSignalRepository() repository.SignalRepository {
	return &SignalRepository{}
}

// CreateSignal inserts a new signal.
func (r *SignalRepository) CreateSignal(ctx context.Context, q repository.DBExecutor, s *domain.Signal) error {
	query := `INSERT INTO signals (` + signalColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := q.ExecContext(ctx, query,
		s.ID, s.Name, s.Currency, s.ProfitTarget, s.LossLimit, s.Expiry, s.Status, s.Outcome, s.PendingStatus, s.CreatedBy, s.CreatedAt, s.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to create signal: %w", classify(err))
	}
	return nil
}

// GetSignal retrieves a signal by ID.
func (r *SignalRepository) GetSignal(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Signal, error) {
	return r.get(ctx, q, id, "")
}

// GetSignalForUpdate retrieves and locks a signal by ID.
func (r *SignalRepository) GetSignalForUpdate(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Signal, error) {
	return r.get(ctx, q, id, " FOR UPDATE")
}

func (r *SignalRepository) get(ctx context.Context, q repository.DBExecutor, id uuid.UUID, lock string) (*domain.Signal, error) {
	var s domain.Signal
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1` + lock
	err := q.GetContext(ctx, &s, query, id)
	if err := getOne(err, fmt.Sprintf("signal %s", id)); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSignal writes the resolution fields.
func (r *SignalRepository) UpdateSignal(ctx context.Context, q repository.DBExecutor, s *domain.Signal) error {
	query := `UPDATE signals SET status = $1, outcome = $2, pending_status = $3, resolved_at = $4 WHERE id = $5`
	res, err := q.ExecContext(ctx, query, s.Status, s.Outcome, s.PendingStatus, s.ResolvedAt, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update signal %s: %w", s.ID, classify(err))
	}
	return expectOneRow(res, fmt.Sprintf("signal %s", s.ID))
}

// ListSignals returns signals newest first.
func (r *SignalRepository) ListSignals(ctx context.Context, q repository.DBExecutor, status domain.SignalStatus) ([]domain.Signal, error) {
	var w whereBuilder
	if status != "" {
		w.add("status", status)
	}
	signals := []domain.Signal{}
	query := `SELECT ` + signalColumns + ` FROM signals` + w.String() + ` ORDER BY created_at DESC`
	if err := q.SelectContext(ctx, &signals, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", classify(err))
	}
	return signals, nil
}

// ListDueSignalIDs returns open signals at or past expiry that are not being
// executed or cancelled.
func (r *SignalRepository) ListDueSignalIDs(ctx context.Context, q repository.DBExecutor, now time.Time) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	query := `SELECT id FROM signals
              WHERE status = $1 AND expiry <= $2 AND (pending_status IS NULL OR pending_status = $3)
              ORDER BY expiry`
	if err := q.SelectContext(ctx, &ids, query, domain.SignalStatusOpen, now, domain.SignalStatusExpired); err != nil {
		return nil, fmt.Errorf("failed to list due signals: %w", classify(err))
	}
	return ids, nil
}

// SignalUsageRepository implements repository.SignalUsageRepository for PostgreSQL.
type SignalUsageRepository struct{}

// NewSignalUsageRepository creates a new SignalUsageRepository.
func NewSignalUsageRepository() repository.SignalUsageRepository {
	return &SignalUsageRepository{}
}

const usageColumns = `id, signal_id, user_id, amount, result, status, created_at, settled_at`

// CreateUsage inserts a pending stake. The partial unique index on
// (signal_id, user_id) WHERE status = 'pending' backs the one-stake rule.
func (r *SignalUsageRepository) CreateUsage(ctx context.Context, q repository.DBExecutor, u *domain.SignalUsage) error {
	query := `INSERT INTO signal_usages (` + usageColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := q.ExecContext(ctx, query, u.ID, u.SignalID, u.UserID, u.Amount, u.Result, u.Status, u.CreatedAt, u.SettledAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: signal %s", util.ErrAlreadyJoined, u.SignalID)
		}
		return fmt.Errorf("failed to create signal usage: %w", classify(err))
	}
	return nil
}

// GetUsageForUpdate retrieves and locks a stake.
func (r *SignalUsageRepository) GetUsageForUpdate(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.SignalUsage, error) {
	var u domain.SignalUsage
	query := `SELECT ` + usageColumns + ` FROM signal_usages WHERE id = $1 FOR UPDATE`
	err := q.GetContext(ctx, &u, query, id)
	if err := getOne(err, fmt.Sprintf("signal usage %s", id)); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUsage writes the settlement fields.
func (r *SignalUsageRepository) UpdateUsage(ctx context.Context, q repository.DBExecutor, u *domain.SignalUsage) error {
	query := `UPDATE signal_usages SET status = $1, result = $2, settled_at = $3 WHERE id = $4`
	res, err := q.ExecContext(ctx, query, u.Status, u.Result, u.SettledAt, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update signal usage %s: %w", u.ID, classify(err))
	}
	return expectOneRow(res, fmt.Sprintf("signal usage %s", u.ID))
}

// HasPendingUsage reports whether the user already holds a pending stake on the signal.
func (r *SignalUsageRepository) HasPendingUsage(ctx context.Context, q repository.DBExecutor, signalID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM signal_usages WHERE signal_id = $1 AND user_id = $2 AND status = $3)`
	if err := q.GetContext(ctx, &exists, query, signalID, userID, domain.UsageStatusPending); err != nil {
		return false, fmt.Errorf("failed to check pending usage: %w", classify(err))
	}
	return exists, nil
}

// ListPendingUsageIDs returns the pending stakes of a signal, oldest first.
func (r *SignalUsageRepository) ListPendingUsageIDs(ctx context.Context, q repository.DBExecutor, signalID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	query := `SELECT id FROM signal_usages WHERE signal_id = $1 AND status = $2 ORDER BY created_at`
	if err := q.SelectContext(ctx, &ids, query, signalID, domain.UsageStatusPending); err != nil {
		return nil, fmt.Errorf("failed to list pending usages for signal %s: %w", signalID, classify(err))
	}
	return ids, nil
}

// ListUsages returns stakes matching filter, newest first.
func (r *SignalUsageRepository) ListUsages(ctx context.Context, q repository.DBExecutor, filter domain.UsageFilter) ([]domain.SignalUsage, error) {
	var w whereBuilder
	if filter.SignalID != nil {
		w.add("signal_id", *filter.SignalID)
	}
	if filter.UserID != nil {
		w.add("user_id", *filter.UserID)
	}
	if filter.Status != "" {
		w.add("status", filter.Status)
	}
	usages := []domain.SignalUsage{}
	query := `SELECT ` + usageColumns + ` FROM signal_usages` + w.String() + ` ORDER BY created_at DESC`
	if err := q.SelectContext(ctx, &usages, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list signal usages: %w", classify(err))
	}
	return usages, nil
}
