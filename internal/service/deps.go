// internal/service/deps.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/metrics"
	"tradedesk-ledger/internal/notify"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
	"tradedesk-ledger/pkg/db"
)

// TxRunner bundles the injected transaction primitives.
type TxRunner struct {
	Beginner db.DBTxBeginner // e.g. *sqlx.DB; nil for the memory store
	Begin    db.BeginTxFunc
	Commit   db.CommitTxFunc
	Rollback db.RollbackTxFunc
}

// InTx runs fn inside one transaction and commits when fn succeeds. Any error
// rolls back every write fn made. op prefixes returned errors.
func (r TxRunner) InTx(ctx context.Context, op string, fn func(q repository.DBExecutor) error) error {
	txController, err := r.Begin(ctx, r.Beginner)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w: %w", op, util.ErrStoreUnavailable, err)
	}
	defer r.Rollback(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("%s: transaction controller does not implement DBExecutor", op)
	}

	if err := fn(txExecutor); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.Commit(txController); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w: %w", op, util.ErrStoreUnavailable, err)
	}
	return nil
}

// Deps are the collaborators shared by every service.
type Deps struct {
	Tx       TxRunner
	Reader   repository.DBExecutor // for non-transactional reads
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Notifier notify.Notifier
	Clock    func() time.Time
}

func (d Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return util.GetLogger()
}

// notify delivers notes after a commit. Failures are logged and counted only.
func (d Deps) notify(ctx context.Context, notes ...domain.Notification) {
	if d.Notifier == nil {
		return
	}
	for _, n := range notes {
		if err := d.Notifier.Notify(ctx, n); err != nil {
			d.Metrics.NotificationFailed()
			d.logger().Warn("Failed to deliver notification", "kind", n.Kind, "user_id", n.UserID, "error", err)
		}
	}
}

// observe records op's outcome; call it deferred with a pointer to the named error.
func (d Deps) observe(op string, start time.Time, err *error) {
	d.Metrics.ObserveOperation(op, start, *err)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
