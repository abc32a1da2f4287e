// internal/service/settlement.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
)

// SettlementResult is a resolved signal and every stake the call transitioned.
type SettlementResult struct {
	Signal *domain.Signal       `json:"signal"`
	Usages []domain.SignalUsage `json:"usages"`
}

// SettlementEngine resolves signals. The signal row stays locked for the whole
// batch; each stake settles in its own transaction and is skipped once it is
// no longer pending, so a failed batch can be retried without paying anyone twice.
type SettlementEngine struct {
	deps         Deps
	ledger       *LedgerStore
	signals      repository.SignalRepository
	usages       repository.SignalUsageRepository
	sweepWorkers int
}

// NewSettlementEngine creates a SettlementEngine that expires up to four
// signals at a time.
func NewSettlementEngine(deps Deps, ledger *LedgerStore, signals repository.SignalRepository, usages repository.SignalUsageRepository) *SettlementEngine {
	return &SettlementEngine{deps: deps, ledger: ledger, signals: signals, usages: usages, sweepWorkers: 4}
}

// SetSweepWorkers bounds how many signals ExpireDue resolves concurrently.
// Each worker holds two store connections while it runs.
func (e *SettlementEngine) SetSweepWorkers(n int) {
	if n > 0 {
		e.sweepWorkers = n
	}
}

// ExecuteSignal settles every pending stake at the rate for outcome and marks
// the signal executed.
func (e *SettlementEngine) ExecuteSignal(ctx context.Context, signalID uuid.UUID, outcome domain.Outcome) (res *SettlementResult, err error) {
	defer e.deps.observe("execute_signal", time.Now(), &err)

	parsed, err := domain.ParseOutcome(string(outcome))
	if err != nil {
		return nil, fmt.Errorf("execute signal: %w", err)
	}
	return e.resolve(ctx, "execute signal", signalID, domain.SignalStatusExecuted, &parsed, nil)
}

// CancelSignal refunds every pending stake and marks the signal cancelled.
func (e *SettlementEngine) CancelSignal(ctx context.Context, signalID uuid.UUID) (res *SettlementResult, err error) {
	defer e.deps.observe("cancel_signal", time.Now(), &err)

	return e.resolve(ctx, "cancel signal", signalID, domain.SignalStatusCancelled, nil, nil)
}

// ExpireSignal refunds every pending stake of a signal past its expiry and
// marks it expired.
func (e *SettlementEngine) ExpireSignal(ctx context.Context, signalID uuid.UUID) (res *SettlementResult, err error) {
	defer e.deps.observe("expire_signal", time.Now(), &err)

	return e.resolve(ctx, "expire signal", signalID, domain.SignalStatusExpired, nil, func(sig *domain.Signal, now time.Time) error {
		if !sig.IsDue(now) {
			return fmt.Errorf("%w: signal %s expires at %s", util.ErrSignalNotExpired, sig.ID, sig.Expiry.Format(time.RFC3339))
		}
		return nil
	})
}

// ExpireDue expires every open signal whose expiry has passed and returns the
// resolved signals, at most sweepWorkers at a time. Signals resolved
// concurrently by an admin are skipped.
func (e *SettlementEngine) ExpireDue(ctx context.Context) ([]SettlementResult, error) {
	ids, err := e.signals.ListDueSignalIDs(ctx, e.deps.Reader, e.deps.now())
	if err != nil {
		return nil, fmt.Errorf("expire due signals: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(e.sweepWorkers)
	if err != nil {
		return nil, fmt.Errorf("expire due signals: %w", err)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []SettlementResult
		errs    []error
	)
	for _, id := range ids {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			res, err := e.ExpireSignal(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				results = append(results, *res)
			case util.IsError(err, util.ErrSignalAlreadyResolved), util.IsError(err, util.ErrSignalNotExpired):
			default:
				errs = append(errs, err)
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("expire signal %s: %w", id, err))
			mu.Unlock()
		}
	}
	wg.Wait()
	return results, errors.Join(errs...)
}

func (e *SettlementEngine) resolve(ctx context.Context, op string, signalID uuid.UUID, status domain.SignalStatus, outcome *domain.Outcome, guard func(*domain.Signal, time.Time) error) (*SettlementResult, error) {
	// The resolution is committed on its own before any stake moves, so an
	// interrupted batch can only be finished on the same terms.
	err := e.deps.Tx.InTx(ctx, op, func(q repository.DBExecutor) error {
		sig, err := e.signals.GetSignalForUpdate(ctx, q, signalID)
		if err != nil {
			return err
		}
		retry, err := sig.BeginResolution(status, outcome)
		if err != nil || retry {
			return err
		}
		if guard != nil {
			if err := guard(sig, e.deps.now()); err != nil {
				return err
			}
		}
		return e.signals.UpdateSignal(ctx, q, sig)
	})
	if err != nil {
		return nil, err
	}

	res := &SettlementResult{}
	var notes []domain.Notification

	err = e.deps.Tx.InTx(ctx, op, func(q repository.DBExecutor) error {
		sig, err := e.signals.GetSignalForUpdate(ctx, q, signalID)
		if err != nil {
			return err
		}
		if _, err := sig.BeginResolution(status, outcome); err != nil {
			return err
		}

		pending, err := e.usages.ListPendingUsageIDs(ctx, q, signalID)
		if err != nil {
			return err
		}
		for _, usageID := range pending {
			u, err := e.settleOne(ctx, sig, usageID, outcome)
			if err != nil {
				return fmt.Errorf("stake %s: %w", usageID, err)
			}
			if u == nil {
				continue
			}
			res.Usages = append(res.Usages, *u)
			notes = append(notes, stakeNotification(sig, u))
		}

		if err := sig.Resolve(status, outcome, e.deps.now()); err != nil {
			return err
		}
		if err := e.signals.UpdateSignal(ctx, q, sig); err != nil {
			return err
		}
		res.Signal = sig
		return nil
	})

	// Settled stakes are committed even when the batch fails.
	e.deps.notify(ctx, notes...)
	if err != nil {
		if len(res.Usages) > 0 {
			e.deps.logger().Error("Signal resolution interrupted; retry to finish the remaining stakes",
				"signal_id", signalID, "status", status, "settled", len(res.Usages), "error", err)
		}
		return nil, err
	}
	e.deps.logger().Info("Signal resolved", "signal_id", signalID, "status", status, "stakes", len(res.Usages))
	return res, nil
}

// settleOne settles or refunds one stake in its own transaction. It returns
// nil when the stake is no longer pending.
func (e *SettlementEngine) settleOne(ctx context.Context, sig *domain.Signal, usageID uuid.UUID, outcome *domain.Outcome) (*domain.SignalUsage, error) {
	var settled *domain.SignalUsage
	err := e.deps.Tx.InTx(ctx, "settle stake", func(q repository.DBExecutor) error {
		u, err := e.usages.GetUsageForUpdate(ctx, q, usageID)
		if err != nil {
			return err
		}
		if u.Status != domain.UsageStatusPending {
			return nil
		}

		now := e.deps.now()
		if outcome != nil {
			result, payout := u.Payout(sig.Rate(*outcome))
			if _, err := e.ledger.SettleLocked(ctx, q, u.UserID, sig.Currency, u.Amount, payout, Ref(domain.EntryKindSignalSettle, u.ID)); err != nil {
				return err
			}
			if err := u.Settle(result, now); err != nil {
				return err
			}
		} else {
			if _, err := e.ledger.Release(ctx, q, u.UserID, sig.Currency, u.Amount, Ref(domain.EntryKindSignalRefund, u.ID)); err != nil {
				return err
			}
			if err := u.Refund(now); err != nil {
				return err
			}
		}
		if err := e.usages.UpdateUsage(ctx, q, u); err != nil {
			return err
		}
		settled = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	if settled != nil {
		label := "refund"
		if outcome != nil {
			label = string(*outcome)
		}
		e.deps.Metrics.StakeResolved(label)
	}
	return settled, nil
}

func stakeNotification(sig *domain.Signal, u *domain.SignalUsage) domain.Notification {
	if u.Status == domain.UsageStatusSettled {
		return domain.NewNotification(domain.NotifySignalSettled, u.UserID, u.ID,
			fmt.Sprintf("Your %s %s stake on %q settled with result %s", u.Amount, sig.Currency, sig.Name, u.Result.Decimal))
	}
	return domain.NewNotification(domain.NotifySignalRefunded, u.UserID, u.ID,
		fmt.Sprintf("Your %s %s stake on %q was refunded", u.Amount, sig.Currency, sig.Name))
}
