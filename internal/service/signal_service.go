// internal/service/signal_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
)

// SignalPolicy holds the platform-wide staking rules.
type SignalPolicy struct {
	MinStake decimal.Decimal
	Currency string // every signal is staked and settled in this currency
}

// SignalService defines the signal registry and stake participation.
type SignalService interface {
	CreateSignal(ctx context.Context, adminID uuid.UUID, params domain.SignalParams) (*domain.Signal, error)
	GetSignal(ctx context.Context, signalID uuid.UUID) (*domain.Signal, error)
	ListSignals(ctx context.Context, status domain.SignalStatus) ([]domain.Signal, error)
	JoinSignal(ctx context.Context, userID, signalID uuid.UUID, amount decimal.Decimal) (*domain.SignalUsage, *domain.Balance, error)
	ListUsages(ctx context.Context, filter domain.UsageFilter) ([]domain.SignalUsage, error)
}

type signalService struct {
	deps    Deps
	policy  SignalPolicy
	ledger  *LedgerStore
	signals repository.SignalRepository
	usages  repository.SignalUsageRepository
}

// NewSignalService creates a new instance of SignalService.
func NewSignalService(deps Deps, policy SignalPolicy, ledger *LedgerStore, signals repository.SignalRepository, usages repository.SignalUsageRepository) SignalService {
	return &signalService{deps: deps, policy: policy, ledger: ledger, signals: signals, usages: usages}
}

// CreateSignal registers an open signal.
func (s *signalService) CreateSignal(ctx context.Context, adminID uuid.UUID, params domain.SignalParams) (sig *domain.Signal, err error) {
	defer s.deps.observe("create_signal", time.Now(), &err)

	if err := params.Validate(s.deps.now()); err != nil {
		return nil, fmt.Errorf("create signal: %w", err)
	}
	sig = domain.NewSignal(adminID, s.policy.Currency, params)
	err = s.deps.Tx.InTx(ctx, "create signal", func(q repository.DBExecutor) error {
		return s.signals.CreateSignal(ctx, q, sig)
	})
	if err != nil {
		return nil, err
	}
	s.deps.logger().Info("Signal created", "signal_id", sig.ID, "name", sig.Name, "expiry", sig.Expiry)
	return sig, nil
}

func (s *signalService) GetSignal(ctx context.Context, signalID uuid.UUID) (*domain.Signal, error) {
	sig, err := s.signals.GetSignal(ctx, s.deps.Reader, signalID)
	if err != nil {
		return nil, fmt.Errorf("get signal %s: %w", signalID, err)
	}
	return sig, nil
}

func (s *signalService) ListSignals(ctx context.Context, status domain.SignalStatus) ([]domain.Signal, error) {
	signals, err := s.signals.ListSignals(ctx, s.deps.Reader, status)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return signals, nil
}

// JoinSignal locks amount against the signal and records a pending stake.
// The signal row is held for the whole transaction so a concurrent
// resolution either sees the new stake or rejects the join.
func (s *signalService) JoinSignal(ctx context.Context, userID, signalID uuid.UUID, amount decimal.Decimal) (u *domain.SignalUsage, b *domain.Balance, err error) {
	defer s.deps.observe("join_signal", time.Now(), &err)

	if err := domain.ValidateAmount(amount); err != nil {
		return nil, nil, fmt.Errorf("join signal: %w", err)
	}

	err = s.deps.Tx.InTx(ctx, "join signal", func(q repository.DBExecutor) error {
		sig, err := s.signals.GetSignalForUpdate(ctx, q, signalID)
		if err != nil {
			return err
		}
		if !sig.IsJoinable(s.deps.now()) {
			return fmt.Errorf("%w: signal %s is %s with expiry %s", util.ErrSignalNotOpen, sig.ID, sig.Status, sig.Expiry.Format(time.RFC3339))
		}
		if amount.LessThan(s.policy.MinStake) {
			return fmt.Errorf("%w: minimum stake is %s %s", util.ErrBelowMinimum, s.policy.MinStake, sig.Currency)
		}
		joined, err := s.usages.HasPendingUsage(ctx, q, signalID, userID)
		if err != nil {
			return err
		}
		if joined {
			return util.ErrAlreadyJoined
		}

		u = domain.NewSignalUsage(signalID, userID, amount)
		mv, err := s.ledger.Lock(ctx, q, userID, sig.Currency, amount, Ref(domain.EntryKindSignalStake, u.ID))
		if err != nil {
			return err
		}
		b = &mv.After
		return s.usages.CreateUsage(ctx, q, u)
	})
	if err != nil {
		return nil, nil, err
	}
	return u, b, nil
}

func (s *signalService) ListUsages(ctx context.Context, filter domain.UsageFilter) ([]domain.SignalUsage, error) {
	usages, err := s.usages.ListUsages(ctx, s.deps.Reader, filter)
	if err != nil {
		return nil, fmt.Errorf("list signal usages: %w", err)
	}
	return usages, nil
}
