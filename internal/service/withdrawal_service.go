// internal/service/withdrawal_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
)

// WithdrawalService defines the withdrawal workflow. The requested amount is
// locked from request until resolution.
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, paymentMethod string, dest domain.WithdrawalDestination) (*domain.Withdrawal, *domain.Balance, error)
	ApproveWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, transactionID *string) (*domain.Withdrawal, *domain.Balance, error)
	RejectWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, notes *string) (*domain.Withdrawal, *domain.Balance, error)
	CancelWithdrawal(ctx context.Context, withdrawalID, userID uuid.UUID) (*domain.Withdrawal, *domain.Balance, error)
	GetWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error)
	ListWithdrawals(ctx context.Context, filter domain.RequestFilter) ([]domain.Withdrawal, int64, error)
}

type withdrawalService struct {
	deps        Deps
	ledger      *LedgerStore
	withdrawals repository.WithdrawalRepository
}

// NewWithdrawalService creates a new instance of WithdrawalService.
func NewWithdrawalService(deps Deps, ledger *LedgerStore, withdrawals repository.WithdrawalRepository) WithdrawalService {
	return &withdrawalService{deps: deps, ledger: ledger, withdrawals: withdrawals}
}

// RequestWithdrawal reserves amount and records a pending withdrawal.
func (s *withdrawalService) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, paymentMethod string, dest domain.WithdrawalDestination) (w *domain.Withdrawal, b *domain.Balance, err error) {
	defer s.deps.observe("request_withdrawal", time.Now(), &err)

	currency, err = validateRequest(amount, currency, paymentMethod)
	if err != nil {
		return nil, nil, fmt.Errorf("request withdrawal: %w", err)
	}
	if dest.IsEmpty() {
		return nil, nil, fmt.Errorf("request withdrawal: %w: destination address or bank details are required", util.ErrInvalidInput)
	}
	w = domain.NewWithdrawal(userID, amount, currency, strings.TrimSpace(paymentMethod), dest)

	err = s.deps.Tx.InTx(ctx, "request withdrawal", func(q repository.DBExecutor) error {
		mv, err := s.ledger.Lock(ctx, q, userID, currency, amount, Ref(domain.EntryKindWithdrawalReserve, w.ID))
		if err != nil {
			return err
		}
		b = &mv.After
		return s.withdrawals.CreateWithdrawal(ctx, q, w)
	})
	if err != nil {
		return nil, nil, err
	}
	s.deps.notify(ctx, domain.NewNotification(domain.NotifyWithdrawalRequested, w.UserID, w.ID,
		fmt.Sprintf("Withdrawal of %s %s is awaiting review", w.Amount, w.Currency)))
	return w, b, nil
}

// ApproveWithdrawal removes the reserved amount from the ledger and completes the request.
func (s *withdrawalService) ApproveWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, transactionID *string) (w *domain.Withdrawal, b *domain.Balance, err error) {
	defer s.deps.observe("approve_withdrawal", time.Now(), &err)

	err = s.deps.Tx.InTx(ctx, "approve withdrawal", func(q repository.DBExecutor) error {
		w, err = s.withdrawals.GetWithdrawalForUpdate(ctx, q, withdrawalID)
		if err != nil {
			return err
		}
		if err := w.Complete(adminID, transactionID, s.deps.now()); err != nil {
			return err
		}
		mv, err := s.ledger.RemoveLocked(ctx, q, w.UserID, w.Currency, w.Amount, Ref(domain.EntryKindWithdrawalPayout, w.ID))
		if err != nil {
			return err
		}
		b = &mv.After
		return s.withdrawals.UpdateWithdrawal(ctx, q, w)
	})
	if err != nil {
		return nil, nil, err
	}
	s.deps.notify(ctx, domain.NewNotification(domain.NotifyWithdrawalApproved, w.UserID, w.ID,
		fmt.Sprintf("Withdrawal of %s %s approved", w.Amount, w.Currency)))
	return w, b, nil
}

// RejectWithdrawal returns the reserved amount to available funds.
func (s *withdrawalService) RejectWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, notes *string) (w *domain.Withdrawal, b *domain.Balance, err error) {
	defer s.deps.observe("reject_withdrawal", time.Now(), &err)

	w, b, err = s.release(ctx, "reject withdrawal", withdrawalID, func(w *domain.Withdrawal) error {
		return w.Fail(adminID, notes, s.deps.now())
	})
	if err != nil {
		return nil, nil, err
	}
	s.deps.notify(ctx, domain.NewNotification(domain.NotifyWithdrawalRejected, w.UserID, w.ID,
		fmt.Sprintf("Withdrawal of %s %s rejected; funds returned to your available balance", w.Amount, w.Currency)))
	return w, b, nil
}

// CancelWithdrawal lets the owner withdraw a pending request; the reservation is released.
func (s *withdrawalService) CancelWithdrawal(ctx context.Context, withdrawalID, userID uuid.UUID) (w *domain.Withdrawal, b *domain.Balance, err error) {
	defer s.deps.observe("cancel_withdrawal", time.Now(), &err)

	return s.release(ctx, "cancel withdrawal", withdrawalID, func(w *domain.Withdrawal) error {
		if w.UserID != userID {
			return fmt.Errorf("%w: withdrawal %s belongs to another user", util.ErrForbidden, withdrawalID)
		}
		return w.Cancel(s.deps.now())
	})
}

func (s *withdrawalService) release(ctx context.Context, op string, withdrawalID uuid.UUID, transition func(*domain.Withdrawal) error) (w *domain.Withdrawal, b *domain.Balance, err error) {
	err = s.deps.Tx.InTx(ctx, op, func(q repository.DBExecutor) error {
		w, err = s.withdrawals.GetWithdrawalForUpdate(ctx, q, withdrawalID)
		if err != nil {
			return err
		}
		if err := transition(w); err != nil {
			return err
		}
		mv, err := s.ledger.Release(ctx, q, w.UserID, w.Currency, w.Amount, Ref(domain.EntryKindWithdrawalRelease, w.ID))
		if err != nil {
			return err
		}
		b = &mv.After
		return s.withdrawals.UpdateWithdrawal(ctx, q, w)
	})
	if err != nil {
		return nil, nil, err
	}
	return w, b, nil
}

func (s *withdrawalService) GetWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	w, err := s.withdrawals.GetWithdrawal(ctx, s.deps.Reader, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("get withdrawal %s: %w", withdrawalID, err)
	}
	return w, nil
}

func (s *withdrawalService) ListWithdrawals(ctx context.Context, filter domain.RequestFilter) ([]domain.Withdrawal, int64, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	withdrawals, total, err := s.withdrawals.ListWithdrawals(ctx, s.deps.Reader, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	return withdrawals, total, nil
}
