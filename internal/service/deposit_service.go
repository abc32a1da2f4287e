// internal/service/deposit_service.go
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

// DepositService defines the deposit approval workflow.
type DepositService interface {
	RequestDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, paymentMethod string, transactionID *string) (*domain.Deposit, error)
	ApproveDeposit(ctx context.Context, depositID, adminID uuid.UUID) (*domain.Deposit, *domain.Balance, error)
	RejectDeposit(ctx context.Context, depositID, adminID uuid.UUID, notes *string) (*domain.Deposit, error)
	CancelDeposit(ctx context.Context, depositID, userID uuid.UUID) (*domain.Deposit, error)
	GetDeposit(ctx context.Context, depositID uuid.UUID) (*domain.Deposit, error)
	ListDeposits(ctx context.Context, filter domain.RequestFilter) ([]domain.Deposit, int64, error)
}

type depositService struct {
	deps     Deps
	ledger   *LedgerStore
	deposits repository.DepositRepository
}

// NewDepositService creates a new instance of DepositService.
func NewDepositService(deps Deps, ledger *LedgerStore, deposits repository.DepositRepository) DepositService {
	return &depositService{deps: deps, ledger: ledger, deposits: deposits}
}

func validateRequest(amount decimal.Decimal, currency, paymentMethod string) (string, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return "", err
	}
	currency, err := domain.NormalizeCurrency(currency)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(paymentMethod) == "" {
		return "", fmt.Errorf("%w: payment method is required", util.ErrInvalidInput)
	}
	return currency, nil
}

// RequestDeposit records a pending deposit. Funds are not credited until approval.
func (s *depositService) RequestDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, paymentMethod string, transactionID *string) (d *domain.Deposit, err error) {
	defer s.deps.observe("request_deposit", time.Now(), &err)

	currency, err = validateRequest(amount, currency, paymentMethod)
	if err != nil {
		return nil, fmt.Errorf("request deposit: %w", err)
	}
	d = domain.NewDeposit(userID, amount, currency, strings.TrimSpace(paymentMethod), transactionID)
	err = s.deps.Tx.InTx(ctx, "request deposit", func(q repository.DBExecutor) error {
		return s.deposits.CreateDeposit(ctx, q, d)
	})
	if err != nil {
		return nil, err
	}
	s.deps.notify(ctx, domain.NewNotification(domain.NotifyDepositRequested, d.UserID, d.ID,
		fmt.Sprintf("Deposit of %s %s received and awaiting review", d.Amount, d.Currency)))
	return d, nil
}

// ApproveDeposit credits the user and completes the deposit in one transaction.
// A deposit that is no longer pending fails with util.ErrNotPending and credits nothing.
func (s *depositService) ApproveDeposit(ctx context.Context, depositID, adminID uuid.UUID) (d *domain.Deposit, b *domain.Balance, err error) {
	defer s.deps.observe("approve_deposit", time.Now(), &err)

	err = s.deps.Tx.InTx(ctx, "approve deposit", func(q repository.DBExecutor) error {
		d, err = s.deposits.GetDepositForUpdate(ctx, q, depositID)
		if err != nil {
			return err
		}
		if err := d.Complete(adminID, s.deps.now()); err != nil {
			return err
		}
		mv, err := s.ledger.Credit(ctx, q, d.UserID, d.Currency, d.Amount, Ref(domain.EntryKindDeposit, d.ID))
		if err != nil {
			return err
		}
		b = &mv.After
		return s.deposits.UpdateDeposit(ctx, q, d)
	})
	if err != nil {
		return nil, nil, err
	}
	s.deps.notify(ctx, domain.NewNotification(domain.NotifyDepositApproved, d.UserID, d.ID,
		fmt.Sprintf("Deposit of %s %s approved", d.Amount, d.Currency)))
	return d, b, nil
}

// RejectDeposit fails a pending deposit. It has no ledger effect.
func (s *depositService) RejectDeposit(ctx context.Context, depositID, adminID uuid.UUID, notes *string) (d *domain.Deposit, err error) {
	defer s.deps.observe("reject_deposit", time.Now(), &err)

	err = s.deps.Tx.InTx(ctx, "reject deposit", func(q repository.DBExecutor) error {
		d, err = s.deposits.GetDepositForUpdate(ctx, q, depositID)
		if err != nil {
			return err
		}
		if err := d.Fail(adminID, notes, s.deps.now()); err != nil {
			return err
		}
		return s.deposits.UpdateDeposit(ctx, q, d)
	})
	if err != nil {
		return nil, err
	}
	s.deps.notify(ctx, domain.NewNotification(domain.NotifyDepositRejected, d.UserID, d.ID,
		fmt.Sprintf("Deposit of %s %s rejected", d.Amount, d.Currency)))
	return d, nil
}

// CancelDeposit lets the owner withdraw a pending deposit.
func (s *depositService) CancelDeposit(ctx context.Context, depositID, userID uuid.UUID) (d *domain.Deposit, err error) {
	defer s.deps.observe("cancel_deposit", time.Now(), &err)

	err = s.deps.Tx.InTx(ctx, "cancel deposit", func(q repository.DBExecutor) error {
		d, err = s.deposits.GetDepositForUpdate(ctx, q, depositID)
		if err != nil {
			return err
		}
		if d.UserID != userID {
			return fmt.Errorf("%w: deposit %s belongs to another user", util.ErrForbidden, depositID)
		}
		if err := d.Cancel(s.deps.now()); err != nil {
			return err
		}
		return s.deposits.UpdateDeposit(ctx, q, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *depositService) GetDeposit(ctx context.Context, depositID uuid.UUID) (*domain.Deposit, error) {
	d, err := s.deposits.GetDeposit(ctx, s.deps.Reader, depositID)
	if err != nil {
		return nil, fmt.Errorf("get deposit %s: %w", depositID, err)
	}
	return d, nil
}

func (s *depositService) ListDeposits(ctx context.Context, filter domain.RequestFilter) ([]domain.Deposit, int64, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	deposits, total, err := s.deposits.ListDeposits(ctx, s.deps.Reader, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list deposits: %w", err)
	}
	return deposits, total, nil
}
