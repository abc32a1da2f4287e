// internal/service/adjustment_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/util"
)

// AdjustmentService defines audited manual balance changes.
type AdjustmentService interface {
	AdjustBalance(ctx context.Context, adminID uuid.UUID, req domain.AdjustmentRequest) (*domain.AdminBalanceAdjustment, *domain.Balance, error)
	ListAdjustments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.AdminBalanceAdjustment, int64, error)
}

type adjustmentService struct {
	deps        Deps
	ledger      *LedgerStore
	adjustments repository.AdjustmentRepository
}

// NewAdjustmentService creates a new instance of AdjustmentService.
func NewAdjustmentService(deps Deps, ledger *LedgerStore, adjustments repository.AdjustmentRepository) AdjustmentService {
	return &adjustmentService{deps: deps, ledger: ledger, adjustments: adjustments}
}

// AdjustBalance credits or debits available funds and writes the audit row in
// the same transaction. The recorded previous and new balances are the locked
// row before and after the mutation.
func (s *adjustmentService) AdjustBalance(ctx context.Context, adminID uuid.UUID, req domain.AdjustmentRequest) (a *domain.AdminBalanceAdjustment, b *domain.Balance, err error) {
	defer s.deps.observe("adjust_balance", time.Now(), &err)

	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		return nil, nil, fmt.Errorf("adjust balance: %w", util.ErrMissingJustification)
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, nil, fmt.Errorf("adjust balance: %w", err)
	}
	direction, err := domain.ParseAdjustmentType(string(req.Direction))
	if err != nil {
		return nil, nil, fmt.Errorf("adjust balance: %w", err)
	}
	currency, err := domain.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, nil, fmt.Errorf("adjust balance: %w", err)
	}
	accountType := strings.TrimSpace(req.AccountType)
	if accountType == "" {
		accountType = domain.DefaultAccountType
	}

	a = &domain.AdminBalanceAdjustment{
		ID:             uuid.New(),
		UserID:         req.UserID,
		AdminID:        adminID,
		Currency:       currency,
		AdjustmentType: direction,
		Amount:         req.Amount,
		AccountType:    accountType,
		AdminNotes:     notes,
		CreatedAt:      s.deps.now(),
	}

	err = s.deps.Tx.InTx(ctx, "adjust balance", func(q repository.DBExecutor) error {
		var mv *Movement
		var err error
		if direction == domain.AdjustmentIncrease {
			mv, err = s.ledger.Credit(ctx, q, req.UserID, currency, req.Amount, Ref(domain.EntryKindAdjustmentIncrease, a.ID))
		} else {
			mv, err = s.ledger.Debit(ctx, q, req.UserID, currency, req.Amount, Ref(domain.EntryKindAdjustmentDecrease, a.ID))
		}
		if err != nil {
			return err
		}
		a.PreviousBalance = mv.Before.Balance
		a.NewBalance = mv.After.Balance
		b = &mv.After
		return s.adjustments.CreateAdjustment(ctx, q, a)
	})
	if err != nil {
		return nil, nil, err
	}

	s.deps.logger().Info("Balance adjusted", "adjustment_id", a.ID, "admin_id", adminID, "user_id", a.UserID,
		"currency", currency, "type", direction, "amount", a.Amount, "previous_balance", a.PreviousBalance, "new_balance", a.NewBalance)
	s.deps.notify(ctx, domain.NewNotification(domain.NotifyBalanceAdjusted, a.UserID, a.ID,
		fmt.Sprintf("Your %s balance was adjusted (%s %s)", currency, direction, a.Amount)))
	return a, b, nil
}

func (s *adjustmentService) ListAdjustments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.AdminBalanceAdjustment, int64, error) {
	limit, offset = clampPage(limit, offset)
	rows, total, err := s.adjustments.ListAdjustments(ctx, s.deps.Reader, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list adjustments: %w", err)
	}
	return rows, total, nil
}
