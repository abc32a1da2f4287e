// internal/api/handler/signal.go
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/service"
	"tradedesk-ledger/internal/util"
)

// SignalHandler serves the signal registry, stakes and settlement.
type SignalHandler struct {
	responder
	signals    service.SignalService
	settlement *service.SettlementEngine
}

// NewSignalHandler creates a new SignalHandler.
func NewSignalHandler(signals service.SignalService, settlement *service.SettlementEngine, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{responder: responder{logger: logger}, signals: signals, settlement: settlement}
}

// CreateSignalRequest represents the request body for a new signal.
type CreateSignalRequest struct {
	Name         string          `json:"name"`
	ProfitTarget decimal.Decimal `json:"profit_target"`
	LossLimit    decimal.Decimal `json:"loss_limit"`
	Expiry       time.Time       `json:"expiry"`
}

// JoinSignalRequest represents the request body for staking on a signal.
type JoinSignalRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ExecuteSignalRequest carries the outcome decided by the administrator.
type ExecuteSignalRequest struct {
	Outcome domain.Outcome `json:"outcome"`
}

// CreateSignal handles POST /v1/admin/signals.
func (h *SignalHandler) CreateSignal(w http.ResponseWriter, r *http.Request) {
	var req CreateSignalRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	sig, err := h.signals.CreateSignal(r.Context(), identity(r).UserID, domain.SignalParams{
		Name:         req.Name,
		ProfitTarget: req.ProfitTarget,
		LossLimit:    req.LossLimit,
		Expiry:       req.Expiry,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, sig)
}

// GetSignal handles GET /v1/signals/{id}.
func (h *SignalHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	sig, err := h.signals.GetSignal(r.Context(), id)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, sig)
}

// ListSignals handles GET /v1/signals?status=open.
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	var status domain.SignalStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := domain.ParseSignalStatus(s)
		if err != nil {
			h.respondWithError(w, err)
			return
		}
		status = st
	}
	signals, err := h.signals.ListSignals(r.Context(), status)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if signals == nil {
		signals = []domain.Signal{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": signals})
}

// JoinSignal handles POST /v1/signals/{id}/join.
func (h *SignalHandler) JoinSignal(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var req JoinSignalRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	u, b, err := h.signals.JoinSignal(r.Context(), identity(r).UserID, id, req.Amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{"usage": u, "balance": b})
}

// ListMyUsages handles GET /v1/signals/usages.
func (h *SignalHandler) ListMyUsages(w http.ResponseWriter, r *http.Request) {
	userID := identity(r).UserID
	h.listUsages(w, r, domain.UsageFilter{UserID: &userID})
}

// ListSignalUsages handles GET /v1/admin/signals/{id}/usages.
func (h *SignalHandler) ListSignalUsages(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.listUsages(w, r, domain.UsageFilter{SignalID: &id})
}

func (h *SignalHandler) listUsages(w http.ResponseWriter, r *http.Request, filter domain.UsageFilter) {
	if s := r.URL.Query().Get("status"); s != "" {
		switch st := domain.UsageStatus(s); st {
		case domain.UsageStatusPending, domain.UsageStatusSettled, domain.UsageStatusCancelled:
			filter.Status = st
		default:
			h.respondWithError(w, util.ErrInvalidInput)
			return
		}
	}
	usages, err := h.signals.ListUsages(r.Context(), filter)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if usages == nil {
		usages = []domain.SignalUsage{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": usages})
}

// ExecuteSignal handles POST /v1/admin/signals/{id}/execute.
func (h *SignalHandler) ExecuteSignal(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var req ExecuteSignalRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	h.settled(w, func() (*service.SettlementResult, error) {
		return h.settlement.ExecuteSignal(r.Context(), id, req.Outcome)
	})
}

// CancelSignal handles POST /v1/admin/signals/{id}/cancel.
func (h *SignalHandler) CancelSignal(w http.ResponseWriter, r *http.Request) {
	h.resolveByID(w, r, h.settlement.CancelSignal)
}

// ExpireSignal handles POST /v1/admin/signals/{id}/expire.
func (h *SignalHandler) ExpireSignal(w http.ResponseWriter, r *http.Request) {
	h.resolveByID(w, r, h.settlement.ExpireSignal)
}

func (h *SignalHandler) resolveByID(w http.ResponseWriter, r *http.Request, resolve func(ctx context.Context, id uuid.UUID) (*service.SettlementResult, error)) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.settled(w, func() (*service.SettlementResult, error) {
		return resolve(r.Context(), id)
	})
}

func (h *SignalHandler) settled(w http.ResponseWriter, run func() (*service.SettlementResult, error)) {
	res, err := run()
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if res.Usages == nil {
		res.Usages = []domain.SignalUsage{}
	}
	h.respondWithJSON(w, http.StatusOK, res)
}
