// internal/api/handler/request.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/api/types"
	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/service"
	"tradedesk-ledger/internal/util"
)

// RequestHandler serves the deposit and withdrawal workflows.
type RequestHandler struct {
	responder
	deposits    service.DepositService
	withdrawals service.WithdrawalService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(deposits service.DepositService, withdrawals service.WithdrawalService, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{responder: responder{logger: logger}, deposits: deposits, withdrawals: withdrawals}
}

// DepositRequest represents the request body for a deposit.
type DepositRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID *string         `json:"transaction_id,omitempty"`
}

// WithdrawalRequest represents the request body for a withdrawal.
type WithdrawalRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	PaymentMethod      string          `json:"payment_method"`
	DestinationAddress *string         `json:"destination_address,omitempty"`
	BankDetails        *string         `json:"bank_details,omitempty"`
}

// ResolveRequest is the optional body of approve and reject calls.
type ResolveRequest struct {
	Notes         *string `json:"notes,omitempty"`
	TransactionID *string `json:"transaction_id,omitempty"`
}

// RequestDeposit handles POST /v1/deposits.
func (h *RequestHandler) RequestDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	d, err := h.deposits.RequestDeposit(r.Context(), identity(r).UserID, req.Amount, req.Currency, req.PaymentMethod, req.TransactionID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, d)
}

// GetDeposit handles GET /v1/deposits/{id} and its admin counterpart.
func (h *RequestHandler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	d, err := h.deposits.GetDeposit(r.Context(), id)
	if err == nil && !visible(r, d.UserID) {
		err = util.ErrNotFound
	}
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, d)
}

// ListDeposits handles GET /v1/deposits and GET /v1/admin/deposits.
func (h *RequestHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	filter, err := requestFilter(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	rows, total, err := h.deposits.ListDeposits(r.Context(), filter)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.Deposit{}
	}
	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.Deposit]{
		Data: rows, Limit: filter.Limit, Offset: filter.Offset, TotalCount: total,
	})
}

// CancelDeposit handles POST /v1/deposits/{id}/cancel.
func (h *RequestHandler) CancelDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	d, err := h.deposits.CancelDeposit(r.Context(), id, identity(r).UserID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, d)
}

// ApproveDeposit handles POST /v1/admin/deposits/{id}/approve.
func (h *RequestHandler) ApproveDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	d, b, err := h.deposits.ApproveDeposit(r.Context(), id, identity(r).UserID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"deposit": d, "balance": b})
}

// RejectDeposit handles POST /v1/admin/deposits/{id}/reject.
func (h *RequestHandler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	id, req, err := h.resolveInput(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	d, err := h.deposits.RejectDeposit(r.Context(), id, identity(r).UserID, req.Notes)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, d)
}

// RequestWithdrawal handles POST /v1/withdrawals.
func (h *RequestHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	dest := domain.WithdrawalDestination{Address: req.DestinationAddress, BankDetails: req.BankDetails}
	wd, b, err := h.withdrawals.RequestWithdrawal(r.Context(), identity(r).UserID, req.Amount, req.Currency, req.PaymentMethod, dest)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{"withdrawal": wd, "balance": b})
}

// GetWithdrawal handles GET /v1/withdrawals/{id} and its admin counterpart.
func (h *RequestHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	wd, err := h.withdrawals.GetWithdrawal(r.Context(), id)
	if err == nil && !visible(r, wd.UserID) {
		err = util.ErrNotFound
	}
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, wd)
}

// ListWithdrawals handles GET /v1/withdrawals and GET /v1/admin/withdrawals.
func (h *RequestHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	filter, err := requestFilter(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	rows, total, err := h.withdrawals.ListWithdrawals(r.Context(), filter)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.Withdrawal{}
	}
	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.Withdrawal]{
		Data: rows, Limit: filter.Limit, Offset: filter.Offset, TotalCount: total,
	})
}

// CancelWithdrawal handles POST /v1/withdrawals/{id}/cancel.
func (h *RequestHandler) CancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	wd, b, err := h.withdrawals.CancelWithdrawal(r.Context(), id, identity(r).UserID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"withdrawal": wd, "balance": b})
}

// ApproveWithdrawal handles POST /v1/admin/withdrawals/{id}/approve.
func (h *RequestHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, req, err := h.resolveInput(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	wd, b, err := h.withdrawals.ApproveWithdrawal(r.Context(), id, identity(r).UserID, req.TransactionID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"withdrawal": wd, "balance": b})
}

// RejectWithdrawal handles POST /v1/admin/withdrawals/{id}/reject.
func (h *RequestHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, req, err := h.resolveInput(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	wd, b, err := h.withdrawals.RejectWithdrawal(r.Context(), id, identity(r).UserID, req.Notes)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"withdrawal": wd, "balance": b})
}

// resolveInput reads the path id and an optional body.
func (h *RequestHandler) resolveInput(r *http.Request) (uuid.UUID, ResolveRequest, error) {
	var req ResolveRequest
	id, err := uuidParam(r, "id")
	if err != nil {
		return uuid.Nil, req, err
	}
	if err := h.decodeOptional(r, &req); err != nil {
		return uuid.Nil, req, err
	}
	return id, req, nil
}

// requestFilter builds a listing filter. Non-admins only ever see their own rows;
// admins may narrow by ?user_id.
func requestFilter(r *http.Request) (domain.RequestFilter, error) {
	var f domain.RequestFilter
	f.Limit, f.Offset = pagination(r)
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		st, err := domain.ParseRequestStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = st
	}

	caller := identity(r)
	switch {
	case !caller.IsAdmin || !isAdminRoute(r):
		f.UserID = &caller.UserID
	case q.Get("user_id") != "":
		id, err := uuid.Parse(q.Get("user_id"))
		if err != nil {
			return f, util.ErrInvalidInput
		}
		f.UserID = &id
	}
	return f, nil
}

// visible reports whether the caller may read a row owned by owner.
func visible(r *http.Request, owner uuid.UUID) bool {
	caller := identity(r)
	return owner == caller.UserID || (caller.IsAdmin && isAdminRoute(r))
}
