// internal/api/handler/balance.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tradedesk-ledger/internal/api/types"
	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/service"
)

// BalanceHandler serves balance and journal reads.
type BalanceHandler struct {
	responder
	ledger *service.LedgerStore
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(ledger *service.LedgerStore, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{responder: responder{logger: logger}, ledger: ledger}
}

// ListBalances handles GET /v1/balances and GET /v1/admin/users/{userID}/balances.
func (h *BalanceHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	userID, err := h.subject(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	balances, err := h.ledger.ListBalances(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if balances == nil {
		balances = []domain.Balance{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": balances})
}

// GetBalance handles GET /v1/balances/{currency}.
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.ledger.GetBalance(r.Context(), identity(r).UserID, chi.URLParam(r, "currency"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, b)
}

// ListEntries handles GET /v1/balances/{currency}/entries.
func (h *BalanceHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	entries, total, err := h.ledger.ListEntries(r.Context(), identity(r).UserID, chi.URLParam(r, "currency"), limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.LedgerEntry]{
		Data:       entries,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}

// subject is the user whose data is read: the path user for admin routes,
// otherwise the caller.
func (h *BalanceHandler) subject(r *http.Request) (uuid.UUID, error) {
	if chi.URLParam(r, "userID") != "" {
		return uuidParam(r, "userID")
	}
	return identity(r).UserID, nil
}
