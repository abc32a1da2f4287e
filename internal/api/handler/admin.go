// internal/api/handler/admin.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/api/types"
	"tradedesk-ledger/internal/domain"
	"tradedesk-ledger/internal/service"
)

// AdminHandler serves manual adjustments and the package catalog.
type AdminHandler struct {
	responder
	adjustments service.AdjustmentService
	packages    service.PackageService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adjustments service.AdjustmentService, packages service.PackageService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{responder: responder{logger: logger}, adjustments: adjustments, packages: packages}
}

// AdjustBalanceRequest represents the request body for a manual adjustment.
type AdjustBalanceRequest struct {
	UserID         uuid.UUID             `json:"user_id"`
	Currency       string                `json:"currency"`
	Amount         decimal.Decimal       `json:"amount"`
	AccountType    string                `json:"account_type"`
	AdjustmentType domain.AdjustmentType `json:"adjustment_type"`
	Notes          string                `json:"admin_notes"`
}

// CreatePackageRequest represents the request body for a catalog entry.
type CreatePackageRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	MinDeposit  decimal.Decimal   `json:"min_deposit"`
	Features    domain.FeatureSet `json:"features"`
}

// AdjustBalance handles POST /v1/admin/adjustments.
func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req AdjustBalanceRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	a, b, err := h.adjustments.AdjustBalance(r.Context(), identity(r).UserID, domain.AdjustmentRequest{
		UserID:      req.UserID,
		Currency:    req.Currency,
		Amount:      req.Amount,
		AccountType: req.AccountType,
		Direction:   req.AdjustmentType,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{"adjustment": a, "balance": b})
}

// ListAdjustments handles GET /v1/admin/users/{userID}/adjustments.
func (h *AdminHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	limit, offset := pagination(r)
	rows, total, err := h.adjustments.ListAdjustments(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.AdminBalanceAdjustment{}
	}
	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.AdminBalanceAdjustment]{
		Data: rows, Limit: limit, Offset: offset, TotalCount: total,
	})
}

// CreatePackage handles POST /v1/admin/packages. Unknown feature keys are rejected.
func (h *AdminHandler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var req CreatePackageRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	p, err := h.packages.CreatePackage(r.Context(), req.Name, req.Description, req.MinDeposit, req.Features)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, p)
}

// ListPackages handles GET /v1/packages; admins see inactive ones too.
func (h *AdminHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.packages.ListPackages(r.Context(), !isAdminRoute(r))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if packages == nil {
		packages = []domain.Package{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": packages})
}
