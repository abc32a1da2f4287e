// internal/api/handler/response.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tradedesk-ledger/internal/api/auth"
	"tradedesk-ledger/internal/api/types"
	"tradedesk-ledger/internal/util"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// responder carries the JSON helpers every handler shares.
type responder struct {
	logger *slog.Logger
}

// Helper function to send JSON responses.
func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

var statusByKind = map[string]int{
	"invalid_input":           http.StatusBadRequest,
	"invalid_amount":          http.StatusBadRequest,
	"missing_justification":   http.StatusBadRequest,
	"below_minimum":           http.StatusUnprocessableEntity,
	"insufficient_funds":      http.StatusPaymentRequired,
	"not_found":               http.StatusNotFound,
	"forbidden":               http.StatusForbidden,
	"not_pending":             http.StatusConflict,
	"signal_not_open":         http.StatusConflict,
	"signal_already_resolved": http.StatusConflict,
	"signal_not_expired":      http.StatusConflict,
	"already_joined":          http.StatusConflict,
	"store_unavailable":       http.StatusServiceUnavailable,
}

// Helper function to send error responses. User errors carry their message;
// faults are logged and answered generically.
func (h responder) respondWithError(w http.ResponseWriter, err error) {
	kind := util.Kind(err)
	statusCode, ok := statusByKind[kind]
	message := err.Error()

	switch {
	case kind == "invariant_violation":
		statusCode = http.StatusInternalServerError
		message = "Internal server error"
		h.logger.Error("Ledger invariant violation", "error", err)
	case kind == "store_unavailable":
		message = "Service temporarily unavailable, retry later"
		h.logger.Warn("Store unavailable", "error", err)
	case !ok:
		statusCode = http.StatusInternalServerError
		message = "Internal server error"
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, types.ErrorResponse{Error: message, Kind: kind})
}

func (h responder) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badBody(err)
	}
	return nil
}

// decodeOptional is decode for endpoints whose body may be empty.
func (h responder) decodeOptional(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return badBody(err)
	}
	return nil
}

// badBody names what the decoder rejected.
func badBody(err error) error {
	if errors.Is(err, util.ErrInvalidInput) || errors.Is(err, util.ErrInvalidAmount) {
		return err
	}
	return fmt.Errorf("%w: request body: %v", util.ErrInvalidInput, err)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %v", util.ErrInvalidInput, name, err)
	}
	return id, nil
}

func isAdminRoute(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/v1/admin/")
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// pagination parses limit and offset query parameters.
func pagination(r *http.Request) (int, int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
