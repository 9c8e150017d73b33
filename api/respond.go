package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/yashasviy/transaction-ledger-api/ledger"
	"github.com/yashasviy/transaction-ledger-api/models"
)

// errorResponse is the uniform error body: a stable machine-readable kind
// plus a human-readable message.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondError maps the service error taxonomy onto HTTP statuses. Unknown
// errors become an opaque 500 so internals never leak to callers.
func respondError(w http.ResponseWriter, err error) {
	var (
		validationErr *models.ValidationError
		fundsErr      *models.InsufficientFundsError
	)

	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, models.ErrSameAccount),
		errors.Is(err, models.ErrInvalidAmount):
		respondJSON(w, http.StatusBadRequest, errorResponse{"invalid_argument", err.Error()})
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrTransactionNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{"not_found", err.Error()})
	case errors.Is(err, models.ErrAccountExists),
		errors.Is(err, models.ErrTransactionExists):
		respondJSON(w, http.StatusConflict, errorResponse{"already_exists", err.Error()})
	case errors.As(err, &fundsErr):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{"insufficient_funds", err.Error()})
	case errors.Is(err, models.ErrNonZeroBalance):
		respondJSON(w, http.StatusPreconditionFailed, errorResponse{"precondition_failed", err.Error()})
	case errors.Is(err, models.ErrLockTimeout):
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{"unavailable", "account locks busy, retry with the same transaction_id"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{"unavailable", "request cancelled"})
	default:
		respondJSON(w, http.StatusInternalServerError, errorResponse{"internal", "internal server error"})
	}
}

// pageParams reads offset/limit query parameters; anything unparseable
// falls back to defaults rather than erroring.
func pageParams(r *http.Request) (offset, limit int) {
	limit = ledger.DefaultListLimit
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return offset, limit
}
