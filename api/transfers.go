package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yashasviy/transaction-ledger-api/models"
)

// CreateTransfer handles POST /transfers. The engine owns atomicity and the
// durable idempotency gate; anything this handler returns reflects a
// committed outcome (completed record, failed record, or no record at all).
func (s *Server) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{"invalid_argument", "malformed request body"})
		return
	}

	record, err := s.ledger.Transfer(r.Context(), req)
	if err != nil {
		var fundsErr *models.InsufficientFundsError
		if errors.As(err, &fundsErr) && record != nil {
			// The rejection is durably recorded; return the failed
			// record alongside the error detail.
			respondJSON(w, http.StatusUnprocessableEntity, struct {
				errorResponse
				Transaction *models.Transaction `json:"transaction"`
			}{
				errorResponse{"insufficient_funds", err.Error()},
				record,
			})
			return
		}
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

// GetTransfer handles GET /transfers/{transactionID}.
func (s *Server) GetTransfer(w http.ResponseWriter, r *http.Request) {
	txn, err := s.ledger.GetTransaction(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, txn)
}

// ListTransfers handles GET /transfers.
func (s *Server) ListTransfers(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	txns, err := s.ledger.ListTransactions(r.Context(), offset, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, txns)
}

// ListAccountTransfers handles GET /transfers/account/{accountID}.
func (s *Server) ListAccountTransfers(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	txns, err := s.ledger.ListTransactionsByAccount(r.Context(), chi.URLParam(r, "accountID"), offset, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, txns)
}
