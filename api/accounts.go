package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yashasviy/transaction-ledger-api/models"
)

// CreateAccount handles POST /accounts.
func (s *Server) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{"invalid_argument", "malformed request body"})
		return
	}

	acct, err := s.ledger.CreateAccount(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, acct)
}

// GetAccount handles GET /accounts/{accountID}.
func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.ledger.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

// GetBalance handles GET /accounts/{accountID}/balance.
func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.GetBalance(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balance)
}

// ListAccounts handles GET /accounts.
func (s *Server) ListAccounts(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	accounts, err := s.ledger.ListAccounts(r.Context(), offset, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

// DeleteAccount handles DELETE /accounts/{accountID}.
func (s *Server) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteAccount(r.Context(), chi.URLParam(r, "accountID")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
