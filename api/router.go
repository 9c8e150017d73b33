// Package api is the HTTP surface over the ledger service: routing, request
// decoding, and the mapping from engine outcomes to transport responses.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yashasviy/transaction-ledger-api/ledger"
	"github.com/yashasviy/transaction-ledger-api/logger"
)

type Server struct {
	ledger *ledger.Service
	log    *logger.Logger
}

func NewServer(svc *ledger.Service, log *logger.Logger) *Server {
	return &Server{ledger: svc, log: log.With("component", "api")}
}

// Router builds the route table. transferMiddleware (the Redis idempotency
// response cache) wraps only the transfer creation route; pass nil to run
// without it.
func (s *Server) Router(transferMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", s.CreateAccount)
		r.Get("/", s.ListAccounts)
		r.Get("/{accountID}", s.GetAccount)
		r.Get("/{accountID}/balance", s.GetBalance)
		r.Delete("/{accountID}", s.DeleteAccount)
	})

	r.Route("/transfers", func(r chi.Router) {
		if transferMiddleware != nil {
			r.With(transferMiddleware).Post("/", s.CreateTransfer)
		} else {
			r.Post("/", s.CreateTransfer)
		}
		r.Get("/", s.ListTransfers)
		r.Get("/{transactionID}", s.GetTransfer)
		r.Get("/account/{accountID}", s.ListAccountTransfers)
	})

	return r
}
