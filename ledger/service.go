package ledger

import (
	"github.com/yashasviy/transaction-ledger-api/logger"
)

// Default pagination bounds for listing endpoints.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Service exposes the ledger operations: account CRUD, the transfer engine,
// and transaction queries. It owns no durable state; the Store does.
type Service struct {
	store Store
	log   *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With("component", "ledger"),
	}
}

// clampPage normalizes offset/limit the way the HTTP layer expects:
// negatives become defaults rather than errors.
func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return offset, limit
}
