package ledger

import (
	"context"
	"fmt"

	"github.com/yashasviy/transaction-ledger-api/models"
)

// GetTransaction looks up a single ledger record by id.
func (s *Service) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return s.store.GetTransaction(ctx, transactionID)
}

// ListTransactions pages all ledger records, most recent first.
func (s *Service) ListTransactions(ctx context.Context, offset, limit int) ([]models.Transaction, error) {
	offset, limit = clampPage(offset, limit)
	txns, err := s.store.ListTransactions(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// ListTransactionsByAccount pages records where the account is sender or
// receiver, most recent first. The account itself must exist.
func (s *Service) ListTransactionsByAccount(ctx context.Context, accountID string, offset, limit int) ([]models.Transaction, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	offset, limit = clampPage(offset, limit)
	txns, err := s.store.ListTransactionsByAccount(ctx, accountID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", accountID, err)
	}
	return txns, nil
}
