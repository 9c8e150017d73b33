package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/yashasviy/transaction-ledger-api/models"
)

// CreateAccount opens a new account with the requested starting balance.
func (s *Service) CreateAccount(ctx context.Context, req models.CreateAccountRequest) (*models.Account, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	acct := &models.Account{
		AccountID: req.AccountID,
		OwnerName: req.OwnerName,
		Balance:   req.InitialBalance.Round(2),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}

	s.log.Info("account created",
		"account_id", acct.AccountID,
		"initial_balance", acct.Balance.StringFixed(2))
	return acct, nil
}

// GetAccount looks up a single account by id.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// GetBalance returns just the id/balance pair for an account.
func (s *Service) GetBalance(ctx context.Context, accountID string) (*models.BalanceResponse, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &models.BalanceResponse{
		AccountID: acct.AccountID,
		Balance:   acct.Balance,
	}, nil
}

// ListAccounts pages all accounts in creation order.
func (s *Service) ListAccounts(ctx context.Context, offset, limit int) ([]models.Account, error) {
	offset, limit = clampPage(offset, limit)
	accounts, err := s.store.ListAccounts(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// DeleteAccount removes an account. Only drained accounts can go; a non-zero
// balance fails the precondition and the row is untouched.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	if err := s.store.DeleteAccountIfZero(ctx, accountID); err != nil {
		return err
	}
	s.log.Info("account deleted", "account_id", accountID)
	return nil
}
