// Package ledger implements the account and transaction repositories and the
// transfer engine on top of a Store that provides row-level locking,
// atomic commit/rollback, and uniqueness constraints.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/yashasviy/transaction-ledger-api/models"
)

// Store is the durable ledger store. Plain reads and single-row writes run
// outside any unit of work; everything a transfer does runs inside RunInTx.
type Store interface {
	// CreateAccount inserts a new account row. Returns
	// models.ErrAccountExists when the id is taken.
	CreateAccount(ctx context.Context, acct *models.Account) error

	// GetAccount returns models.ErrAccountNotFound when absent.
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)

	// ListAccounts pages accounts in creation order.
	ListAccounts(ctx context.Context, offset, limit int) ([]models.Account, error)

	// DeleteAccountIfZero removes the account only when its balance is
	// exactly zero. Returns models.ErrAccountNotFound or
	// models.ErrNonZeroBalance otherwise.
	DeleteAccountIfZero(ctx context.Context, accountID string) error

	// GetTransaction returns models.ErrTransactionNotFound when absent.
	GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)

	// ListTransactions pages all records, most recent first.
	ListTransactions(ctx context.Context, offset, limit int) ([]models.Transaction, error)

	// ListTransactionsByAccount pages records where the account is either
	// party, most recent first. Existence of the account is the caller's
	// concern.
	ListTransactionsByAccount(ctx context.Context, accountID string, offset, limit int) ([]models.Transaction, error)

	// RunInTx executes fn inside one atomic unit of work. A nil return
	// commits; any error rolls back every write and lock taken by fn.
	RunInTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// UnitOfWork is the transactional view handed to RunInTx callbacks. All
// operations see and produce state that becomes durable only on commit.
type UnitOfWork interface {
	// GetTransaction is the idempotency gate read. Returns
	// models.ErrTransactionNotFound when no record exists.
	GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)

	// LockAccount acquires an exclusive row lock and returns the current
	// row. Blocks until the lock is held, the configured wait elapses
	// (models.ErrLockTimeout), or the context is done. Returns
	// models.ErrAccountNotFound for unknown accounts.
	LockAccount(ctx context.Context, accountID string) (*models.Account, error)

	// UpdateBalance overwrites the balance of a row previously locked by
	// this unit of work.
	UpdateBalance(ctx context.Context, accountID string, balance decimal.Decimal) error

	// InsertTransaction writes a ledger record. A duplicate transaction_id
	// surfaces as models.ErrTransactionExists, here or at commit.
	InsertTransaction(ctx context.Context, txn *models.Transaction) error
}
