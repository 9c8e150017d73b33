package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/shopspring/decimal"

	"github.com/yashasviy/transaction-ledger-api/models"
)

// Postgres error codes the store maps to domain errors.
const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
)

// PostgresStore implements Store on a Postgres database via database/sql
// with the pgx stdlib driver. Row locks are SELECT ... FOR UPDATE; the
// per-transaction lock_timeout bounds how long a transfer waits for them.
type PostgresStore struct {
	db       *sql.DB
	lockWait time.Duration
}

func NewPostgresStore(db *sql.DB, lockWait time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockWait: lockWait}
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acct *models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (account_id, owner_name, balance, created_at)
		 VALUES ($1, $2, $3, $4)`,
		acct.AccountID, acct.OwnerName, acct.Balance, acct.CreatedAt)
	if pgErrCode(err) == pgUniqueViolation {
		return models.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT account_id, owner_name, balance, created_at
		 FROM accounts WHERE account_id = $1`, accountID)
	return scanAccount(row)
}

func (s *PostgresStore) ListAccounts(ctx context.Context, offset, limit int) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, owner_name, balance, created_at
		 FROM accounts ORDER BY created_at, account_id
		 OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.AccountID, &a.OwnerName, &a.Balance, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeleteAccountIfZero locks the row before checking the balance so a
// concurrent transfer cannot slip a credit in between check and delete.
func (s *PostgresStore) DeleteAccountIfZero(ctx context.Context, accountID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE account_id = $1 FOR UPDATE`,
		accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("lock account for delete: %w", err)
	}

	if !balance.IsZero() {
		return models.ErrNonZeroBalance
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM accounts WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, selectTransaction+` WHERE transaction_id = $1`, transactionID)
	return scanTransaction(row)
}

func (s *PostgresStore) ListTransactions(ctx context.Context, offset, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` ORDER BY created_at DESC, transaction_id DESC
		 OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (s *PostgresStore) ListTransactionsByAccount(ctx context.Context, accountID string, offset, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		selectTransaction+` WHERE from_account_id = $1 OR to_account_id = $1
		 ORDER BY created_at DESC, transaction_id DESC
		 OFFSET $2 LIMIT $3`, accountID, offset, limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// RunInTx wraps fn in BEGIN ... COMMIT with a bounded lock wait. A nil
// return from fn commits; anything else rolls the whole unit of work back.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	// lock_timeout is transaction-scoped; FOR UPDATE waits beyond it fail
	// with SQLSTATE 55P03 instead of blocking indefinitely.
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockWait.Milliseconds())); err != nil {
		return fmt.Errorf("set lock_timeout: %w", err)
	}

	if err := fn(&pgUnitOfWork{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		// Two units of work can both pass the idempotency read; the
		// unique constraint decides the loser at commit.
		if pgErrCode(err) == pgUniqueViolation {
			return models.ErrTransactionExists
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgUnitOfWork struct {
	tx *sql.Tx
}

func (u *pgUnitOfWork) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	row := u.tx.QueryRowContext(ctx, selectTransaction+` WHERE transaction_id = $1`, transactionID)
	return scanTransaction(row)
}

func (u *pgUnitOfWork) LockAccount(ctx context.Context, accountID string) (*models.Account, error) {
	row := u.tx.QueryRowContext(ctx,
		`SELECT account_id, owner_name, balance, created_at
		 FROM accounts WHERE account_id = $1 FOR UPDATE`, accountID)
	acct, err := scanAccount(row)
	if pgErrCode(err) == pgLockNotAvailable {
		return nil, models.ErrLockTimeout
	}
	return acct, err
}

func (u *pgUnitOfWork) UpdateBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	res, err := u.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1 WHERE account_id = $2`, balance, accountID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func (u *pgUnitOfWork) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO transactions
		 (transaction_id, from_account_id, to_account_id, amount, status, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.TransactionID, txn.FromAccountID, txn.ToAccountID,
		txn.Amount, string(txn.Status), nullableString(txn.Description), txn.CreatedAt)
	if pgErrCode(err) == pgUniqueViolation {
		return models.ErrTransactionExists
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const selectTransaction = `SELECT transaction_id, from_account_id, to_account_id,
	amount, status, COALESCE(description, ''), created_at FROM transactions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.AccountID, &a.OwnerName, &a.Balance, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var status string
	err := row.Scan(&t.TransactionID, &t.FromAccountID, &t.ToAccountID,
		&t.Amount, &status, &t.Description, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = models.TransactionStatus(status)
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	txns := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
